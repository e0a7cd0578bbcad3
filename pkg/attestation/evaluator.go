package attestation

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"custodia-hq/custodia/pkg/evidence"
)

// PartialWeight is the credit a partially met control contributes to
// the compliance score. Override before evaluating to tune scoring.
var PartialWeight = 0.5

// EvidenceIndex maps evidence types to the pack-relative paths that
// carry them.
type EvidenceIndex map[string][]string

// Add records a path under an evidence type.
func (idx EvidenceIndex) Add(evidenceType, path string) {
	idx[evidenceType] = append(idx[evidenceType], path)
}

// IndexPack builds an evidence index from a persisted pack: each
// evidence category maps to the files that substantiate it.
func IndexPack(pack *evidence.Pack) EvidenceIndex {
	idx := make(EvidenceIndex)

	if len(pack.Logs) > 0 {
		idx.Add(EvidenceAuditLog, "logs/execution.json")
		idx.Add(EvidenceExecutionLog, "logs/execution.json")
	}
	if len(pack.Lineage) > 0 {
		idx.Add(EvidenceDataLineage, "lineage/lineage.json")
	}
	if len(pack.Decisions) > 0 {
		idx.Add(EvidenceAgentDecision, "decisions/decisions.json")
	}
	for _, s := range pack.Screenshots {
		path := filepath.ToSlash(filepath.Join("screenshots", s.Entry.Filename))
		idx.Add(EvidenceScreenshot, path)
		if s.Entry.RedactionApplied {
			idx.Add(EvidenceRedaction, path)
		}
	}
	if len(pack.Manifest.ChainOfCustody) > 0 {
		idx.Add(EvidenceChainOfCustody, "manifest.json")
	}
	if len(pack.Checksums) > 0 || pack.Manifest.Integrity.ManifestChecksum != "" {
		idx.Add(EvidenceChecksumIndex, "checksums.json")
	}
	if pack.Manifest.Integrity.Signature != nil {
		idx.Add(EvidenceSignature, "signatures/manifest.sig.json")
	}
	return idx
}

// ControlEvaluation is the outcome of evaluating one control against
// the available evidence.
type ControlEvaluation struct {
	ControlID     string                    `json:"controlId"`
	ControlName   string                    `json:"controlName"`
	Status        evidence.ComplianceStatus `json:"status"`
	RequiredTypes []string                  `json:"requiredTypes,omitempty"`
	MissingTypes  []string                  `json:"missingTypes,omitempty"`
	EvidencePaths []string                  `json:"evidencePaths,omitempty"`
	Notes         string                    `json:"notes,omitempty"`
}

// Summary aggregates control evaluations into an overall result.
type Summary struct {
	Framework      Framework                 `json:"framework"`
	TotalControls  int                       `json:"totalControls"`
	Passed         int                       `json:"passed"`
	Failed         int                       `json:"failed"`
	PartiallyMet   int                       `json:"partiallyMet"`
	RequiresReview int                       `json:"requiresReview"`
	NotApplicable  int                       `json:"notApplicable"`
	Score          float64                   `json:"score"`
	OverallStatus  evidence.ComplianceStatus `json:"overallStatus"`
}

// Evaluator evaluates framework catalogs against evidence indices.
type Evaluator struct {
	registry *Registry
}

// NewEvaluator creates an evaluator over a catalog registry. A nil
// registry uses the built-in catalogs.
func NewEvaluator(registry *Registry) *Evaluator {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Evaluator{registry: registry}
}

// EvaluateFramework evaluates every control of the framework's catalog
// against the index. A control passes when all required evidence types
// are present, is partially met when some are, and requires manual
// review when none are.
func (e *Evaluator) EvaluateFramework(framework Framework, idx EvidenceIndex) ([]ControlEvaluation, error) {
	catalog, err := e.registry.Catalog(framework)
	if err != nil {
		return nil, err
	}

	evals := make([]ControlEvaluation, 0, len(catalog.Controls))
	for _, ctrl := range catalog.Controls {
		evals = append(evals, evaluateControl(ctrl, idx))
	}
	return evals, nil
}

func evaluateControl(ctrl Control, idx EvidenceIndex) ControlEvaluation {
	eval := ControlEvaluation{
		ControlID:     ctrl.ID,
		ControlName:   ctrl.Name,
		RequiredTypes: ctrl.RequiredEvidence,
	}
	if len(ctrl.RequiredEvidence) == 0 {
		eval.Status = evidence.StatusNotApplicable
		eval.Notes = "control has no automated evidence requirements"
		return eval
	}

	var paths []string
	for _, required := range ctrl.RequiredEvidence {
		if found := idx[required]; len(found) > 0 {
			paths = append(paths, found...)
		} else {
			eval.MissingTypes = append(eval.MissingTypes, required)
		}
	}
	eval.EvidencePaths = dedupeSorted(paths)

	switch {
	case len(eval.MissingTypes) == 0:
		eval.Status = evidence.StatusPassed
	case len(eval.MissingTypes) == len(ctrl.RequiredEvidence):
		eval.Status = evidence.StatusRequiresReview
		eval.Notes = "no supporting evidence collected"
	default:
		eval.Status = evidence.StatusPartiallyMet
		eval.Notes = fmt.Sprintf("missing evidence: %s", strings.Join(eval.MissingTypes, ", "))
	}
	return eval
}

// ApplyRecordedResults overlays compliance results recorded during the
// execution onto the catalog evaluations. A recorded failure for a
// control overrides whatever the evidence presence check concluded.
func ApplyRecordedResults(evals []ControlEvaluation, results []evidence.ComplianceResult) {
	byControl := make(map[string]evidence.ComplianceResult, len(results))
	for _, r := range results {
		byControl[r.ControlID] = r
	}
	for i := range evals {
		r, ok := byControl[evals[i].ControlID]
		if !ok {
			continue
		}
		if r.Status == evidence.StatusFailed {
			evals[i].Status = evidence.StatusFailed
			evals[i].Notes = r.Details
		}
	}
}

// Summarize computes the aggregate score and overall status. The score
// is (passed + PartialWeight*partially_met) over applicable controls,
// as a percentage. Status priority: failed, then requires_review, then
// partially_met, then passed.
func Summarize(framework Framework, evals []ControlEvaluation) Summary {
	s := Summary{Framework: framework, TotalControls: len(evals)}
	for _, e := range evals {
		switch e.Status {
		case evidence.StatusPassed:
			s.Passed++
		case evidence.StatusFailed:
			s.Failed++
		case evidence.StatusPartiallyMet:
			s.PartiallyMet++
		case evidence.StatusRequiresReview:
			s.RequiresReview++
		case evidence.StatusNotApplicable:
			s.NotApplicable++
		}
	}

	applicable := s.TotalControls - s.NotApplicable
	if applicable > 0 {
		raw := (float64(s.Passed) + PartialWeight*float64(s.PartiallyMet)) / float64(applicable) * 100
		s.Score = math.Round(raw*100) / 100
	}

	switch {
	case s.Failed > 0:
		s.OverallStatus = evidence.StatusFailed
	case s.RequiresReview > 0:
		s.OverallStatus = evidence.StatusRequiresReview
	case s.PartiallyMet > 0:
		s.OverallStatus = evidence.StatusPartiallyMet
	case s.Passed > 0:
		s.OverallStatus = evidence.StatusPassed
	default:
		s.OverallStatus = evidence.StatusNotApplicable
	}
	return s
}

func dedupeSorted(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	sort.Strings(paths)
	out := paths[:1]
	for _, p := range paths[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
