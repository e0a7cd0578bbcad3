package attestation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"custodia-hq/custodia/pkg/evidence"
	"custodia-hq/custodia/pkg/signing"
)

// Signer signs attestation content.
type Signer interface {
	Sign(ctx context.Context, content []byte) (*signing.SignatureMetadata, error)
}

// Attestation is a signed compliance attestation for one evidence
// pack against one framework.
type Attestation struct {
	ID               string                     `json:"id"`
	GeneratedAt      time.Time                  `json:"generatedAt"`
	Framework        Framework                  `json:"framework"`
	FrameworkName    string                     `json:"frameworkName"`
	ExecutionID      string                     `json:"executionId"`
	BotID            string                     `json:"botId"`
	TenantID         string                     `json:"tenantId"`
	PackID           string                     `json:"packId"`
	ManifestChecksum string                     `json:"manifestChecksum"`
	Evaluations      []ControlEvaluation        `json:"evaluations"`
	Summary          Summary                    `json:"summary"`
	Warnings         []string                   `json:"warnings,omitempty"`
	Signature        *signing.SignatureMetadata `json:"signature,omitempty"`
}

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	// Registry supplies control catalogs. Defaults to the built-ins.
	Registry *Registry

	// Signer signs generated attestations. Optional; unsigned
	// attestations carry a warning.
	Signer Signer

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Generator evaluates evidence packs and produces signed attestations.
type Generator struct {
	evaluator *Evaluator
	registry  *Registry
	signer    Signer
	now       func() time.Time
	logger    *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Generator{
		evaluator: NewEvaluator(registry),
		registry:  registry,
		signer:    cfg.Signer,
		now:       now,
		logger:    slog.Default().With("component", "attestation.generator"),
	}
}

// GenerateAttestation evaluates the pack against the framework catalog
// and returns a signed attestation. Signing failure is recorded as a
// warning; the attestation is still produced.
func (g *Generator) GenerateAttestation(ctx context.Context, pack *evidence.Pack, framework Framework) (*Attestation, error) {
	if pack == nil {
		return nil, evidence.NewValidationError("pack", "evidence pack is required")
	}
	catalog, err := g.registry.Catalog(framework)
	if err != nil {
		return nil, err
	}

	evals, err := g.evaluator.EvaluateFramework(framework, IndexPack(pack))
	if err != nil {
		return nil, err
	}
	ApplyRecordedResults(evals, recordedFor(pack.Compliance, framework))

	now := g.now().UTC()
	att := &Attestation{
		ID:               newAttestationID(now),
		GeneratedAt:      now,
		Framework:        framework,
		FrameworkName:    catalog.Name,
		ExecutionID:      pack.Manifest.ExecutionID,
		BotID:            pack.Manifest.BotID,
		TenantID:         pack.Manifest.TenantID,
		PackID:           pack.Manifest.PackID,
		ManifestChecksum: pack.Manifest.Integrity.ManifestChecksum,
		Evaluations:      evals,
		Summary:          Summarize(framework, evals),
	}

	if g.signer == nil {
		att.Warnings = append(att.Warnings, "attestation is unsigned: no signer configured")
	} else {
		content, err := json.Marshal(att)
		if err != nil {
			return nil, fmt.Errorf("failed to encode attestation for signing: %w", err)
		}
		sig, err := g.signer.Sign(ctx, content)
		if err != nil {
			att.Warnings = append(att.Warnings, fmt.Sprintf("attestation signing failed: %v", err))
			g.logger.Error("attestation signing failed",
				"attestation_id", att.ID,
				"execution_id", att.ExecutionID,
				"error", err)
		} else {
			att.Signature = sig
		}
	}

	g.logger.Info("attestation generated",
		"attestation_id", att.ID,
		"framework", framework,
		"execution_id", att.ExecutionID,
		"status", att.Summary.OverallStatus,
		"score", att.Summary.Score)
	return att, nil
}

// newAttestationID builds an id like ATT-20260825T120000Z-1A2B3C4D.
func newAttestationID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ATT-%s-%s", now.Format("20060102T150405Z"), suffix)
}

func recordedFor(results []evidence.ComplianceResult, framework Framework) []evidence.ComplianceResult {
	var out []evidence.ComplianceResult
	for _, r := range results {
		if strings.EqualFold(r.Framework, string(framework)) {
			out = append(out, r)
		}
	}
	return out
}

// ToJSON renders the attestation as indented JSON.
func (a *Attestation) ToJSON() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// RenderText renders a human-readable attestation report.
func (a *Attestation) RenderText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "COMPLIANCE ATTESTATION %s\n", a.ID)
	fmt.Fprintf(&b, "Generated:  %s\n", a.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Framework:  %s (%s)\n", a.Framework, a.FrameworkName)
	fmt.Fprintf(&b, "Execution:  %s\n", a.ExecutionID)
	if a.BotID != "" {
		fmt.Fprintf(&b, "Bot:        %s\n", a.BotID)
	}
	if a.TenantID != "" {
		fmt.Fprintf(&b, "Tenant:     %s\n", a.TenantID)
	}
	fmt.Fprintf(&b, "Pack:       %s (manifest sha256 %s)\n", a.PackID, a.ManifestChecksum)
	b.WriteString("\nCONTROLS\n")
	for _, e := range a.Evaluations {
		fmt.Fprintf(&b, "  [%-15s] %s: %s\n", e.Status, e.ControlID, e.ControlName)
		if e.Notes != "" {
			fmt.Fprintf(&b, "%19s%s\n", "", e.Notes)
		}
	}
	fmt.Fprintf(&b, "\nSUMMARY\n")
	fmt.Fprintf(&b, "  Controls:        %d (%d not applicable)\n", a.Summary.TotalControls, a.Summary.NotApplicable)
	fmt.Fprintf(&b, "  Passed:          %d\n", a.Summary.Passed)
	fmt.Fprintf(&b, "  Partially met:   %d\n", a.Summary.PartiallyMet)
	fmt.Fprintf(&b, "  Requires review: %d\n", a.Summary.RequiresReview)
	fmt.Fprintf(&b, "  Failed:          %d\n", a.Summary.Failed)
	fmt.Fprintf(&b, "  Score:           %.2f%%\n", a.Summary.Score)
	fmt.Fprintf(&b, "  Overall status:  %s\n", a.Summary.OverallStatus)
	if len(a.Warnings) > 0 {
		b.WriteString("\nWARNINGS\n")
		for _, w := range a.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}
	if a.Signature != nil {
		b.WriteString("\nSIGNATURE\n")
		fmt.Fprintf(&b, "  Algorithm:  %s\n", a.Signature.Algorithm)
		fmt.Fprintf(&b, "  Signed at:  %s\n", a.Signature.SignedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "  Subject:    %s\n", a.Signature.CertSubject)
	}
	return b.String()
}
