package attestation

import (
	"testing"

	"custodia-hq/custodia/pkg/evidence"
)

func fullIndex() EvidenceIndex {
	return EvidenceIndex{
		EvidenceAuditLog:       {"logs/execution.json"},
		EvidenceExecutionLog:   {"logs/execution.json"},
		EvidenceDataLineage:    {"lineage/lineage.json"},
		EvidenceAgentDecision:  {"decisions/decisions.json"},
		EvidenceScreenshot:     {"screenshots/screenshot_001.png"},
		EvidenceChainOfCustody: {"manifest.json"},
		EvidenceChecksumIndex:  {"checksums.json"},
		EvidenceSignature:      {"signatures/manifest.sig.json"},
		EvidenceRedaction:      {"screenshots/screenshot_001.png"},
	}
}

func TestEvaluateFramework_AllEvidencePresent(t *testing.T) {
	e := NewEvaluator(nil)

	for _, framework := range []Framework{FrameworkHIPAA, FrameworkSOC2, FrameworkPCIDSS, FrameworkGDPR} {
		t.Run(string(framework), func(t *testing.T) {
			evals, err := e.EvaluateFramework(framework, fullIndex())
			if err != nil {
				t.Fatalf("EvaluateFramework() error = %v", err)
			}
			if len(evals) == 0 {
				t.Fatal("no evaluations produced")
			}
			for _, eval := range evals {
				if eval.Status != evidence.StatusPassed {
					t.Errorf("control %s status = %s, want passed (missing %v)",
						eval.ControlID, eval.Status, eval.MissingTypes)
				}
				if len(eval.EvidencePaths) == 0 {
					t.Errorf("control %s has no evidence paths", eval.ControlID)
				}
			}
			s := Summarize(framework, evals)
			if s.Score != 100 || s.OverallStatus != evidence.StatusPassed {
				t.Errorf("summary = %+v", s)
			}
		})
	}
}

func TestEvaluateFramework_StatusTiers(t *testing.T) {
	e := NewEvaluator(nil)

	// 164.312(b) requires audit_log and execution_log: with only the
	// audit log it is partially met; 164.312(c)(1) requires
	// checksum_index and digital_signature: with neither it requires
	// review.
	idx := EvidenceIndex{
		EvidenceAuditLog:       {"logs/execution.json"},
		EvidenceChainOfCustody: {"manifest.json"},
		EvidenceAgentDecision:  {"decisions/decisions.json"},
	}
	evals, err := e.EvaluateFramework(FrameworkHIPAA, idx)
	if err != nil {
		t.Fatal(err)
	}

	byControl := make(map[string]ControlEvaluation, len(evals))
	for _, eval := range evals {
		byControl[eval.ControlID] = eval
	}

	if got := byControl["164.312(b)"].Status; got != evidence.StatusPartiallyMet {
		t.Errorf("164.312(b) status = %s, want partially_met", got)
	}
	if got := byControl["164.312(b)"].MissingTypes; len(got) != 1 || got[0] != EvidenceExecutionLog {
		t.Errorf("164.312(b) missing = %v", got)
	}
	if got := byControl["164.312(c)(1)"].Status; got != evidence.StatusRequiresReview {
		t.Errorf("164.312(c)(1) status = %s, want requires_review", got)
	}
	if got := byControl["164.312(a)(1)"].Status; got != evidence.StatusPassed {
		t.Errorf("164.312(a)(1) status = %s, want passed", got)
	}
}

func TestEvaluateFramework_UnknownFramework(t *testing.T) {
	e := NewEvaluator(nil)
	if _, err := e.EvaluateFramework(Framework("ISO-99999"), fullIndex()); err == nil {
		t.Error("EvaluateFramework() accepted an unknown framework")
	}
}

func TestSummarize_Score(t *testing.T) {
	evals := []ControlEvaluation{
		{ControlID: "a", Status: evidence.StatusPassed},
		{ControlID: "b", Status: evidence.StatusPassed},
		{ControlID: "c", Status: evidence.StatusPartiallyMet},
		{ControlID: "d", Status: evidence.StatusRequiresReview},
		{ControlID: "e", Status: evidence.StatusNotApplicable},
	}

	s := Summarize(FrameworkSOC2, evals)
	// (2 + 0.5*1) / 4 applicable = 62.5
	if s.Score != 62.5 {
		t.Errorf("Score = %v, want 62.5", s.Score)
	}
	if s.TotalControls != 5 || s.NotApplicable != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.OverallStatus != evidence.StatusRequiresReview {
		t.Errorf("OverallStatus = %s", s.OverallStatus)
	}
}

func TestSummarize_PartialWeightOverride(t *testing.T) {
	orig := PartialWeight
	defer func() { PartialWeight = orig }()
	PartialWeight = 1.0

	evals := []ControlEvaluation{
		{ControlID: "a", Status: evidence.StatusPartiallyMet},
		{ControlID: "b", Status: evidence.StatusPartiallyMet},
	}
	if s := Summarize(FrameworkSOC2, evals); s.Score != 100 {
		t.Errorf("Score = %v with full partial weight, want 100", s.Score)
	}
}

func TestSummarize_StatusPriority(t *testing.T) {
	tests := []struct {
		name     string
		statuses []evidence.ComplianceStatus
		want     evidence.ComplianceStatus
	}{
		{"failed beats review", []evidence.ComplianceStatus{evidence.StatusPassed, evidence.StatusRequiresReview, evidence.StatusFailed}, evidence.StatusFailed},
		{"review beats partial", []evidence.ComplianceStatus{evidence.StatusPartiallyMet, evidence.StatusRequiresReview}, evidence.StatusRequiresReview},
		{"partial beats passed", []evidence.ComplianceStatus{evidence.StatusPassed, evidence.StatusPartiallyMet}, evidence.StatusPartiallyMet},
		{"all passed", []evidence.ComplianceStatus{evidence.StatusPassed, evidence.StatusPassed}, evidence.StatusPassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evals := make([]ControlEvaluation, len(tt.statuses))
			for i, s := range tt.statuses {
				evals[i] = ControlEvaluation{Status: s}
			}
			if s := Summarize(FrameworkGDPR, evals); s.OverallStatus != tt.want {
				t.Errorf("OverallStatus = %s, want %s", s.OverallStatus, tt.want)
			}
		})
	}
}

func TestApplyRecordedResults_FailureOverrides(t *testing.T) {
	evals := []ControlEvaluation{
		{ControlID: "10.2", Status: evidence.StatusPassed},
		{ControlID: "10.5", Status: evidence.StatusPassed},
	}
	ApplyRecordedResults(evals, []evidence.ComplianceResult{
		{Framework: "PCI-DSS", ControlID: "10.2", Status: evidence.StatusFailed, Details: "tamper check failed"},
		{Framework: "PCI-DSS", ControlID: "10.5", Status: evidence.StatusPassed},
	})

	if evals[0].Status != evidence.StatusFailed || evals[0].Notes != "tamper check failed" {
		t.Errorf("10.2 = %+v", evals[0])
	}
	if evals[1].Status != evidence.StatusPassed {
		t.Errorf("10.5 = %+v", evals[1])
	}
}

func TestIndexPack(t *testing.T) {
	pack := &evidence.Pack{
		Manifest: evidence.Manifest{
			ChainOfCustody: []evidence.CustodyEvent{{Event: "created"}},
			Integrity: evidence.Integrity{
				ManifestChecksum: "abc123",
			},
		},
		Logs:    []evidence.LogEntry{{Message: "step one"}},
		Lineage: []evidence.DataLineageEntry{{Source: "crm"}},
		Screenshots: []evidence.Screenshot{{
			Entry: evidence.ScreenshotEntry{Filename: "screenshot_001.png", RedactionApplied: true},
		}},
	}

	idx := IndexPack(pack)
	if got := idx[EvidenceAuditLog]; len(got) != 1 || got[0] != "logs/execution.json" {
		t.Errorf("audit_log = %v", got)
	}
	if got := idx[EvidenceRedaction]; len(got) != 1 || got[0] != "screenshots/screenshot_001.png" {
		t.Errorf("redaction_record = %v", got)
	}
	if _, ok := idx[EvidenceAgentDecision]; ok {
		t.Error("agent_decision indexed with no decisions")
	}
	if _, ok := idx[EvidenceSignature]; ok {
		t.Error("digital_signature indexed with no signature")
	}
	if got := idx[EvidenceChecksumIndex]; len(got) != 1 {
		t.Errorf("checksum_index = %v", got)
	}
}
