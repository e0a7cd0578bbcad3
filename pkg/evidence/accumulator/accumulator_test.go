package accumulator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"custodia-hq/custodia/pkg/evidence"
	"custodia-hq/custodia/pkg/redaction"
)

func newTestAccumulator(t *testing.T, executionID string) *Accumulator {
	t.Helper()
	acc, err := New(Config{
		ExecutionID: executionID,
		BotID:       "invoice-bot",
		BotVersion:  "2.1.0",
		TenantID:    "acme",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(acc.Close)
	return acc
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 120; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing execution id", cfg: Config{BotID: "b", TenantID: "t"}},
		{name: "missing bot id", cfg: Config{ExecutionID: "e", TenantID: "t"}},
		{name: "missing tenant id", cfg: Config{ExecutionID: "e", BotID: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() accepted invalid config")
			}
		})
	}
}

func TestNew_SingleWriterPerExecution(t *testing.T) {
	acc := newTestAccumulator(t, "exec-single")

	if _, err := New(Config{ExecutionID: "exec-single", BotID: "b", TenantID: "t"}); err == nil {
		t.Fatal("New() allowed a second accumulator for the same execution")
	}

	acc.Close()
	second, err := New(Config{ExecutionID: "exec-single", BotID: "b", TenantID: "t"})
	if err != nil {
		t.Fatalf("New() after Close() error = %v", err)
	}
	second.Close()
}

func TestRecordLineage_RedactsAndClassifies(t *testing.T) {
	ctx := context.Background()
	acc := newTestAccumulator(t, "exec-lineage")

	err := acc.RecordLineage(ctx, evidence.DataLineageEntry{
		Source:         "crm.contacts email jane@corp.example",
		Destination:    "billing.invoices",
		Operation:      "copy",
		Classification: []string{"email"},
	})
	if err != nil {
		t.Fatalf("RecordLineage() error = %v", err)
	}

	pack, err := acc.Finalize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pack.Lineage) != 1 {
		t.Fatalf("lineage entries = %d", len(pack.Lineage))
	}
	got := pack.Lineage[0]
	if strings.Contains(got.Source, "jane@corp.example") {
		t.Errorf("raw email survived redaction: %q", got.Source)
	}
	if got.ID == "" || got.Timestamp.IsZero() {
		t.Error("entry id/timestamp not populated")
	}
	if len(pack.Manifest.Classification) == 0 || pack.Manifest.Classification[0] != "email" {
		t.Errorf("classification = %v", pack.Manifest.Classification)
	}
}

func TestRecordDecision_RedactsReasoning(t *testing.T) {
	ctx := context.Background()
	acc := newTestAccumulator(t, "exec-decision")

	err := acc.RecordDecision(ctx, evidence.AgentDecision{
		DecisionType: "route_invoice",
		InputSummary: "invoice for ssn 123-45-6789",
		Outcome:      "approved",
		Reasoning:    "amount under threshold",
		Confidence:   0.92,
	})
	if err != nil {
		t.Fatal(err)
	}

	pack, _ := acc.Finalize(ctx)
	if strings.Contains(pack.Decisions[0].InputSummary, "123-45-6789") {
		t.Errorf("raw SSN survived redaction: %q", pack.Decisions[0].InputSummary)
	}
	want := []string{"ssn"}
	if len(pack.Manifest.Classification) != 1 || pack.Manifest.Classification[0] != want[0] {
		t.Errorf("classification = %v, want %v", pack.Manifest.Classification, want)
	}
}

func TestRecordComplianceCheck_StatusValidated(t *testing.T) {
	ctx := context.Background()
	acc := newTestAccumulator(t, "exec-compliance")

	err := acc.RecordComplianceCheck(ctx, evidence.ComplianceResult{
		Framework: "hipaa",
		ControlID: "164.312(b)",
		Status:    "sort_of_passed",
	})
	if err == nil {
		t.Error("RecordComplianceCheck() accepted unknown status")
	}

	err = acc.RecordComplianceCheck(ctx, evidence.ComplianceResult{
		Framework: "hipaa",
		ControlID: "164.312(b)",
		Status:    evidence.StatusPassed,
	})
	if err != nil {
		t.Errorf("RecordComplianceCheck() error = %v", err)
	}
}

func TestFinalize_SecondCallRejected(t *testing.T) {
	ctx := context.Background()
	acc := newTestAccumulator(t, "exec-refinal")

	if err := acc.AddLog(ctx, evidence.LogInfo, "n1", "started"); err != nil {
		t.Fatal(err)
	}

	first, err := acc.Finalize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Manifest.Statistics.LogEntries != 1 {
		t.Errorf("log entries = %d", first.Manifest.Statistics.LogEntries)
	}

	_, err = acc.Finalize(ctx)
	var afe *evidence.AlreadyFinalizedError
	if !errors.As(err, &afe) {
		t.Fatalf("second Finalize() error = %v, want AlreadyFinalizedError", err)
	}
	if afe.Operation != "Finalize" {
		t.Errorf("Operation = %q", afe.Operation)
	}

	// The rejected call left the pack untouched.
	if first.Manifest.Statistics.LogEntries != 1 {
		t.Errorf("statistics changed after rejected call: %+v", first.Manifest.Statistics)
	}
	custody := len(first.Manifest.ChainOfCustody)
	if custody == 0 || first.Manifest.ChainOfCustody[custody-1].Event != "finalized" {
		t.Errorf("custody chain changed after rejected call: %+v", first.Manifest.ChainOfCustody)
	}
}

func TestRecordingAfterFinalize_Rejected(t *testing.T) {
	ctx := context.Background()
	acc := newTestAccumulator(t, "exec-frozen")

	if _, err := acc.Finalize(ctx); err != nil {
		t.Fatal(err)
	}

	err := acc.AddLog(ctx, evidence.LogInfo, "n1", "late message")
	var afe *evidence.AlreadyFinalizedError
	if !errors.As(err, &afe) {
		t.Fatalf("AddLog() after finalize error = %v, want AlreadyFinalizedError", err)
	}
	if afe.Operation != "AddLog" {
		t.Errorf("Operation = %q", afe.Operation)
	}

	if err := acc.RecordLineage(ctx, evidence.DataLineageEntry{Source: "a", Destination: "b"}); err == nil {
		t.Error("RecordLineage() after finalize succeeded")
	}
	if _, err := acc.CaptureScreenshot(ctx, nil, ScreenshotOptions{}); err == nil {
		t.Error("CaptureScreenshot() after finalize succeeded")
	}
}

func TestFinalize_CountersAndCustody(t *testing.T) {
	ctx := context.Background()
	acc := newTestAccumulator(t, "exec-counters")

	for _, node := range []string{"n1", "n2", "n3"} {
		if err := acc.RecordNodeStart(ctx, node); err != nil {
			t.Fatal(err)
		}
	}
	acc.RecordNodeSuccess(ctx, "n1")
	acc.RecordNodeSuccess(ctx, "n2")
	acc.RecordNodeFailure(ctx, "n3", "timeout waiting for page")

	pack, err := acc.Finalize(ctx)
	if err != nil {
		t.Fatal(err)
	}

	st := pack.Manifest.Statistics
	if st.NodesExecuted != 3 || st.NodesSucceeded != 2 || st.NodesFailed != 1 {
		t.Errorf("statistics = %+v", st)
	}

	events := make([]string, 0, len(pack.Manifest.ChainOfCustody))
	for _, e := range pack.Manifest.ChainOfCustody {
		events = append(events, e.Event)
	}
	if events[0] != "created" || events[len(events)-1] != "finalized" {
		t.Errorf("custody events = %v", events)
	}
	if err := evidence.VerifyCustodyChain(pack.Manifest.ChainOfCustody); err != nil {
		t.Errorf("VerifyCustodyChain() error = %v", err)
	}
}

func TestCaptureScreenshot_NoPipelineRefuses(t *testing.T) {
	ctx := context.Background()
	acc := newTestAccumulator(t, "exec-nopipe")

	if _, err := acc.CaptureScreenshot(ctx, testPNG(t), ScreenshotOptions{}); err == nil {
		t.Error("CaptureScreenshot() stored a screenshot without a redaction pipeline")
	}
}

func TestCaptureScreenshot_SSNRedacted(t *testing.T) {
	ctx := context.Background()

	pipeline, err := redaction.NewPipeline(redaction.PipelineConfig{
		OCR: &redaction.StubProvider{
			Fragments: []redaction.DetectedText{
				{Text: "SSN: 123-45-6789", Box: image.Rect(10, 10, 110, 30), Confidence: 0.97},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	acc, err := New(Config{
		ExecutionID: "exec-shot",
		BotID:       "b",
		TenantID:    "t",
		Pipeline:    pipeline,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(acc.Close)

	original := testPNG(t)
	entry, err := acc.CaptureScreenshot(ctx, original, ScreenshotOptions{NodeID: "n1"})
	if err != nil {
		t.Fatalf("CaptureScreenshot() error = %v", err)
	}

	if !entry.RedactionApplied || entry.RedactedRegions != 1 {
		t.Errorf("entry = %+v, want one redacted region", entry)
	}
	if len(entry.RedactedTypes) != 1 || entry.RedactedTypes[0] != "ssn" {
		t.Errorf("RedactedTypes = %v, want [ssn]", entry.RedactedTypes)
	}
	if entry.SHA256 == evidence.HashBytes(original) {
		t.Error("stored hash equals the unredacted image hash")
	}

	pack, _ := acc.Finalize(ctx)
	if len(pack.Manifest.Classification) != 1 || pack.Manifest.Classification[0] != "ssn" {
		t.Errorf("classification = %v", pack.Manifest.Classification)
	}
}

func TestPersist_BeforeFinalizeRejected(t *testing.T) {
	acc := newTestAccumulator(t, "exec-early")
	if _, err := acc.Persist(context.Background(), t.TempDir()); err == nil {
		t.Error("Persist() succeeded before Finalize()")
	}
}
