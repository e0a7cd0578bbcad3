package attestation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"custodia-hq/custodia/pkg/evidence"
)

const customCatalogYAML = `framework: "INTERNAL"
name: "Internal Audit Baseline"
controls:
  - id: "IA-1"
    name: "Execution Logging"
    requiredEvidence: [audit_log]
  - id: "IA-2"
    name: "Tamper Evidence"
    requiredEvidence: [checksum_index, digital_signature]
`

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()

	frameworks := r.Frameworks()
	want := []Framework{FrameworkGDPR, FrameworkHIPAA, FrameworkPCIDSS, FrameworkSOC2}
	if len(frameworks) != len(want) {
		t.Fatalf("Frameworks() = %v", frameworks)
	}
	for i := range want {
		if frameworks[i] != want[i] {
			t.Errorf("Frameworks()[%d] = %s, want %s", i, frameworks[i], want[i])
		}
	}

	c, err := r.Catalog(FrameworkHIPAA)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Controls) == 0 {
		t.Error("HIPAA catalog has no controls")
	}
	if _, err := r.Catalog(Framework("NIST-800-53")); err == nil {
		t.Error("Catalog() returned an unregistered framework")
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "internal.yaml")
	if err := os.WriteFile(path, []byte(customCatalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCatalogFile() error = %v", err)
	}
	if c.Framework != "INTERNAL" || len(c.Controls) != 2 {
		t.Errorf("catalog = %+v", c)
	}
	if c.Controls[1].RequiredEvidence[1] != EvidenceSignature {
		t.Errorf("control = %+v", c.Controls[1])
	}
}

func TestLoadCatalogFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
	}{
		{"not yaml", "{{{"},
		{"missing framework", "name: x\ncontrols:\n  - id: a\n    name: a\n"},
		{"no controls", "framework: X\nname: x\n"},
		{"duplicate ids", "framework: X\ncontrols:\n  - id: a\n  - id: a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadCatalogFile(path); err == nil {
				t.Error("LoadCatalogFile() accepted an invalid catalog")
			}
		})
	}
}

func TestCatalogWatcher_LoadsAtStartup(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "internal.yaml"), []byte(customCatalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	w, err := NewCatalogWatcher(dir, r)
	if err != nil {
		t.Fatalf("NewCatalogWatcher() error = %v", err)
	}
	defer w.Stop()

	if _, err := r.Catalog(Framework("INTERNAL")); err != nil {
		t.Errorf("startup catalog not registered: %v", err)
	}
}

func TestCatalogWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	w, err := NewCatalogWatcher(dir, r)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan error, 1)
	go func() { watchDone <- w.Watch(ctx) }()
	defer func() {
		w.Stop()
		<-watchDone
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "internal.yaml"), []byte(customCatalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := r.Catalog(Framework("INTERNAL")); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("custom catalog not loaded after write")
}

func TestCatalogWatcher_SkipsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("{{{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "internal.yaml"), []byte(customCatalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	w, err := NewCatalogWatcher(dir, r)
	if err != nil {
		t.Fatalf("NewCatalogWatcher() error = %v", err)
	}
	defer w.Stop()

	if _, err := r.Catalog(Framework("INTERNAL")); err != nil {
		t.Errorf("valid catalog skipped because a sibling is broken: %v", err)
	}
	if got, err := r.Catalog(FrameworkHIPAA); err != nil || got == nil {
		t.Error("built-in catalog lost during load")
	}
}

// Ensures an evaluation against a custom catalog exercises the same
// status tiers as the built-ins.
func TestCustomCatalog_Evaluates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Catalog{
		Framework: "INTERNAL",
		Name:      "Internal Audit Baseline",
		Controls: []Control{
			{ID: "IA-1", Name: "Execution Logging", RequiredEvidence: []string{EvidenceAuditLog}},
			{ID: "IA-3", Name: "Manual Review Gate"},
		},
	}); err != nil {
		t.Fatal(err)
	}

	evals, err := NewEvaluator(r).EvaluateFramework("INTERNAL", EvidenceIndex{
		EvidenceAuditLog: {"logs/execution.json"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if evals[0].Status != evidence.StatusPassed {
		t.Errorf("IA-1 status = %s", evals[0].Status)
	}
	if evals[1].Status != evidence.StatusNotApplicable {
		t.Errorf("IA-3 status = %s", evals[1].Status)
	}
}
