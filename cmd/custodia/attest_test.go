package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"custodia-hq/custodia/pkg/attestation"
	"custodia-hq/custodia/pkg/evidence/accumulator"
)

func TestAttest_PersistedPack(t *testing.T) {
	packDir := buildPack(t, false)

	pack, err := accumulator.LoadPack(packDir)
	if err != nil {
		t.Fatalf("LoadPack() error = %v", err)
	}
	if pack.Manifest.ExecutionID == "" {
		t.Fatal("loaded pack has no execution id")
	}
	if len(pack.Logs) == 0 {
		t.Fatal("loaded pack has no logs")
	}

	generator := attestation.NewGenerator(attestation.GeneratorConfig{})
	att, err := generator.GenerateAttestation(context.Background(), pack, attestation.FrameworkSOC2)
	if err != nil {
		t.Fatalf("GenerateAttestation() error = %v", err)
	}
	if att.ManifestChecksum != pack.Manifest.Integrity.ManifestChecksum {
		t.Errorf("attestation checksum = %q, want %q", att.ManifestChecksum, pack.Manifest.Integrity.ManifestChecksum)
	}
	if !strings.Contains(att.RenderText(), "COMPLIANCE ATTESTATION") {
		t.Error("text report missing header")
	}
}

func TestRegisterCatalogs(t *testing.T) {
	dir := t.TempDir()
	catalog := `framework: INTERNAL
name: Internal Controls
controls:
  - id: INT-1
    name: Execution logging
    requiredEvidence:
      - execution_log
`
	if err := os.WriteFile(filepath.Join(dir, "internal.yaml"), []byte(catalog), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := attestation.NewRegistry()
	if err := registerCatalogs(registry, dir); err != nil {
		t.Fatalf("registerCatalogs() error = %v", err)
	}
	if _, err := registry.Catalog(attestation.Framework("INTERNAL")); err != nil {
		t.Errorf("custom catalog not registered: %v", err)
	}
}

func TestRegisterCatalogs_InvalidCatalog(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("controls: []"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := registerCatalogs(attestation.NewRegistry(), dir); err == nil {
		t.Error("registerCatalogs() expected error for invalid catalog")
	}
}
