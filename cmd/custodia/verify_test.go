package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"custodia-hq/custodia/pkg/evidence"
	"custodia-hq/custodia/pkg/evidence/accumulator"
	"custodia-hq/custodia/pkg/signing"
)

func buildPack(t *testing.T, signed bool) string {
	t.Helper()
	ctx := context.Background()

	cfg := accumulator.Config{
		ExecutionID: "exec-" + t.Name(),
		BotID:       "invoice-bot",
		TenantID:    "tenant-1",
	}
	if signed {
		key, cert, err := signing.GenerateSelfSigned(signing.SelfSignedConfig{
			Algorithm:  signing.AlgECDSAP384SHA384,
			CommonName: "verify-test",
		})
		if err != nil {
			t.Fatalf("GenerateSelfSigned() error = %v", err)
		}
		signer, err := signing.NewSigner(key, cert, signing.SignerConfig{Algorithm: signing.AlgECDSAP384SHA384})
		if err != nil {
			t.Fatalf("NewSigner() error = %v", err)
		}
		cfg.Signer = signer
	}

	acc, err := accumulator.New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer acc.Close()

	if err := acc.AddLog(ctx, evidence.LogInfo, "n1", "processed record 7"); err != nil {
		t.Fatalf("AddLog() error = %v", err)
	}
	if _, err := acc.Finalize(ctx); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	path, err := acc.Persist(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	return path
}

func TestVerifyPackDir_CleanPack(t *testing.T) {
	packDir := buildPack(t, false)

	report, err := verifyPackDir(packDir, nil)
	if err != nil {
		t.Fatalf("verifyPackDir() error = %v", err)
	}
	if !report.Valid {
		t.Errorf("clean pack reported invalid: %+v", report)
	}
	if report.Signed {
		t.Error("unsigned pack reported as signed")
	}
	if report.FilesChecked == 0 {
		t.Error("no files checked")
	}
	if !report.CustodyIntact {
		t.Error("clean pack reported a broken custody chain")
	}
}

func TestVerifyPackDir_CustodyTamperDetected(t *testing.T) {
	packDir := buildPack(t, false)

	// The manifest checksum does not cover the manifest itself, so a
	// rewritten custody event is only caught by the hash chain.
	manifestPath := filepath.Join(packDir, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	var m evidence.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	m.ChainOfCustody[0].Actor = "intruder"
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(manifestPath, out, 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := verifyPackDir(packDir, nil)
	if err != nil {
		t.Fatalf("verifyPackDir() error = %v", err)
	}
	if report.CustodyIntact {
		t.Error("rewritten custody event went undetected")
	}
	if report.Valid {
		t.Error("pack with a broken custody chain reported valid")
	}
}

func TestVerifyPackDir_DetectsTampering(t *testing.T) {
	packDir := buildPack(t, false)

	logsPath := filepath.Join(packDir, "logs", "execution.json")
	if err := os.WriteFile(logsPath, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := verifyPackDir(packDir, nil)
	if err != nil {
		t.Fatalf("verifyPackDir() error = %v", err)
	}
	if report.Valid {
		t.Error("tampered pack reported valid")
	}
	found := false
	for _, p := range report.Mismatched {
		if p == "logs/execution.json" {
			found = true
		}
	}
	if !found {
		t.Errorf("tampered file not in mismatched list: %v", report.Mismatched)
	}
}

func TestVerifyPackDir_SignedPack(t *testing.T) {
	packDir := buildPack(t, true)

	report, err := verifyPackDir(packDir, nil)
	if err != nil {
		t.Fatalf("verifyPackDir() error = %v", err)
	}
	if !report.Signed {
		t.Fatal("signed pack reported as unsigned")
	}
	if !report.Valid || !report.Signature.Valid {
		t.Errorf("signed pack failed verification: %+v", report.Signature)
	}
}

func TestVerifyPackDir_MissingPack(t *testing.T) {
	if _, err := verifyPackDir(filepath.Join(t.TempDir(), "nope.evp"), nil); err == nil {
		t.Error("verifyPackDir() expected error for missing pack")
	}
}
