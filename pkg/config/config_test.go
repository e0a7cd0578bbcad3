package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `logging:
  level: debug
  format: text
redaction:
  image_style: pixelate
  ocr:
    endpoint: "https://ocr.internal.example/v1/extract"
    api_key: "ocr-key"
signing:
  algorithm: "RSA-4096-SHA256"
  key_path: "/etc/custodia/sign.key"
  cert_path: "/etc/custodia/sign.crt"
  tsa:
    url: "https://tsa.example/tsr"
retention:
  default_policy: regulatory
  immutable: true
  sweep_schedule: "0 */6 * * *"
siem:
  enabled: true
  batch_size: 25
  backends:
    - type: hec
      url: "https://splunk.example:8088/services/collector/event"
      token: "hec-token"
attestation:
  frameworks: [HIPAA, GDPR]
  partial_weight: 0.25
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "custodia.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.Logging.RedactPII {
		t.Error("RedactPII default lost")
	}
	if cfg.Redaction.ImageStyle != "pixelate" || cfg.Redaction.OCR.Timeout != DefaultOCRTimeout {
		t.Errorf("redaction = %+v", cfg.Redaction)
	}
	if cfg.Signing.Algorithm != "RSA-4096-SHA256" || !cfg.Signing.Enabled {
		t.Errorf("signing = %+v", cfg.Signing)
	}
	if cfg.Retention.DefaultPolicy != "regulatory" || cfg.Retention.StorageRoot != DefaultStorageRoot {
		t.Errorf("retention = %+v", cfg.Retention)
	}
	if cfg.SIEM.BatchSize != 25 || cfg.SIEM.BufferSize != DefaultSIEMBufferSize {
		t.Errorf("siem = %+v", cfg.SIEM)
	}
	if cfg.SIEM.Backends[0].Name != "hec" || cfg.SIEM.Backends[0].Timeout != DefaultSIEMBackendTimeout {
		t.Errorf("backend = %+v", cfg.SIEM.Backends[0])
	}
	if len(cfg.Attestation.Frameworks) != 2 || cfg.Attestation.PartialWeight != 0.25 {
		t.Errorf("attestation = %+v", cfg.Attestation)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "signing:\n  generate_self_signed: true\n"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logging.Level != DefaultLogLevel || cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.Signing.Algorithm != DefaultAlgorithm {
		t.Errorf("algorithm = %q", cfg.Signing.Algorithm)
	}
	if cfg.Retention.SweepSchedule != DefaultSweepSchedule {
		t.Errorf("sweep schedule = %q", cfg.Retention.SweepSchedule)
	}
	if cfg.SIEM.FlushInterval != 5*time.Second {
		t.Errorf("flush interval = %v", cfg.SIEM.FlushInterval)
	}
	if cfg.Attestation.PartialWeight != DefaultPartialWeight {
		t.Errorf("partial weight = %v", cfg.Attestation.PartialWeight)
	}
}

func TestLoadConfig_ExplicitFalseSurvivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "logging:\n  redact_pii: false\nsigning:\n  enabled: false\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.RedactPII {
		t.Error("explicit redact_pii: false overridden by default")
	}
	if cfg.Signing.Enabled {
		t.Error("explicit signing.enabled: false overridden by default")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig() succeeded on a missing file")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	body := `logging:
  level: loud
  format: xml
redaction:
  image_style: sparkle
signing:
  algorithm: "ROT13"
retention:
  default_policy: forever
siem:
  enabled: true
`
	_, err := LoadConfig(writeConfig(t, body))
	if err == nil {
		t.Fatal("LoadConfig() accepted an invalid configuration")
	}
	msg := err.Error()
	for _, want := range []string{
		"logging.level", "logging.format", "redaction.image_style",
		"signing.algorithm", "retention.default_policy", "siem.backends",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error does not mention %s: %v", want, msg)
		}
	}
}

func TestValidate_SigningKeyPair(t *testing.T) {
	body := `signing:
  key_path: "/etc/custodia/sign.key"
`
	if _, err := LoadConfig(writeConfig(t, body)); err == nil {
		t.Error("LoadConfig() accepted a key without a certificate")
	}
}

func TestValidate_BadRedactPattern(t *testing.T) {
	body := `logging:
  redact_patterns:
    - name: employee_id
      pattern: "EMP-[0-9"
      replacement: "EMP-***"
signing:
  generate_self_signed: true
`
	if _, err := LoadConfig(writeConfig(t, body)); err == nil {
		t.Error("LoadConfig() accepted an invalid redact pattern")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Setenv("CUSTODIA_LOGGING_LEVEL", "warn")
	t.Setenv("CUSTODIA_SIGNING_TSA_URL", "https://tsa.override.example/tsr")
	t.Setenv("CUSTODIA_SIEM_FLUSH_INTERVAL", "250ms")

	cfg, err := LoadConfigWithEnvOverrides(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Signing.TSA.URL != "https://tsa.override.example/tsr" {
		t.Errorf("tsa url = %q", cfg.Signing.TSA.URL)
	}
	if cfg.SIEM.FlushInterval != 250*time.Millisecond {
		t.Errorf("flush interval = %v", cfg.SIEM.FlushInterval)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	t.Setenv("CUSTODIA_LOGGING_LEVEL", "shouting")

	if _, err := LoadConfigWithEnvOverrides(writeConfig(t, sampleYAML)); err == nil {
		t.Error("invalid override passed validation")
	}
}
