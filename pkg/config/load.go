package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified
// path, applies defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention CUSTODIA_SECTION_FIELD (e.g. CUSTODIA_SIGNING_KEY_PATH)
// and always take precedence over file values.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CUSTODIA_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("CUSTODIA_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	if val := os.Getenv("CUSTODIA_REDACTION_OCR_ENDPOINT"); val != "" {
		cfg.Redaction.OCR.Endpoint = val
	}
	if val := os.Getenv("CUSTODIA_REDACTION_OCR_API_KEY"); val != "" {
		cfg.Redaction.OCR.APIKey = val
	}

	if val := os.Getenv("CUSTODIA_SIGNING_KEY_PATH"); val != "" {
		cfg.Signing.KeyPath = val
	}
	if val := os.Getenv("CUSTODIA_SIGNING_CERT_PATH"); val != "" {
		cfg.Signing.CertPath = val
	}
	if val := os.Getenv("CUSTODIA_SIGNING_TSA_URL"); val != "" {
		cfg.Signing.TSA.URL = val
	}

	if val := os.Getenv("CUSTODIA_RETENTION_STORAGE_ROOT"); val != "" {
		cfg.Retention.StorageRoot = val
	}
	if val := os.Getenv("CUSTODIA_RETENTION_INDEX_PATH"); val != "" {
		cfg.Retention.IndexPath = val
	}
	if val := os.Getenv("CUSTODIA_RETENTION_SWEEP_SCHEDULE"); val != "" {
		cfg.Retention.SweepSchedule = val
	}

	if val := os.Getenv("CUSTODIA_SIEM_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.SIEM.Enabled = b
		}
	}
	if val := os.Getenv("CUSTODIA_SIEM_FLUSH_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.SIEM.FlushInterval = d
		}
	}
	if val := os.Getenv("CUSTODIA_SIEM_DEAD_LETTER_PATH"); val != "" {
		cfg.SIEM.DeadLetterPath = val
	}

	if val := os.Getenv("CUSTODIA_ATTESTATION_CATALOG_DIR"); val != "" {
		cfg.Attestation.CatalogDir = val
	}
}
