package config

import "time"

// Default values for configuration fields.
const (
	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultRedactPII = true

	// Redaction defaults
	DefaultImageStyle = "solid"
	DefaultOCRTimeout = 15 * time.Second

	// Signing defaults
	DefaultSigningEnabled = true
	DefaultAlgorithm      = "ECDSA-P384-SHA384"
	DefaultTSATimeout     = 10 * time.Second

	// Retention defaults
	DefaultRetentionPolicy = "standard"
	DefaultSweepSchedule   = "0 3 * * *"
	DefaultStorageRoot     = "data/packs"
	DefaultIndexPath       = "data/packs.db"

	// SIEM defaults
	DefaultSIEMBufferSize     = 1024
	DefaultSIEMBatchSize      = 50
	DefaultSIEMFlushInterval  = 5 * time.Second
	DefaultSIEMRetryAttempts  = 3
	DefaultSIEMBackendTimeout = 10 * time.Second

	// Attestation defaults
	DefaultPartialWeight = 0.5
)

// New returns a Config carrying the boolean defaults. Unmarshal YAML
// over it so an absent key keeps the default while an explicit false
// still wins, then call ApplyDefaults for the rest.
func New() *Config {
	return &Config{
		Logging: LoggingConfig{RedactPII: DefaultRedactPII},
		Signing: SigningConfig{Enabled: DefaultSigningEnabled},
	}
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Redaction.ImageStyle == "" {
		cfg.Redaction.ImageStyle = DefaultImageStyle
	}
	if cfg.Redaction.OCR.Timeout <= 0 {
		cfg.Redaction.OCR.Timeout = DefaultOCRTimeout
	}

	if cfg.Signing.Algorithm == "" {
		cfg.Signing.Algorithm = DefaultAlgorithm
	}
	if cfg.Signing.TSA.Timeout <= 0 {
		cfg.Signing.TSA.Timeout = DefaultTSATimeout
	}

	if cfg.Retention.DefaultPolicy == "" {
		cfg.Retention.DefaultPolicy = DefaultRetentionPolicy
	}
	if cfg.Retention.SweepSchedule == "" {
		cfg.Retention.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.Retention.StorageRoot == "" {
		cfg.Retention.StorageRoot = DefaultStorageRoot
	}
	if cfg.Retention.IndexPath == "" {
		cfg.Retention.IndexPath = DefaultIndexPath
	}

	if cfg.SIEM.BufferSize <= 0 {
		cfg.SIEM.BufferSize = DefaultSIEMBufferSize
	}
	if cfg.SIEM.BatchSize <= 0 {
		cfg.SIEM.BatchSize = DefaultSIEMBatchSize
	}
	if cfg.SIEM.FlushInterval <= 0 {
		cfg.SIEM.FlushInterval = DefaultSIEMFlushInterval
	}
	if cfg.SIEM.RetryAttempts == 0 {
		cfg.SIEM.RetryAttempts = DefaultSIEMRetryAttempts
	}
	for i := range cfg.SIEM.Backends {
		b := &cfg.SIEM.Backends[i]
		if b.Name == "" {
			b.Name = b.Type
		}
		if b.Timeout <= 0 {
			b.Timeout = DefaultSIEMBackendTimeout
		}
	}

	if len(cfg.Attestation.Frameworks) == 0 {
		cfg.Attestation.Frameworks = []string{"SOC2"}
	}
	if cfg.Attestation.PartialWeight == 0 {
		cfg.Attestation.PartialWeight = DefaultPartialWeight
	}
}
