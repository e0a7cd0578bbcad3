package config

import "time"

// Config is the root configuration structure for Custodia. It contains
// all configuration sections for redaction, signing, retention, SIEM
// forwarding, attestation, and logging.
type Config struct {
	// Logging contains structured logging configuration including
	// level, format, and PII redaction patterns.
	Logging LoggingConfig `yaml:"logging"`

	// Redaction contains sensitive-data detection and image redaction
	// configuration used when capturing evidence.
	Redaction RedactionConfig `yaml:"redaction"`

	// Signing contains signature and timestamp-authority configuration
	// for evidence packs and attestations.
	Signing SigningConfig `yaml:"signing"`

	// Retention contains retention policy and sweep scheduling
	// configuration for persisted packs.
	Retention RetentionConfig `yaml:"retention"`

	// SIEM contains audit-event forwarding configuration.
	SIEM SIEMConfig `yaml:"siem"`

	// Attestation contains compliance attestation configuration.
	Attestation AttestationConfig `yaml:"attestation"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables automatic PII redaction of log fields.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom PII redaction patterns applied in
	// addition to the built-in set.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern is a custom log redaction rule.
type RedactPattern struct {
	// Name identifies the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the substitution text.
	Replacement string `yaml:"replacement"`
}

// RedactionConfig contains evidence redaction configuration.
type RedactionConfig struct {
	// ImageStyle is how redacted screenshot regions are obscured
	// ("solid", "blur", "pixelate", "pattern").
	// Default: "solid"
	ImageStyle string `yaml:"image_style"`

	// AllowUnredactedOnError permits storing the unredacted image when
	// the redaction pipeline fails. Leave false to fail closed.
	// Default: false
	AllowUnredactedOnError bool `yaml:"allow_unredacted_on_error"`

	// OCR configures the text-extraction provider for screenshots.
	OCR OCRConfig `yaml:"ocr"`

	// CustomPatterns adds caller-defined sensitive-data patterns to the
	// detector, keyed by sensitive type name.
	CustomPatterns map[string]string `yaml:"custom_patterns"`
}

// OCRConfig contains OCR provider configuration.
type OCRConfig struct {
	// Endpoint is the HTTP OCR service URL. Empty disables screenshot
	// text detection; explicit regions still redact.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against the OCR service.
	APIKey string `yaml:"api_key"`

	// Timeout bounds one OCR request.
	// Default: 15s
	Timeout time.Duration `yaml:"timeout"`
}

// SigningConfig contains evidence signing configuration.
type SigningConfig struct {
	// Enabled controls whether packs and attestations are signed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Algorithm selects the signature algorithm ("RSA-4096-SHA256",
	// "ECDSA-P384-SHA384", "ECDSA-P521-SHA512").
	// Default: "ECDSA-P384-SHA384"
	Algorithm string `yaml:"algorithm"`

	// KeyPath and CertPath locate the PEM private key and certificate.
	// Both empty with GenerateSelfSigned set generates a development
	// certificate at startup.
	KeyPath  string `yaml:"key_path"`
	CertPath string `yaml:"cert_path"`

	// GenerateSelfSigned generates an in-memory self-signed certificate
	// when no key pair is configured. Development only.
	// Default: false
	GenerateSelfSigned bool `yaml:"generate_self_signed"`

	// TSA configures the RFC 3161 timestamp authority.
	TSA TSAConfig `yaml:"tsa"`
}

// TSAConfig contains timestamp authority configuration.
type TSAConfig struct {
	// URL is the timestamp authority endpoint. Empty disables trusted
	// timestamps; signatures carry local timestamps with a warning.
	URL string `yaml:"url"`

	// Timeout bounds one timestamp request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// RetentionConfig contains retention manager configuration.
type RetentionConfig struct {
	// DefaultPolicy is applied to packs persisted without an explicit
	// policy ("temporary", "short_term", "medium_term", "standard",
	// "regulatory", "extended", "permanent").
	// Default: "standard"
	DefaultPolicy string `yaml:"default_policy"`

	// Immutable locks the storage object for the retention window.
	// Default: false
	Immutable bool `yaml:"immutable"`

	// SweepSchedule is the cron expression for deletion sweeps. Empty
	// disables scheduled sweeps.
	// Default: "0 3 * * *"
	SweepSchedule string `yaml:"sweep_schedule"`

	// StorageRoot is the directory packs are persisted under.
	// Default: "data/packs"
	StorageRoot string `yaml:"storage_root"`

	// IndexPath is the SQLite pack index location.
	// Default: "data/packs.db"
	IndexPath string `yaml:"index_path"`
}

// SIEMConfig contains audit-event forwarding configuration.
type SIEMConfig struct {
	// Enabled controls whether events are forwarded at all.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// BufferSize bounds the event intake buffer.
	// Default: 1024
	BufferSize int `yaml:"buffer_size"`

	// BatchSize is the maximum events per delivery batch.
	// Default: 50
	BatchSize int `yaml:"batch_size"`

	// FlushInterval triggers delivery of a partial batch.
	// Default: 5s
	FlushInterval time.Duration `yaml:"flush_interval"`

	// RetryAttempts is the delivery attempt count per flush per backend.
	// Default: 3
	RetryAttempts uint `yaml:"retry_attempts"`

	// DeadLetterPath is the SQLite dead-letter store location. Empty
	// keeps dead-lettered events in memory only.
	DeadLetterPath string `yaml:"dead_letter_path"`

	// Backends lists the delivery destinations.
	Backends []SIEMBackendConfig `yaml:"backends"`
}

// SIEMBackendConfig configures one SIEM delivery destination.
type SIEMBackendConfig struct {
	// Type selects the backend implementation ("hec", "logs_api",
	// "bulk_index").
	Type string `yaml:"type"`

	// Name identifies the backend in logs and metrics. Defaults to the
	// type.
	Name string `yaml:"name"`

	// URL is the backend endpoint.
	URL string `yaml:"url"`

	// Token authenticates HEC backends.
	Token string `yaml:"token"`

	// APIKey authenticates logs-API backends.
	APIKey string `yaml:"api_key"`

	// Index is the target index for bulk-index backends.
	Index string `yaml:"index"`

	// Timeout bounds one delivery request.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// AttestationConfig contains attestation generation configuration.
type AttestationConfig struct {
	// CatalogDir is a directory of custom YAML control catalogs,
	// hot-reloaded while running. Empty uses only the built-ins.
	CatalogDir string `yaml:"catalog_dir"`

	// Frameworks lists the frameworks to attest against by default.
	// Default: ["SOC2"]
	Frameworks []string `yaml:"frameworks"`

	// PartialWeight is the score credit for partially met controls.
	// Default: 0.5
	PartialWeight float64 `yaml:"partial_weight"`
}
