// Package config loads, defaults, and validates Custodia's YAML
// configuration.
//
// Configuration is a single file with sections for logging, redaction,
// signing, retention, SIEM forwarding, and attestation. LoadConfig
// reads and validates a file; LoadConfigWithEnvOverrides additionally
// honors CUSTODIA_SECTION_FIELD environment variables, which always
// win over file values. Validation collects every violation into one
// ValidationError instead of stopping at the first.
package config
