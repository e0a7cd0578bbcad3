package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// FieldError represents a validation error for a specific
// configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g. "signing.algorithm").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates all field errors found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

var (
	validLogLevels   = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats  = map[string]bool{"json": true, "text": true}
	validImageStyles = map[string]bool{"solid": true, "blur": true, "pixelate": true, "pattern": true}
	validAlgorithms  = map[string]bool{"RSA-4096-SHA256": true, "ECDSA-P384-SHA384": true, "ECDSA-P521-SHA512": true}
	validPolicies    = map[string]bool{
		"temporary": true, "short_term": true, "medium_term": true, "standard": true,
		"regulatory": true, "extended": true, "permanent": true,
	}
	validBackendTypes = map[string]bool{"hec": true, "logs_api": true, "bulk_index": true}
)

// Validate checks the entire configuration and returns a
// ValidationError collecting every rule violation, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateRedaction(&cfg.Redaction)...)
	errs = append(errs, validateSigning(&cfg.Signing)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateSIEM(&cfg.SIEM)...)
	errs = append(errs, validateAttestation(&cfg.Attestation)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError
	if !validLogLevels[cfg.Level] {
		errs = append(errs, FieldError{"logging.level", fmt.Sprintf("unknown level %q", cfg.Level)})
	}
	if !validLogFormats[cfg.Format] {
		errs = append(errs, FieldError{"logging.format", fmt.Sprintf("unknown format %q", cfg.Format)})
	}
	for i, p := range cfg.RedactPatterns {
		field := fmt.Sprintf("logging.redact_patterns[%d]", i)
		if p.Name == "" {
			errs = append(errs, FieldError{field + ".name", "pattern name is required"})
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{field + ".pattern", fmt.Sprintf("invalid regular expression: %v", err)})
		}
	}
	return errs
}

func validateRedaction(cfg *RedactionConfig) []FieldError {
	var errs []FieldError
	if !validImageStyles[cfg.ImageStyle] {
		errs = append(errs, FieldError{"redaction.image_style", fmt.Sprintf("unknown style %q", cfg.ImageStyle)})
	}
	if cfg.OCR.Endpoint != "" {
		if _, err := url.ParseRequestURI(cfg.OCR.Endpoint); err != nil {
			errs = append(errs, FieldError{"redaction.ocr.endpoint", fmt.Sprintf("invalid URL: %v", err)})
		}
	}
	for name, pattern := range cfg.CustomPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, FieldError{
				"redaction.custom_patterns." + name,
				fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}
	return errs
}

func validateSigning(cfg *SigningConfig) []FieldError {
	var errs []FieldError
	if !validAlgorithms[cfg.Algorithm] {
		errs = append(errs, FieldError{"signing.algorithm", fmt.Sprintf("unknown algorithm %q", cfg.Algorithm)})
	}
	if cfg.Enabled {
		hasKeyPair := cfg.KeyPath != "" && cfg.CertPath != ""
		if !hasKeyPair && !cfg.GenerateSelfSigned {
			errs = append(errs, FieldError{"signing", "key_path and cert_path are required unless generate_self_signed is set"})
		}
		if (cfg.KeyPath == "") != (cfg.CertPath == "") {
			errs = append(errs, FieldError{"signing", "key_path and cert_path must be set together"})
		}
	}
	if cfg.TSA.URL != "" {
		if _, err := url.ParseRequestURI(cfg.TSA.URL); err != nil {
			errs = append(errs, FieldError{"signing.tsa.url", fmt.Sprintf("invalid URL: %v", err)})
		}
	}
	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError
	if !validPolicies[cfg.DefaultPolicy] {
		errs = append(errs, FieldError{"retention.default_policy", fmt.Sprintf("unknown policy %q", cfg.DefaultPolicy)})
	}
	if cfg.StorageRoot == "" {
		errs = append(errs, FieldError{"retention.storage_root", "storage root is required"})
	}
	return errs
}

func validateSIEM(cfg *SIEMConfig) []FieldError {
	var errs []FieldError
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.Backends) == 0 {
		errs = append(errs, FieldError{"siem.backends", "at least one backend is required when siem is enabled"})
	}
	for i, b := range cfg.Backends {
		field := fmt.Sprintf("siem.backends[%d]", i)
		if !validBackendTypes[b.Type] {
			errs = append(errs, FieldError{field + ".type", fmt.Sprintf("unknown backend type %q", b.Type)})
		}
		if b.URL == "" {
			errs = append(errs, FieldError{field + ".url", "backend URL is required"})
		} else if _, err := url.ParseRequestURI(b.URL); err != nil {
			errs = append(errs, FieldError{field + ".url", fmt.Sprintf("invalid URL: %v", err)})
		}
	}
	return errs
}

func validateAttestation(cfg *AttestationConfig) []FieldError {
	var errs []FieldError
	if cfg.PartialWeight < 0 || cfg.PartialWeight > 1 {
		errs = append(errs, FieldError{"attestation.partial_weight", "must be between 0 and 1"})
	}
	return errs
}
