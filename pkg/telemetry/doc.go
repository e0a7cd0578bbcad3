// Package telemetry provides observability building blocks for Custodia.
//
// # Components
//
//   - logging: Structured logging with PII redaction
//
// Metric collectors live next to the subsystems they observe (evidence
// accumulation, SIEM forwarding) as package-level Prometheus collectors
// rather than behind a central facade.
//
// # PII Protection
//
// By default, all PII is automatically redacted from logs:
//
//   - Emails: user@example.com → ***@***
//   - SSN: 123-45-6789 → ***-**-****
//   - Card numbers: 4111 1111 1111 1111 → ****-****-****-****
//   - Bearer tokens and API keys
//
// Custom redaction patterns can be configured through
// logging.redact_patterns.
package telemetry
