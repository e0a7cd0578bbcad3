// Package logging provides structured logging with PII redaction for
// Custodia components.
//
// Logger wraps log/slog with a configurable level and format and an
// optional Redactor that masks sensitive values in log fields, both by
// key name (password, token, ssn) and by content pattern (emails,
// card numbers, bearer tokens). Context helpers carry execution,
// tenant, bot, node, and pack identifiers so every log line from one
// execution correlates.
//
// InstallDefault wires the logger into slog.Default, which the
// evidence subsystems use for their component-scoped loggers.
package logging
