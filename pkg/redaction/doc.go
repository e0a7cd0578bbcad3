// Package redaction detects and removes sensitive data from text and
// screenshots before it reaches evidence storage.
//
// # Text Detection
//
// The Detector matches a table of per-category patterns (SSN, credit
// card, phone, email, and so on) plus caller-supplied custom patterns.
// Tokens that no pattern matches are still flagged when they look like
// data and a nearby token matches a category keyword, which catches
// labeled values such as "SSN: 123 45 6789" written in unusual formats.
//
// # Image Redaction
//
// Screenshots are redacted by locating text with a pluggable OCR
// provider, running the detector over each fragment, and painting the
// matching regions with one of four styles (solid, blur, pixelate,
// diagonal pattern). The style only changes appearance, never which
// regions are covered.
//
// # Failure Mode
//
// The pipeline fails closed: when OCR, detection, or encoding fails the
// caller receives a PipelineError and no image bytes. Callers that
// prefer availability over the redaction guarantee must opt in with
// AllowUnredactedOnError, which logs at Error level and marks the
// result as failed-open.
package redaction
