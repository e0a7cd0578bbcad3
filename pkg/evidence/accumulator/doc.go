// Package accumulator collects evidence during a bot execution and
// turns it into an immutable evidence pack.
//
// An accumulator moves through four states:
//
//	created → recording → finalized → persisted
//
// Recording methods redact every free-text field before storage and
// reject calls once the accumulator is finalized. A process-wide
// registry enforces one live accumulator per execution id. Finalize is
// idempotent and returns the same immutable pack on repeat calls.
//
// Persist writes the fixed pack layout, computes a SHA-256 for every
// file, then writes the checksum index and finally the manifest, whose
// checksum covers all prior content. A configured signer adds a
// signature over that checksum; signing failure never blocks
// persistence, the pack is written unsigned with a warning custody
// event and the error is returned alongside the path.
package accumulator
