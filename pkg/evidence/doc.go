// Package evidence defines the evidence pack data model for automated
// process executions. An evidence pack is an immutable audit bundle that
// proves what a bot execution did, which sensitive-data categories it
// touched, and whether applicable compliance controls were satisfied.
//
// # Architecture
//
// The evidence system consists of four layers:
//
//  1. Accumulator - Collects redacted audit entries during an execution
//  2. Pack - The finalized, immutable bundle (manifest + entry files)
//  3. Storage Backend - Persists packs and retention metadata
//  4. Retention Manager - Enforces retention policies and legal holds
//
// # Evidence Packs
//
// Each pack captures:
//   - Execution metadata (bot, tenant, environment, timing)
//   - Data lineage entries (source, destination, classification)
//   - Agent decisions with redacted inputs and reasoning
//   - Compliance check results per framework control
//   - Redacted screenshots with per-file SHA-256 hashes
//   - Execution logs (redacted at write time)
//   - A chain of custody recording every lifecycle event
//
// # Integrity Model
//
// Every file in a persisted pack has a SHA-256 entry in the checksum
// index. The manifest checksum is computed over all other pack content
// and written absolutely last, so a verifier that trusts the manifest
// can detect tampering with any other file. An optional digital
// signature covers the manifest checksum.
//
// # Redaction Guarantee
//
// No entity in this package ever stores an unredacted sensitive value.
// The accumulator passes every free-text field through the redaction
// detector before it reaches these types; screenshots are redacted
// before their bytes are retained.
//
// # Basic Usage
//
//	acc, err := accumulator.New(accumulator.Config{
//	    ExecutionID: "exec-42",
//	    BotID:       "invoice-bot",
//	    TenantID:    "acme",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	acc.RecordLineage(ctx, evidence.DataLineageEntry{
//	    Source:         "erp.invoices",
//	    Destination:    "bank.payments",
//	    Operation:      "transform",
//	    Classification: []string{"account_number"},
//	})
//
//	pack, err := acc.Finalize(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	path, err := acc.Persist(ctx, "/var/lib/custodia/packs")
package evidence
