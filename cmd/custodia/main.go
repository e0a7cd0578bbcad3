// Custodia is an audit evidence and attestation toolkit for RPA bot
// executions.
//
// It accumulates tamper-evident evidence packs during bot runs and
// provides:
//   - PII redaction for logs and screenshots
//   - Cryptographic signing with optional trusted timestamps
//   - Retention policies, legal holds, and auditable deletion
//   - SIEM forwarding (CEF, LEEF, HEC, bulk indexing)
//   - Compliance attestation reports (HIPAA, SOC2, PCI-DSS, GDPR)
//
// Usage:
//
//	# Verify a persisted evidence pack
//	custodia verify ./data/packs/exec-42.evp
//
//	# Generate a compliance attestation
//	custodia attest ./data/packs/exec-42.evp --framework HIPAA
//
//	# List indexed packs
//	custodia packs list --time-range "2026-08-01T00:00:00Z/2026-08-25T00:00:00Z"
//
//	# Generate a development signing keypair
//	custodia keys generate
package main

func main() {
	Execute()
}
