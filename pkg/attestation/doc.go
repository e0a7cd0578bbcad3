// Package attestation evaluates evidence packs against compliance
// control catalogs and produces signed attestation reports.
//
// # Architecture
//
// A Registry holds control catalogs (built-in HIPAA, SOC2, PCI-DSS,
// and GDPR plus custom YAML catalogs, hot-reloaded by CatalogWatcher).
// The Evaluator checks each control's required evidence types against
// the files a pack actually produced; compliance results recorded
// during the execution overlay the evaluation, so a recorded failure
// always surfaces. The Generator bundles the evaluations with the
// pack's manifest checksum into an Attestation, signs it, and renders
// JSON or a text report.
package attestation
