// Package signing provides digital signatures and trusted timestamps
// for evidence packs and attestation reports.
//
// Signatures use RSA-4096 with PSS padding or ECDSA on P-384/P-521,
// paired with SHA-256/384/512. Each signature is wrapped in a
// SignatureMetadata document carrying the content hash, certificate
// details, and an RFC 3161 timestamp token when a Timestamp Authority
// is configured. TSA failure degrades to a local timestamp with an
// explicit warning; it never blocks signing.
//
// Verification checks the signature, certificate temporal validity,
// chain trust against caller-supplied roots, the timestamp token, and
// a recomputed content hash. A result is valid only when signature,
// certificate validity, and content hash all pass with zero errors;
// chain and timestamp findings surface as warnings.
package signing
