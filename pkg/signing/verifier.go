package signing

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// VerificationResult reports the outcome of every verification check.
// Valid is true only when signature, certificate validity, and content
// hash all pass with zero errors; chain trust and timestamp findings
// are warnings.
type VerificationResult struct {
	Valid bool `json:"valid"`

	SignatureValid bool `json:"signatureValid"`
	CertValid      bool `json:"certValid"`
	ChainTrusted   bool `json:"chainTrusted"`
	TimestampValid bool `json:"timestampValid"`
	HashValid      bool `json:"hashValid"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	// Roots are the trusted CA certificates for chain verification.
	// With no roots the chain check yields an "unverified" warning.
	Roots *x509.CertPool

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Verifier checks signature metadata against content.
type Verifier struct {
	roots *x509.CertPool
	now   func() time.Time
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg VerifierConfig) *Verifier {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Verifier{roots: cfg.Roots, now: now}
}

// Verify runs all checks for meta over content.
func (v *Verifier) Verify(content []byte, meta *SignatureMetadata) VerificationResult {
	var res VerificationResult
	if meta == nil {
		res.Errors = append(res.Errors, "no signature metadata")
		return res
	}

	hash, err := meta.Algorithm.Hash()
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	cert, err := ParseCertificatePEM([]byte(meta.CertificatePEM))
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("parse certificate: %v", err))
		return res
	}

	sig, err := base64.StdEncoding.DecodeString(meta.Signature)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("decode signature: %v", err))
		return res
	}

	// Check 5: recomputed content hash.
	digest := hashContent(hash, content)
	claimed, err := hex.DecodeString(meta.ContentHash)
	switch {
	case err != nil:
		res.Errors = append(res.Errors, fmt.Sprintf("decode content hash: %v", err))
	case !bytes.Equal(digest, claimed):
		res.Errors = append(res.Errors, "content hash mismatch: content was modified after signing")
	default:
		res.HashValid = true
	}

	// Check 1: signature over the recomputed digest.
	if err := verifySignature(cert, meta.Algorithm, hash, digest, sig); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("signature invalid: %v", err))
	} else {
		res.SignatureValid = true
	}

	// Check 2: certificate temporal validity at signing time.
	at := meta.SignedAt
	if at.IsZero() {
		at = v.now()
	}
	switch {
	case at.Before(cert.NotBefore):
		res.Errors = append(res.Errors, "certificate not yet valid at signing time")
	case at.After(cert.NotAfter):
		res.Errors = append(res.Errors, "certificate expired at signing time")
	default:
		res.CertValid = true
	}

	// Check 3: chain trust. Absent roots is a warning, not an error.
	if v.roots == nil {
		res.Warnings = append(res.Warnings, "certificate chain unverified: no trusted roots supplied")
	} else {
		_, err := cert.Verify(x509.VerifyOptions{
			Roots:       v.roots,
			CurrentTime: at,
			KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		})
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("certificate chain untrusted: %v", err))
		} else {
			res.ChainTrusted = true
		}
	}

	// Check 4: timestamp token, when present.
	v.verifyTimestamp(meta, sig, &res)

	res.Valid = res.SignatureValid && res.CertValid && res.HashValid && len(res.Errors) == 0
	return res
}

func (v *Verifier) verifyTimestamp(meta *SignatureMetadata, sig []byte, res *VerificationResult) {
	if meta.TimestampToken == "" {
		if meta.TimestampSource == TimestampSourceLocal {
			res.Warnings = append(res.Warnings, "timestamp is local, not attested by a timestamp authority")
		}
		return
	}

	raw, err := base64.StdEncoding.DecodeString(meta.TimestampToken)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("decode timestamp token: %v", err))
		return
	}
	token, err := ParseTimestampToken(raw)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("parse timestamp token: %v", err))
		return
	}
	if token.Status != pkiStatusGranted && token.Status != pkiStatusGrantedWithMods {
		res.Warnings = append(res.Warnings, fmt.Sprintf("timestamp token status %d", token.Status))
		return
	}
	if token.MessageHash != nil && !bytes.Equal(token.MessageHash, sigImprint(sig)) {
		res.Warnings = append(res.Warnings, "timestamp token does not cover this signature")
		return
	}
	res.TimestampValid = true
}

func verifySignature(cert *x509.Certificate, alg Algorithm, hash crypto.Hash, digest, sig []byte) error {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		if alg != AlgRSA4096SHA256 {
			return fmt.Errorf("rsa certificate cannot verify algorithm %s", alg)
		}
		return rsa.VerifyPSS(pub, hash, digest, sig, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthAuto,
			Hash:       hash,
		})
	case *ecdsa.PublicKey:
		if alg != AlgECDSAP384SHA384 && alg != AlgECDSAP521SHA512 {
			return fmt.Errorf("ecdsa certificate cannot verify algorithm %s", alg)
		}
		if !ecdsa.VerifyASN1(pub, digest, sig) {
			return fmt.Errorf("ecdsa verification failed")
		}
		return nil
	default:
		return fmt.Errorf("unsupported public key type %T", cert.PublicKey)
	}
}
