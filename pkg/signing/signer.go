package signing

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"log/slog"
	"time"

	"custodia-hq/custodia/pkg/evidence"
)

// Algorithm identifies a signature algorithm and its paired hash.
type Algorithm string

const (
	AlgRSA4096SHA256   Algorithm = "RSA-4096-SHA256"
	AlgECDSAP384SHA384 Algorithm = "ECDSA-P384-SHA384"
	AlgECDSAP521SHA512 Algorithm = "ECDSA-P521-SHA512"
)

// Hash returns the crypto.Hash paired with the algorithm.
func (a Algorithm) Hash() (crypto.Hash, error) {
	switch a {
	case AlgRSA4096SHA256:
		return crypto.SHA256, nil
	case AlgECDSAP384SHA384:
		return crypto.SHA384, nil
	case AlgECDSAP521SHA512:
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("unknown signature algorithm: %s", a)
	}
}

// Timestamp sources recorded in signature metadata.
const (
	TimestampSourceTSA   = "tsa"
	TimestampSourceLocal = "local"
)

// SignatureMetadata is the serialized signature envelope stored under
// signatures/ in an evidence pack.
type SignatureMetadata struct {
	Algorithm       Algorithm `json:"algorithm"`
	HashAlgorithm   string    `json:"hashAlgorithm"`
	ContentHash     string    `json:"contentHash"`
	Signature       string    `json:"signature"`
	SignedAt        time.Time `json:"signedAt"`
	CertThumbprint  string    `json:"certThumbprint"`
	CertSubject     string    `json:"certSubject"`
	CertIssuer      string    `json:"certIssuer"`
	CertNotBefore   time.Time `json:"certNotBefore"`
	CertNotAfter    time.Time `json:"certNotAfter"`
	CertificatePEM  string    `json:"certificatePem"`
	TimestampToken  string    `json:"timestampToken,omitempty"`
	TimestampSource string    `json:"timestampSource"`
	Warnings        []string  `json:"warnings,omitempty"`
}

// SignerConfig configures a Signer.
type SignerConfig struct {
	// Algorithm selects the signature scheme. Required.
	Algorithm Algorithm

	// TSA requests trusted timestamps when set. Optional; signing
	// falls back to local timestamps without it.
	TSA *TSAClient
}

// Signer produces signature metadata for pack content. The private
// key is held for the signer's lifetime and never logged.
type Signer struct {
	algorithm Algorithm
	hash      crypto.Hash
	key       crypto.Signer
	cert      *x509.Certificate
	tsa       *TSAClient
	logger    *slog.Logger
}

// NewSigner creates a Signer from a private key and its certificate.
func NewSigner(key crypto.Signer, cert *x509.Certificate, cfg SignerConfig) (*Signer, error) {
	if key == nil {
		return nil, evidence.NewValidationError("key", "private key is required")
	}
	if cert == nil {
		return nil, evidence.NewValidationError("cert", "certificate is required")
	}
	h, err := cfg.Algorithm.Hash()
	if err != nil {
		return nil, err
	}
	if err := checkKeyAlgorithm(key, cfg.Algorithm); err != nil {
		return nil, err
	}
	return &Signer{
		algorithm: cfg.Algorithm,
		hash:      h,
		key:       key,
		cert:      cert,
		tsa:       cfg.TSA,
		logger:    slog.Default().With("component", "signing"),
	}, nil
}

// checkKeyAlgorithm rejects key/algorithm mismatches at construction
// time rather than at first Sign.
func checkKeyAlgorithm(key crypto.Signer, alg Algorithm) error {
	switch k := key.Public().(type) {
	case *rsa.PublicKey:
		if alg != AlgRSA4096SHA256 {
			return fmt.Errorf("rsa key cannot serve algorithm %s", alg)
		}
		if k.N.BitLen() < 4096 {
			return fmt.Errorf("rsa key is %d bits, need 4096", k.N.BitLen())
		}
	case *ecdsa.PublicKey:
		switch alg {
		case AlgECDSAP384SHA384:
			if k.Curve.Params().Name != "P-384" {
				return fmt.Errorf("ecdsa key curve %s cannot serve %s", k.Curve.Params().Name, alg)
			}
		case AlgECDSAP521SHA512:
			if k.Curve.Params().Name != "P-521" {
				return fmt.Errorf("ecdsa key curve %s cannot serve %s", k.Curve.Params().Name, alg)
			}
		default:
			return fmt.Errorf("ecdsa key cannot serve algorithm %s", alg)
		}
	default:
		return fmt.Errorf("unsupported key type %T", key.Public())
	}
	return nil
}

// Sign hashes content, signs the digest, and assembles the signature
// metadata. When a TSA is configured its token is embedded; TSA
// failure is recorded as a warning and a local timestamp is used.
func (s *Signer) Sign(ctx context.Context, content []byte) (*SignatureMetadata, error) {
	digest := hashContent(s.hash, content)

	sig, err := s.signDigest(digest)
	if err != nil {
		return nil, evidence.NewSigningError("sign", err)
	}

	meta := &SignatureMetadata{
		Algorithm:       s.algorithm,
		HashAlgorithm:   hashName(s.hash),
		ContentHash:     hex.EncodeToString(digest),
		Signature:       base64.StdEncoding.EncodeToString(sig),
		SignedAt:        time.Now().UTC(),
		CertThumbprint:  CertThumbprint(s.cert),
		CertSubject:     s.cert.Subject.String(),
		CertIssuer:      s.cert.Issuer.String(),
		CertNotBefore:   s.cert.NotBefore,
		CertNotAfter:    s.cert.NotAfter,
		CertificatePEM:  encodeCertPEM(s.cert),
		TimestampSource: TimestampSourceLocal,
	}

	if s.tsa == nil {
		return meta, nil
	}

	// The TSA imprint covers the signature bytes, binding the token
	// to this specific signature.
	token, err := s.tsa.Timestamp(ctx, sigImprint(sig))
	if err != nil {
		warning := fmt.Sprintf("tsa unavailable, using local timestamp: %v", err)
		meta.Warnings = append(meta.Warnings, warning)
		s.logger.Warn("timestamp authority unavailable",
			"error", err,
			"fallback", TimestampSourceLocal)
		return meta, nil
	}

	meta.TimestampToken = base64.StdEncoding.EncodeToString(token.Raw)
	meta.TimestampSource = TimestampSourceTSA
	if !token.GenTime.IsZero() {
		meta.SignedAt = token.GenTime.UTC()
	}
	return meta, nil
}

func (s *Signer) signDigest(digest []byte) ([]byte, error) {
	switch key := s.key.(type) {
	case *rsa.PrivateKey:
		return rsa.SignPSS(rand.Reader, key, s.hash, digest, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthAuto,
			Hash:       s.hash,
		})
	case *ecdsa.PrivateKey:
		return ecdsa.SignASN1(rand.Reader, key, digest)
	default:
		return s.key.Sign(rand.Reader, digest, s.hash)
	}
}

// Certificate returns the signer's certificate.
func (s *Signer) Certificate() *x509.Certificate {
	return s.cert
}

// Algorithm returns the configured algorithm.
func (s *Signer) Algorithm() Algorithm {
	return s.algorithm
}

// CertThumbprint computes the hex SHA-256 thumbprint of a certificate.
func CertThumbprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// sigImprint is the SHA-256 digest submitted to the TSA.
func sigImprint(sig []byte) []byte {
	sum := sha256.Sum256(sig)
	return sum[:]
}

func hashContent(h crypto.Hash, content []byte) []byte {
	hasher := h.New()
	hasher.Write(content)
	return hasher.Sum(nil)
}

func hashName(h crypto.Hash) string {
	switch h {
	case crypto.SHA256:
		return "sha256"
	case crypto.SHA384:
		return "sha384"
	case crypto.SHA512:
		return "sha512"
	default:
		return h.String()
	}
}

func encodeCertPEM(cert *x509.Certificate) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))
}
