package signing

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"
)

// RFC 3161 hash algorithm and content type OIDs.
var (
	oidSHA256     = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidTSTInfo    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 4}
)

// PKIStatus values per RFC 3161.
const (
	pkiStatusGranted         = 0
	pkiStatusGrantedWithMods = 1
)

// TSAClientConfig configures a TSAClient.
type TSAClientConfig struct {
	// Endpoint is the TSA URL. Required.
	Endpoint string

	// Timeout bounds a single timestamp request.
	Timeout time.Duration

	// Username and Password enable HTTP basic auth when set.
	Username string
	Password string
}

// TSAClient requests RFC 3161 timestamp tokens over HTTP.
type TSAClient struct {
	endpoint string
	username string
	password string
	client   *http.Client
}

// NewTSAClient creates a TSAClient.
func NewTSAClient(cfg TSAClientConfig) (*TSAClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("tsa endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TSAClient{
		endpoint: cfg.Endpoint,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// TimestampToken is a parsed TSA response.
type TimestampToken struct {
	Status       int
	SerialNumber *big.Int
	GenTime      time.Time
	Nonce        *big.Int
	MessageHash  []byte
	Raw          []byte
}

// ASN.1 structures per RFC 3161.

type tsRequest struct {
	Version        int
	MessageImprint messageImprint
	Nonce          *big.Int `asn1:"optional"`
	CertReq        bool     `asn1:"optional"`
}

type messageImprint struct {
	HashAlgorithm algorithmIdentifier
	HashedMessage []byte
}

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type tsResponse struct {
	Status         pkiStatusInfo
	TimeStampToken asn1.RawValue `asn1:"optional"`
}

type pkiStatusInfo struct {
	Status       int
	StatusString []string       `asn1:"optional"`
	FailInfo     asn1.BitString `asn1:"optional"`
}

type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0"`
}

type signedData struct {
	Version          int
	DigestAlgorithms []algorithmIdentifier `asn1:"set"`
	EncapContentInfo encapContentInfo
	Certificates     asn1.RawValue   `asn1:"optional,tag:0"`
	CRLs             asn1.RawValue   `asn1:"optional,tag:1"`
	SignerInfos      []asn1.RawValue `asn1:"set"`
}

type encapContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

type tstInfo struct {
	Version        int
	Policy         asn1.ObjectIdentifier
	MessageImprint messageImprint
	SerialNumber   *big.Int
	GenTime        time.Time
	Accuracy       asn1.RawValue `asn1:"optional"`
	Ordering       bool          `asn1:"optional"`
	Nonce          *big.Int      `asn1:"optional"`
	TSA            asn1.RawValue `asn1:"optional,tag:0"`
}

// Timestamp requests a token over the given SHA-256 digest. The nonce
// in the response must match the request; a mismatch fails the call.
func (c *TSAClient) Timestamp(ctx context.Context, digest []byte) (*TimestampToken, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}

	nonce, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	reqDER, err := asn1.Marshal(tsRequest{
		Version: 1,
		MessageImprint: messageImprint{
			HashAlgorithm: algorithmIdentifier{Algorithm: oidSHA256},
			HashedMessage: digest,
		},
		Nonce:   nonce,
		CertReq: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respDER, err := c.submit(ctx, reqDER)
	if err != nil {
		return nil, err
	}

	token, err := ParseTimestampToken(respDER)
	if err != nil {
		return nil, err
	}
	if token.Status != pkiStatusGranted && token.Status != pkiStatusGrantedWithMods {
		return nil, fmt.Errorf("tsa rejected request: status %d", token.Status)
	}
	if token.Nonce != nil && token.Nonce.Cmp(nonce) != 0 {
		return nil, errors.New("tsa nonce mismatch")
	}
	if token.MessageHash != nil && !bytes.Equal(token.MessageHash, digest) {
		return nil, errors.New("tsa message imprint mismatch")
	}
	return token, nil
}

func (c *TSAClient) submit(ctx context.Context, reqDER []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqDER))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/timestamp-query")
	req.Header.Set("Accept", "application/timestamp-reply")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tsa request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tsa returned %d: %s", resp.StatusCode, body)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// ParseTimestampToken parses a DER TimeStampResp. Parsing is
// best-effort past the status: a granted response with an unusual
// token encoding still yields status and raw bytes.
func ParseTimestampToken(respDER []byte) (*TimestampToken, error) {
	var resp tsResponse
	if _, err := asn1.Unmarshal(respDER, &resp); err != nil {
		return nil, fmt.Errorf("parse tsa response: %w", err)
	}

	token := &TimestampToken{
		Status: resp.Status.Status,
		Raw:    respDER,
	}
	if len(resp.TimeStampToken.FullBytes) == 0 {
		return token, nil
	}

	var ci contentInfo
	if _, err := asn1.Unmarshal(resp.TimeStampToken.FullBytes, &ci); err != nil {
		return token, nil
	}
	if !ci.ContentType.Equal(oidSignedData) {
		return token, nil
	}

	var sd signedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return token, nil
	}
	if !sd.EncapContentInfo.ContentType.Equal(oidTSTInfo) {
		return token, nil
	}

	// TSTInfo is wrapped in an OCTET STRING inside the content.
	tstBytes := sd.EncapContentInfo.Content.Bytes
	var unwrapped []byte
	if _, err := asn1.Unmarshal(tstBytes, &unwrapped); err == nil {
		tstBytes = unwrapped
	}

	var tst tstInfo
	if _, err := asn1.Unmarshal(tstBytes, &tst); err != nil {
		return token, nil
	}
	token.SerialNumber = tst.SerialNumber
	token.GenTime = tst.GenTime
	token.Nonce = tst.Nonce
	token.MessageHash = tst.MessageImprint.HashedMessage
	return token, nil
}
