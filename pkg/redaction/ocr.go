package redaction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"
)

// DetectedText is one text fragment located by an OCR provider.
type DetectedText struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// OCRProvider extracts text fragments and their bounding boxes from an
// encoded image. Implementations must be safe for concurrent use.
type OCRProvider interface {
	ExtractText(ctx context.Context, img []byte) ([]DetectedText, error)
}

// HTTPProviderConfig configures an HTTPProvider.
type HTTPProviderConfig struct {
	// Endpoint is the OCR service URL. Required.
	Endpoint string

	// Timeout bounds a single extraction request.
	Timeout time.Duration

	// APIKey, when set, is sent as a bearer token.
	APIKey string
}

// HTTPProvider calls a remote OCR service that accepts a PNG body and
// returns detected fragments as JSON.
type HTTPProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPProvider creates an HTTPProvider.
func NewHTTPProvider(cfg HTTPProviderConfig) (*HTTPProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("ocr endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// ocrFragment is the wire format for one detected fragment.
type ocrFragment struct {
	Text       string  `json:"text"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

// ExtractText posts the image to the OCR service and decodes the
// fragment list.
func (p *HTTPProvider) ExtractText(ctx context.Context, img []byte) ([]DetectedText, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Fragments []ocrFragment `json:"fragments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}

	out := make([]DetectedText, 0, len(payload.Fragments))
	for _, f := range payload.Fragments {
		out = append(out, DetectedText{
			Text:       f.Text,
			Box:        image.Rect(f.X, f.Y, f.X+f.Width, f.Y+f.Height),
			Confidence: f.Confidence,
		})
	}
	return out, nil
}

// StubProvider returns fixed fragments, for tests and offline runs.
type StubProvider struct {
	Fragments []DetectedText
	Err       error
}

// ExtractText returns the configured fragments or error.
func (p *StubProvider) ExtractText(ctx context.Context, img []byte) ([]DetectedText, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Fragments, nil
}
