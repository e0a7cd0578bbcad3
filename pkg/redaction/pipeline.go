package redaction

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
)

// PipelineError reports a failure inside the image redaction pipeline.
// Stage is "decode", "ocr", "redact", or "encode".
type PipelineError struct {
	Stage string
	Cause error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("redaction pipeline error [stage=%s]: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Result describes what a pipeline run did to an image.
type Result struct {
	// RedactedRegions is the number of regions painted over.
	RedactedRegions int

	// Types lists the sensitive categories found, deduplicated in
	// first-seen order.
	Types []string

	// FailedOpen is true when the pipeline failed and the unredacted
	// image was returned because AllowUnredactedOnError was set.
	FailedOpen bool
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// OCR locates text in screenshots. Required.
	OCR OCRProvider

	// Style selects the redaction paint style.
	Style Style

	// AllowUnredactedOnError opts out of fail-closed behavior: on
	// pipeline failure the original image is returned, logged at
	// Error level, and the result is marked FailedOpen. Off by
	// default.
	AllowUnredactedOnError bool
}

// Pipeline runs OCR, sensitive-data detection, and region painting
// over screenshots. It fails closed unless configured otherwise.
type Pipeline struct {
	detector *Detector
	redactor *ImageRedactor
	ocr      OCRProvider
	failOpen bool
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.OCR == nil {
		return nil, fmt.Errorf("ocr provider is required")
	}
	redactor, err := NewImageRedactor(cfg.Style)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		detector: NewDetector(),
		redactor: redactor,
		ocr:      cfg.OCR,
		failOpen: cfg.AllowUnredactedOnError,
		logger:   slog.Default().With("component", "redaction"),
	}, nil
}

// Detector exposes the pipeline's text detector so callers redact text
// fields with the same rules used for screenshots.
func (p *Pipeline) Detector() *Detector {
	return p.detector
}

// RedactImage decodes a PNG, locates sensitive text via OCR, paints
// the matching regions plus any extraRegions the caller supplies, and
// re-encodes. On failure it returns a PipelineError and nil bytes
// unless AllowUnredactedOnError was set, in which case the original
// bytes come back with Result.FailedOpen true.
func (p *Pipeline) RedactImage(ctx context.Context, pngData []byte, extraRegions ...image.Rectangle) ([]byte, Result, error) {
	out, res, err := p.redact(ctx, pngData, extraRegions)
	if err == nil {
		return out, res, nil
	}

	if p.failOpen {
		p.logger.Error("redaction failed, storing unredacted image",
			"error", err,
			"regions", len(extraRegions))
		return pngData, Result{FailedOpen: true}, nil
	}
	return nil, Result{}, err
}

func (p *Pipeline) redact(ctx context.Context, pngData []byte, extraRegions []image.Rectangle) ([]byte, Result, error) {
	img, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, Result{}, &PipelineError{Stage: "decode", Cause: err}
	}

	fragments, err := p.ocr.ExtractText(ctx, pngData)
	if err != nil {
		return nil, Result{}, &PipelineError{Stage: "ocr", Cause: err}
	}

	regions := make([]image.Rectangle, 0, len(extraRegions))
	regions = append(regions, extraRegions...)

	var types []string
	seen := make(map[string]struct{})
	for _, frag := range fragments {
		spans := p.detector.DetectSensitive(frag.Text)
		if len(spans) == 0 {
			continue
		}
		regions = append(regions, frag.Box)
		for _, s := range spans {
			if _, ok := seen[string(s.Type)]; ok {
				continue
			}
			seen[string(s.Type)] = struct{}{}
			types = append(types, string(s.Type))
		}
	}

	if len(regions) == 0 {
		return pngData, Result{}, nil
	}

	redacted := p.redactor.RedactRegions(img, regions)

	var buf bytes.Buffer
	if err := png.Encode(&buf, redacted); err != nil {
		return nil, Result{}, &PipelineError{Stage: "encode", Cause: err}
	}

	p.logger.Debug("image redacted",
		"regions", len(regions),
		"types", types,
		"style", p.redactor.Style())

	return buf.Bytes(), Result{
		RedactedRegions: len(regions),
		Types:           types,
	}, nil
}
