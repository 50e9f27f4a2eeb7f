package ocr

import (
	"context"
	"errors"
)

var (
	// ErrExtraction marks a failed image-to-text call. Non-fatal for a batch.
	ErrExtraction = errors.New("text extraction failed")
	// ErrAnswer marks a failed answer call. Surfaces as a note, never aborts.
	ErrAnswer = errors.New("answer generation failed")
)

// Sentinels returned by disabled adapters instead of calling out.
const (
	ExtractionDisabledText = "[OCR disabled]"
	AnswerDisabledText     = "[answer generation disabled]"
)

// Extractor uploads one artifact and returns its literal transcription.
// A single attempt per call; no retries.
type Extractor interface {
	Name() string
	ExtractText(ctx context.Context, path string) (string, error)
}

// Answerer turns the combined transcription into a short answer.
type Answerer interface {
	Name() string
	GenerateAnswer(ctx context.Context, combined string) (string, error)
}

// Engines bundles both adapters after gating.
type Engines struct {
	Extractor Extractor
	Answerer  Answerer
}

// NewEngines wraps each adapter with its feature flag.
func NewEngines(ex Extractor, an Answerer, ocrEnabled, answerEnabled bool) Engines {
	return Engines{
		Extractor: GateExtractor(ex, ocrEnabled),
		Answerer:  GateAnswerer(an, answerEnabled),
	}
}

type switchable interface{ Enabled() bool }

// IsEnabled reports false only for adapters gated off.
func IsEnabled(v any) bool {
	if s, ok := v.(switchable); ok {
		return s.Enabled()
	}
	return v != nil
}

type gatedExtractor struct {
	next    Extractor
	enabled bool
}

// GateExtractor returns ex unchanged behind a flag check. When disabled (or
// ex is nil) every call returns ExtractionDisabledText.
func GateExtractor(ex Extractor, enabled bool) Extractor {
	return &gatedExtractor{next: ex, enabled: enabled && ex != nil}
}

func (g *gatedExtractor) Enabled() bool { return g.enabled }

func (g *gatedExtractor) Name() string {
	if g.next == nil {
		return "disabled"
	}
	return g.next.Name()
}

func (g *gatedExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	if !g.enabled {
		return ExtractionDisabledText, nil
	}
	return g.next.ExtractText(ctx, path)
}

type gatedAnswerer struct {
	next    Answerer
	enabled bool
}

// GateAnswerer is GateExtractor for the answer side.
func GateAnswerer(an Answerer, enabled bool) Answerer {
	return &gatedAnswerer{next: an, enabled: enabled && an != nil}
}

func (g *gatedAnswerer) Enabled() bool { return g.enabled }

func (g *gatedAnswerer) Name() string {
	if g.next == nil {
		return "disabled"
	}
	return g.next.Name()
}

func (g *gatedAnswerer) GenerateAnswer(ctx context.Context, combined string) (string, error) {
	if !g.enabled {
		return AnswerDisabledText, nil
	}
	return g.next.GenerateAnswer(ctx, combined)
}
