package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"screen-bot/api/internal/metrics"
	"screen-bot/api/internal/ocr"
	"screen-bot/api/internal/session"
)

// Notes placed in Summary.AnswerNote when no answer is produced.
const (
	NoteAnswerFailed   = "Failed to generate an answer."
	NoteAnswerDisabled = "Answer generation is disabled."
	NoteNoText         = "No text was extracted, answer skipped."
	NoteExtractFailed  = "Failed to extract text from the screenshot."
)

// Progress is emitted after every processed item.
type Progress struct {
	Index   int // 1-based position in this run
	Total   int
	Slot    int
	OK      bool
	Percent int
}

type ProgressFunc func(Progress)

// Summary is the outcome of one run.
type Summary struct {
	UserID      int64
	ChatID      int64
	Total       int
	Succeeded   int
	Failed      int
	FailedSlots []int
	Duration    time.Duration
	Combined    string
	Answer      string
	AnswerNote  string
}

// Empty reports the "nothing to do" result.
func (s Summary) Empty() bool { return s.Total == 0 }

// Recorder persists finished runs. Optional.
type Recorder interface {
	RecordRun(ctx context.Context, s Summary) error
}

type Options struct {
	Store    *session.Store
	Engines  ocr.Engines
	Now      func() time.Time
	Logger   *slog.Logger
	Recorder Recorder
	Metrics  *metrics.Metrics
}

// Pipeline extracts text from every occupied slot, then asks for one answer
// over the combined text.
type Pipeline struct {
	store   *session.Store
	engines ocr.Engines
	now     func() time.Time
	log     *slog.Logger
	rec     Recorder
	m       *metrics.Metrics
}

func New(opt Options) *Pipeline {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Pipeline{
		store:   opt.Store,
		engines: opt.Engines,
		now:     opt.Now,
		log:     opt.Logger.With("component", "pipeline"),
		rec:     opt.Recorder,
		m:       opt.Metrics,
	}
}

// Run processes s. Items go strictly in ascending slot order and the answer
// call happens after the last extraction. The session is reset at the end
// whatever the outcome. The only error is session.ErrBusy.
func (p *Pipeline) Run(ctx context.Context, s *session.Session, progress ProgressFunc) (Summary, error) {
	items, err := p.store.Begin(s)
	if err != nil {
		return Summary{}, err
	}
	start := p.now()
	sum := Summary{UserID: s.UserID, ChatID: s.ChatID, Total: len(items)}

	defer func() {
		if err := p.store.Reset(s); err != nil {
			p.log.Warn("session reset", "user", s.UserID, "error", err)
		}
	}()

	if sum.Total == 0 {
		return sum, nil
	}

	var combined strings.Builder
	for i, it := range items {
		text, ok := p.extract(ctx, s, it)
		if ok {
			sum.Succeeded++
			p.store.SetExtracted(s, it.Slot, text)
			writeSegment(&combined, it.Slot, text)
		} else {
			sum.Failed++
			sum.FailedSlots = append(sum.FailedSlots, it.Slot)
		}
		if progress != nil {
			progress(Progress{
				Index:   i + 1,
				Total:   sum.Total,
				Slot:    it.Slot,
				OK:      ok,
				Percent: (i + 1) * 100 / sum.Total,
			})
		}
	}
	sum.Combined = combined.String()

	sum.Answer, sum.AnswerNote = p.answer(ctx, s.UserID, sum.Combined)

	sum.Duration = p.now().Sub(start)
	p.m.BatchRun(sum.Duration)
	p.log.Info("batch done", "user", s.UserID, "total", sum.Total,
		"ok", sum.Succeeded, "failed", sum.Failed, "duration", sum.Duration)

	if p.rec != nil {
		if err := p.rec.RecordRun(ctx, sum); err != nil {
			p.log.Warn("record run", "user", s.UserID, "error", err)
		}
	}
	return sum, nil
}

// answer asks for one reply over text, or explains why there is none.
func (p *Pipeline) answer(ctx context.Context, userID int64, text string) (string, string) {
	switch {
	case text == "":
		return "", NoteNoText
	case !ocr.IsEnabled(p.engines.Answerer):
		return "", NoteAnswerDisabled
	}
	ans, err := p.engines.Answerer.GenerateAnswer(ctx, text)
	p.m.Answer(err == nil)
	if err != nil {
		p.log.Error("generate answer", "user", userID, "error", err)
		return "", NoteAnswerFailed
	}
	return strings.TrimSpace(ans), ""
}

// extract runs one item and consumes its artifact afterwards.
func (p *Pipeline) extract(ctx context.Context, s *session.Session, it session.Item) (string, bool) {
	text, err := p.engines.Extractor.ExtractText(ctx, it.Artifact.Path)
	if rerr := p.store.Consume(s, it.Slot); rerr != nil {
		p.log.Warn("release artifact", "user", s.UserID, "slot", it.Slot, "error", rerr)
	}
	text = strings.TrimSpace(text)
	switch {
	case err != nil:
		p.log.Warn("extract text", "user", s.UserID, "slot", it.Slot, "error", err)
		p.m.Extraction(false)
		return "", false
	case text == "":
		p.log.Warn("extract text: empty result", "user", s.UserID, "slot", it.Slot)
		p.m.Extraction(false)
		return "", false
	}
	p.m.Extraction(true)
	return text, true
}

// Segments are tagged with the slot number, not the loop position.
func writeSegment(b *strings.Builder, slot int, text string) {
	fmt.Fprintf(b, "=== Screenshot %d ===\n%s\n\n", slot, text)
}
