package pipeline

import (
	"context"
	"strings"
	"time"
)

// Shot is the outcome of one capture processed outside any session.
type Shot struct {
	Text       string
	Answer     string
	AnswerNote string
	Duration   time.Duration
}

// Once extracts text from the file at path and answers it. The file is left
// in place; the caller owns it.
func (p *Pipeline) Once(ctx context.Context, userID int64, path string) Shot {
	start := p.now()
	var out Shot

	text, err := p.engines.Extractor.ExtractText(ctx, path)
	text = strings.TrimSpace(text)
	switch {
	case err != nil:
		p.log.Warn("extract text", "user", userID, "error", err)
		p.m.Extraction(false)
		out.AnswerNote = NoteExtractFailed
	case text == "":
		p.m.Extraction(false)
		out.AnswerNote = NoteNoText
	default:
		p.m.Extraction(true)
		out.Text = text
		out.Answer, out.AnswerNote = p.answer(ctx, userID, text)
	}

	out.Duration = p.now().Sub(start)
	return out
}
