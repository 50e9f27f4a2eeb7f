package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnceExtractsAndAnswers(t *testing.T) {
	f := newFixture()
	shot := f.pipeline(true, true).Once(context.Background(), 1, "/tmp/one.jpg")

	assert.Equal(t, "text of /tmp/one.jpg", shot.Text)
	assert.Equal(t, "42", shot.Answer)
	assert.Empty(t, shot.AnswerNote)
	require.Len(t, f.an.calls, 1)
	assert.Equal(t, "text of /tmp/one.jpg", f.an.calls[0])
	assert.Empty(t, f.rec.runs)
}

func TestOnceExtractionFailure(t *testing.T) {
	f := newFixture()
	f.ex.fail["/tmp/one.jpg"] = true
	shot := f.pipeline(true, true).Once(context.Background(), 1, "/tmp/one.jpg")

	assert.Empty(t, shot.Text)
	assert.Equal(t, NoteExtractFailed, shot.AnswerNote)
	assert.Empty(t, f.an.calls)
}

func TestOnceAnswerFailure(t *testing.T) {
	f := newFixture()
	f.an.err = errors.New("quota")
	shot := f.pipeline(true, true).Once(context.Background(), 1, "/tmp/one.jpg")

	assert.NotEmpty(t, shot.Text)
	assert.Empty(t, shot.Answer)
	assert.Equal(t, NoteAnswerFailed, shot.AnswerNote)
}

func TestOnceAnswerDisabled(t *testing.T) {
	f := newFixture()
	shot := f.pipeline(true, false).Once(context.Background(), 1, "/tmp/one.jpg")

	assert.Equal(t, NoteAnswerDisabled, shot.AnswerNote)
	assert.Empty(t, f.an.calls)
}
