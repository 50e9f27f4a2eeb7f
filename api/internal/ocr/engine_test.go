package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExtractor struct{ calls int }

func (c *countingExtractor) Name() string { return "fake" }
func (c *countingExtractor) ExtractText(context.Context, string) (string, error) {
	c.calls++
	return "text", nil
}

type countingAnswerer struct{ calls int }

func (c *countingAnswerer) Name() string { return "fake" }
func (c *countingAnswerer) GenerateAnswer(context.Context, string) (string, error) {
	c.calls++
	return "42", nil
}

func TestGateExtractor(t *testing.T) {
	inner := &countingExtractor{}

	off := GateExtractor(inner, false)
	got, err := off.ExtractText(context.Background(), "/tmp/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, ExtractionDisabledText, got)
	assert.Zero(t, inner.calls)
	assert.False(t, IsEnabled(off))

	on := GateExtractor(inner, true)
	got, err = on.ExtractText(context.Background(), "/tmp/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, "text", got)
	assert.Equal(t, 1, inner.calls)
	assert.True(t, IsEnabled(on))
}

func TestGateAnswererNil(t *testing.T) {
	g := GateAnswerer(nil, true)
	assert.False(t, IsEnabled(g))
	assert.Equal(t, "disabled", g.Name())

	got, err := g.GenerateAnswer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, AnswerDisabledText, got)
}

func TestNewEngines(t *testing.T) {
	an := &countingAnswerer{}
	e := NewEngines(&countingExtractor{}, an, false, true)
	assert.False(t, IsEnabled(e.Extractor))
	assert.True(t, IsEnabled(e.Answerer))

	got, err := e.Answerer.GenerateAnswer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "42", got)
	assert.Equal(t, 1, an.calls)
}

func TestAnswerUserMessage(t *testing.T) {
	assert.Equal(t, "Text extracted from the screenshots:\n\nabc", AnswerUserMessage("  abc\n"))
}
