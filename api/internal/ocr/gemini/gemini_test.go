package gemini

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-bot/api/internal/ocr"
)

func TestExtractTextWithoutKey(t *testing.T) {
	e := New("  ", "gemini-2.5-flash")
	_, err := e.ExtractText(context.Background(), "/does/not/matter.jpg")
	assert.ErrorIs(t, err, ocr.ErrExtraction)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestExtractTextMissingFile(t *testing.T) {
	e := New("key", "gemini-2.5-flash")
	_, err := e.ExtractText(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"))
	assert.ErrorIs(t, err, ocr.ErrExtraction)
}

func TestAllText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("line 1\n"), genai.Text("line 2")}}},
		},
	}
	assert.Equal(t, "line 1\nline 2", allText(resp))
	assert.Equal(t, "", allText(nil))
	assert.Equal(t, "", allText(&genai.GenerateContentResponse{}))
}

func TestNames(t *testing.T) {
	e := New("k", " gemini-2.0-flash ")
	assert.Equal(t, "gemini", e.Name())
	assert.Equal(t, "gemini-2.0-flash", e.GetModel())
}

// fakeClient plays the Files API and one chat model.
type fakeClient struct {
	states    []genai.FileState // returned by GetFile, in order
	uploadErr error
	chatErr   error
	reply     string

	uploaded   []byte
	uploadOpts *genai.UploadFileOptions
	gets       int
	deleted    []string
	chats      [][]genai.Part
	model      string
	closed     bool
}

func (f *fakeClient) UploadFile(_ context.Context, _ string, r io.Reader, opts *genai.UploadFileOptions) (*genai.File, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.uploaded, f.uploadOpts = b, opts
	return &genai.File{Name: "files/abc", URI: "https://files/abc", MIMEType: opts.MIMEType, State: genai.FileStateProcessing}, nil
}

func (f *fakeClient) GetFile(_ context.Context, name string) (*genai.File, error) {
	st := genai.FileStateActive
	if f.gets < len(f.states) {
		st = f.states[f.gets]
	}
	f.gets++
	return &genai.File{Name: name, URI: "https://files/abc", MIMEType: f.uploadOpts.MIMEType, State: st}, nil
}

func (f *fakeClient) DeleteFile(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeClient) Chat(_ context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.chats = append(f.chats, parts)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text(f.reply)}}},
	}}, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func engineWith(t *testing.T, fc *fakeClient) (*Engine, string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(p, pngHeader, 0o600))
	e := New("key", "gemini-2.5-flash")
	e.PollEvery = time.Millisecond
	e.dial = func(context.Context) (client, error) { return fc, nil }
	return e, p
}

func TestExtractTextUploadsAndAsksOnce(t *testing.T) {
	fc := &fakeClient{states: []genai.FileState{genai.FileStateProcessing, genai.FileStateActive}, reply: "```\nHello\nworld\n```"}
	e, p := engineWith(t, fc)

	txt, err := e.ExtractText(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "Hello\nworld", txt)

	assert.Equal(t, pngHeader, fc.uploaded)
	assert.Equal(t, "image/png", fc.uploadOpts.MIMEType)
	assert.Equal(t, "shot.png", fc.uploadOpts.DisplayName)
	assert.Equal(t, 2, fc.gets, "polls until ACTIVE")

	require.Len(t, fc.chats, 1)
	assert.Equal(t, "gemini-2.5-flash", fc.model)
	assert.Equal(t, []genai.Part{
		genai.FileData{MIMEType: "image/png", URI: "https://files/abc"},
		genai.Text(ocr.ExtractPrompt),
	}, fc.chats[0])

	assert.Equal(t, []string{"files/abc"}, fc.deleted)
	assert.True(t, fc.closed)
}

func TestExtractTextFailedFile(t *testing.T) {
	fc := &fakeClient{states: []genai.FileState{genai.FileStateFailed}}
	e, p := engineWith(t, fc)

	_, err := e.ExtractText(context.Background(), p)
	assert.ErrorIs(t, err, ocr.ErrExtraction)
	assert.Contains(t, err.Error(), "processing failed")
	assert.Empty(t, fc.chats)
	assert.Equal(t, []string{"files/abc"}, fc.deleted)
}

func TestExtractTextDeletesOnChatError(t *testing.T) {
	fc := &fakeClient{chatErr: errors.New("quota exceeded")}
	e, p := engineWith(t, fc)

	_, err := e.ExtractText(context.Background(), p)
	assert.ErrorIs(t, err, ocr.ErrExtraction)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, []string{"files/abc"}, fc.deleted)
}

func TestExtractTextEmptyReply(t *testing.T) {
	fc := &fakeClient{reply: "  "}
	e, p := engineWith(t, fc)

	_, err := e.ExtractText(context.Background(), p)
	assert.ErrorIs(t, err, ocr.ErrExtraction)
	assert.Equal(t, []string{"files/abc"}, fc.deleted)
}

func TestExtractTextUploadError(t *testing.T) {
	fc := &fakeClient{uploadErr: errors.New("413 too large")}
	e, p := engineWith(t, fc)

	_, err := e.ExtractText(context.Background(), p)
	assert.ErrorIs(t, err, ocr.ErrExtraction)
	assert.Empty(t, fc.deleted, "nothing to delete")
	assert.Empty(t, fc.chats)
	assert.True(t, fc.closed)
}

func TestExtractTextCancelledWhileProcessing(t *testing.T) {
	fc := &fakeClient{states: []genai.FileState{genai.FileStateProcessing}}
	e, p := engineWith(t, fc)
	e.PollEvery = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExtractText(ctx, p)
	assert.ErrorIs(t, err, ocr.ErrExtraction)
	assert.Equal(t, []string{"files/abc"}, fc.deleted)
}
