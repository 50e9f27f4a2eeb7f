package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"screen-bot/api/internal/ocr"
	"screen-bot/api/internal/util"
)

// Engine is the extraction adapter: upload the screenshot through the Files
// API, then one single-turn chat with ExtractPrompt.
type Engine struct {
	APIKey string
	Model  string

	// how often to poll a file that is still PROCESSING
	PollEvery time.Duration
	// ClientOptions are appended after the API key.
	ClientOptions []option.ClientOption

	dial func(ctx context.Context) (client, error)
}

// client is the part of *genai.Client the engine needs.
type client interface {
	UploadFile(ctx context.Context, name string, r io.Reader, opts *genai.UploadFileOptions) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
	Chat(ctx context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error)
	Close() error
}

type genaiClient struct{ *genai.Client }

// Chat sends parts as the only turn of a new chat at temperature 0.
func (c genaiClient) Chat(ctx context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m := c.GenerativeModel(model)
	if m == nil {
		return nil, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{Temperature: ptrFloat32(0)}
	return m.StartChat().SendMessage(ctx, parts...)
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey:    strings.TrimSpace(apiKey),
		Model:     strings.TrimSpace(model),
		PollEvery: 500 * time.Millisecond,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// ExtractText returns the raw transcription of the image at path.
func (e *Engine) ExtractText(ctx context.Context, path string) (string, error) {
	txt, err := e.extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ocr.ErrExtraction, err)
	}
	return txt, nil
}

func (e *Engine) connect(ctx context.Context) (client, error) {
	if e.dial != nil {
		return e.dial(ctx)
	}
	opts := append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.ClientOptions...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return genaiClient{cl}, nil
}

func (e *Engine) extract(ctx context.Context, path string) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := util.SniffMimeHTTP(data)

	cl, err := e.connect(ctx)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	f, err := cl.UploadFile(ctx, "", bytes.NewReader(data), &genai.UploadFileOptions{
		DisplayName: filepath.Base(path),
		MIMEType:    mime,
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	// загруженный файл живёт 48ч на стороне API, удаляем сразу
	name := f.Name
	defer func() { _ = cl.DeleteFile(context.WithoutCancel(ctx), name) }()

	if f, err = e.waitActive(ctx, cl, f); err != nil {
		return "", err
	}

	resp, err := cl.Chat(ctx, e.Model,
		genai.FileData{MIMEType: f.MIMEType, URI: f.URI},
		genai.Text(ocr.ExtractPrompt),
	)
	if err != nil {
		return "", err
	}
	txt := util.StripCodeFences(allText(resp))
	if txt == "" {
		return "", errors.New("gemini: empty response")
	}
	return txt, nil
}

func (e *Engine) waitActive(ctx context.Context, cl client, f *genai.File) (*genai.File, error) {
	every := e.PollEvery
	if every <= 0 {
		every = 500 * time.Millisecond
	}
	for f.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(every):
		}
		var err error
		if f, err = cl.GetFile(ctx, f.Name); err != nil {
			return nil, fmt.Errorf("file state: %w", err)
		}
	}
	if f.State == genai.FileStateFailed {
		return nil, fmt.Errorf("file %s: processing failed", f.Name)
	}
	return f, nil
}

// allText joins the text parts of the first candidate that has any.
func allText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
