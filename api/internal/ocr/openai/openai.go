package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"screen-bot/api/internal/ocr"
	"screen-bot/api/internal/util"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// fixed generation parameters for the answer call
const (
	temperature = 0.2
	maxTokens   = 600
)

// Engine is the answer adapter over any OpenAI-compatible chat completions
// endpoint (OpenAI, DeepSeek, a local proxy).
type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	httpc   *http.Client
}

func New(key, model, baseURL string) *Engine {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Engine{
		APIKey:  key,
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "gpt" }

func (e *Engine) GetModel() string { return e.Model }

// GenerateAnswer sends one system+user pair and returns the reply text.
func (e *Engine) GenerateAnswer(ctx context.Context, combined string) (string, error) {
	out, err := e.complete(ctx, combined)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ocr.ErrAnswer, err)
	}
	return out, nil
}

func (e *Engine) complete(ctx context.Context, combined string) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY is empty")
	}
	body := map[string]any{
		"model": e.Model,
		"messages": []any{
			map[string]any{"role": "system", "content": ocr.AnswerSystemPrompt},
			map[string]any{"role": "user", "content": ocr.AnswerUserMessage(combined)},
		},
		"temperature": temperature,
		"max_tokens":  maxTokens,
	}
	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai answer %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	if len(raw.Choices) == 0 {
		return "", fmt.Errorf("openai answer: empty response")
	}
	out := util.StripCodeFences(raw.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("openai answer: empty content")
	}
	return out, nil
}
