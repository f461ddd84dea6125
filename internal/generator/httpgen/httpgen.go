// Package httpgen implements generator.Generator over any OpenAI-chat-
// completions-compatible HTTP endpoint. It merges the teacher's
// CerebrasProvider and OpenRouterProvider into one configurable backend,
// since both spoke the identical request/response shape and differed only
// in base URL, auth header, and a couple of vendor headers — exactly the
// fields this package takes as constructor options instead of hardcoding
// two near-duplicate provider structs.
package httpgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hbcaspa/soulengine/internal/generator"
)

// Config is the backend's connection detail.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	// Optional vendor headers, e.g. OpenRouter's HTTP-Referer/X-Title.
	ExtraHeaders map[string]string
}

// Backend is an OpenAI-compatible chat-completions client implementing
// generator.Generator.
type Backend struct {
	cfg    Config
	client *http.Client
}

// New constructs a Backend with the teacher's long streaming-friendly
// timeout, even though this client only does one-shot completions.
func New(cfg Config) *Backend {
	return &Backend{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

type chatRequest struct {
	Model       string              `json:"model"`
	Messages    []generator.Message `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Stream      bool                `json:"stream"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate issues one non-streaming chat-completions call.
func (b *Backend) Generate(ctx context.Context, system string, history []generator.Message, user string, opts generator.Options) (generator.Result, error) {
	if b.cfg.APIKey == "" {
		return generator.Result{}, fmt.Errorf("httpgen: no API key configured")
	}

	messages := make([]generator.Message, 0, len(history)+2)
	if system != "" {
		messages = append(messages, generator.Message{Role: "system", Content: system})
	}
	messages = append(messages, history...)
	messages = append(messages, generator.Message{Role: "user", Content: user})

	temp := opts.Temperature
	if temp == 0 {
		temp = 0.7
	}

	reqBody := chatRequest{
		Model:       b.cfg.Model,
		Messages:    messages,
		Temperature: temp,
		MaxTokens:   opts.MaxTokens,
		Stream:      false,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return generator.Result{}, fmt.Errorf("httpgen: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return generator.Result{}, fmt.Errorf("httpgen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	for k, v := range b.cfg.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return generator.Result{}, fmt.Errorf("httpgen: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return generator.Result{}, fmt.Errorf("httpgen: backend status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return generator.Result{}, fmt.Errorf("httpgen: decode response: %w", err)
	}

	content := ""
	if len(parsed.Choices) > 0 {
		content = parsed.Choices[0].Message.Content
	}

	return generator.Result{
		Content:      content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}
