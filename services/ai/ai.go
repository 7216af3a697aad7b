// Package ai sends chat completions to the configured LLM through its OpenAI-compatible API.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"xrp_etf_backend/config"
)

// ErrEmptyCompletion is returned when the model answers with no text
var ErrEmptyCompletion = errors.New("empty completion")

// Client wraps the completion API. A Client without a key is valid but disabled.
type Client struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// NewClient creates a client. An empty apiKey yields a disabled client that never dials out.
func NewClient(apiKey, baseURL, model string, timeout time.Duration, log zerolog.Logger) *Client {
	c := &Client{
		model: model,
		log:   log.With().Str("component", "ai").Logger(),
	}
	if apiKey == "" {
		return c
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

// Enabled reports whether a key is configured
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Complete returns the model's answer to prompt under the given system instructions
func (c *Client) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("ai: %w", config.ErrNotConfigured)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: 0.4,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("ai completion: status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("ai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}

	c.log.Debug().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("took", time.Since(start)).
		Msg("Completion finished")
	return text, nil
}
