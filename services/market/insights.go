package market

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"xrp_etf_backend/config"
	"xrp_etf_backend/services/cache"
)

// ErrEmptyQuestion is returned by Chat when no message is given
var ErrEmptyQuestion = errors.New("message is required")

const (
	insightsMaxTokens = 1024
	chatMaxTokens     = 700
	maxPromptData     = 12_000
)

const insightsSystem = `You are a market analyst covering XRP and the exchange-traded funds that hold it.
Write a concise briefing in plain prose with short section headings: ETF flows, price action,
sentiment, on-chain activity, and what to watch next. Quote the numbers you are given and do not
invent figures. This is not financial advice; say so in one closing line.`

const chatSystem = `You answer questions about XRP, XRP ETFs and the XRP Ledger using the market data
provided by the dashboard. Keep answers under 200 words. If the data does not cover the question,
say what is missing instead of guessing.`

// insightsKey derives a stable cache key from the market data. Map keys marshal in sorted
// order so equal payloads share a slot.
func insightsKey(marketData map[string]any) (string, error) {
	raw, err := json.Marshal(marketData)
	if err != nil {
		return "", fmt.Errorf("encode market data: %w", err)
	}
	sum := sha256.Sum256(raw)
	return keyAIInsights + hex.EncodeToString(sum[:])[:16], nil
}

func promptData(data map[string]any) (string, error) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode market data: %w", err)
	}
	return truncate(string(raw), maxPromptData), nil
}

// truncate cuts text to at most limit bytes without splitting a rune
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n..."
}

// Insights asks the model for a briefing on marketData. Answers are cached per distinct payload.
func (s *Service) Insights(ctx context.Context, marketData map[string]any, forceRefresh bool) (cache.Result[string], error) {
	if !s.clients.AI.Enabled() {
		return cache.Result[string]{}, fmt.Errorf("ai insights: %w", config.ErrNotConfigured)
	}

	key, err := insightsKey(marketData)
	if err != nil {
		return cache.Result[string]{}, err
	}

	return cache.Get(ctx, s.cache, key, config.AIInsightsTTL, func(ctx context.Context) (string, error) {
		data, err := promptData(marketData)
		if err != nil {
			return "", err
		}
		prompt := "Current dashboard data:\n" + data + "\n\nWrite today's briefing."
		return s.clients.AI.Complete(ctx, insightsSystem, prompt, insightsMaxTokens)
	}, forceRefresh)
}

// ChatReply is the model's answer with the context sections it was given
type ChatReply struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}

// Chat answers one question against the supplied dashboard context. Replies are not cached.
func (s *Service) Chat(ctx context.Context, message string, marketContext map[string]any) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyQuestion
	}
	if !s.clients.AI.Enabled() {
		return nil, fmt.Errorf("ai chat: %w", config.ErrNotConfigured)
	}

	sources := make([]string, 0, len(marketContext))
	for k := range marketContext {
		sources = append(sources, k)
	}
	sort.Strings(sources)

	var prompt strings.Builder
	if len(marketContext) > 0 {
		data, err := promptData(marketContext)
		if err != nil {
			return nil, err
		}
		prompt.WriteString("Dashboard data:\n")
		prompt.WriteString(data)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("Question: ")
	prompt.WriteString(message)

	answer, err := s.clients.AI.Complete(ctx, chatSystem, prompt.String(), chatMaxTokens)
	if err != nil {
		return nil, err
	}
	return &ChatReply{Response: answer, Sources: sources}, nil
}
