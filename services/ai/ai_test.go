package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrp_etf_backend/config"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "Summarize XRP flows", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","model":"claude-test","choices":[{"index":0,"message":{"role":"assistant","content":"  Inflows were strong.  "}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL+"/v1", "claude-test", time.Second, zerolog.Nop())
	require.True(t, client.Enabled())

	text, err := client.Complete(context.Background(), "You are an analyst.", "Summarize XRP flows", 200)
	require.NoError(t, err)
	assert.Equal(t, "Inflows were strong.", text)
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, "m", time.Second, zerolog.Nop())
	_, err := client.Complete(context.Background(), "", "hi", 10)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestComplete_Disabled(t *testing.T) {
	client := NewClient("", "http://127.0.0.1:1", "m", time.Second, zerolog.Nop())
	assert.False(t, client.Enabled())

	_, err := client.Complete(context.Background(), "", "hi", 10)
	assert.ErrorIs(t, err, config.ErrNotConfigured)
}
