package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrp_etf_backend/config"
)

func sampleSummary() Summary {
	return Summary{
		GeneratedAt:  time.Date(2025, 1, 2, 13, 0, 0, 0, time.UTC),
		XRPPrice:     2.4123,
		XRPChange24h: -1.25,
		TotalDollars: 12345678,
		Groups: []Group{{
			Name: "Spot ETFs",
			Rows: []Row{{Symbol: "XRPC", Description: "Canary Capital XRP", Price: 25.5, Shares: 150000, Dollars: 3825000}},
		}},
		Sentiment: &SentimentLine{Score: 64, Label: "Greed"},
		Holdings:  &HoldingsLine{Total: "1,234,567", Change: "-2,000"},
		Insight:   "Spot inflows <strong>",
	}
}

func TestRender(t *testing.T) {
	msg, err := Render(sampleSummary())
	require.NoError(t, err)

	assert.Equal(t, "XRP ETF Summary 2025-01-02 13:00 UTC", msg.Subject)
	assert.Contains(t, msg.HTML, "12,345,678")
	assert.Contains(t, msg.HTML, "Canary Capital XRP")
	assert.Contains(t, msg.HTML, "-1.25%")
	assert.Contains(t, msg.HTML, "Spot inflows &lt;strong&gt;", "insight is escaped")
	assert.Contains(t, msg.Text, "XRPC Canary Capital XRP: $25.50, 150,000 shares, $3,825,000")
	assert.Contains(t, msg.Text, "Sentiment: Greed (64/100)")
}

func TestRender_OptionalSectionsOmitted(t *testing.T) {
	s := sampleSummary()
	s.Sentiment = nil
	s.Holdings = nil
	s.Insight = ""

	msg, err := Render(s)
	require.NoError(t, err)
	assert.NotContains(t, msg.Text, "Sentiment:")
	assert.NotContains(t, msg.Text, "Exchange holdings")
	assert.NotContains(t, msg.HTML, "Analysis")
}

func TestSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"email-123"}`))
	}))
	defer srv.Close()

	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)

	sender := NewSender("re_test", "alerts@example.com", []string{"a@example.com"}, zerolog.Nop()).WithBaseURL(base)
	msg, err := Render(sampleSummary())
	require.NoError(t, err)

	id, err := sender.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "email-123", id)

	assert.Equal(t, "alerts@example.com", got["from"])
	assert.Equal(t, msg.Subject, got["subject"])
	headers, ok := got["headers"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, headers["X-Entity-Ref-ID"])
}

func TestSend_NotConfigured(t *testing.T) {
	noKey := NewSender("", "alerts@example.com", []string{"a@example.com"}, zerolog.Nop())
	assert.False(t, noKey.Enabled())
	_, err := noKey.Send(context.Background(), Message{Subject: "x"})
	assert.ErrorIs(t, err, config.ErrNotConfigured)

	noRecipients := NewSender("re_test", "alerts@example.com", nil, zerolog.Nop())
	assert.False(t, noRecipients.Enabled())
}
