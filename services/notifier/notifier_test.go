package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrp_etf_backend/config"
	"xrp_etf_backend/services/cache"
	"xrp_etf_backend/services/email"
	"xrp_etf_backend/services/holdings"
	"xrp_etf_backend/services/market/markettest"
)

type resendServer struct {
	*httptest.Server
	calls   atomic.Int32
	subject atomic.Value
}

func newResendServer(t *testing.T) *resendServer {
	t.Helper()
	rs := &resendServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Subject string `json:"subject"`
			Text    string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rs.subject.Store(body.Subject)
		rs.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"email-42"}`))
	}))
	t.Cleanup(rs.Server.Close)
	return rs
}

func newNotifier(t *testing.T, fake *markettest.Fake, resendURL string, to []string) *Notifier {
	t.Helper()
	cfg := fake.Config(false)
	cfg.EmailTo = to

	sender := email.NewSender("re_test", "alerts@example.com", to, zerolog.Nop())
	if resendURL != "" {
		base, err := url.Parse(resendURL + "/")
		require.NoError(t, err)
		sender.WithBaseURL(base)
	}

	store, err := holdings.NewStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clients := markettest.Clients(cfg)
	cacheStore := cache.NewStore()
	holdingsSvc := holdings.NewService(clients.XRPL, cfg.ExchangeWallets, store, cacheStore, zerolog.Nop())

	marketSvc := fake.Service(false)
	n := New(marketSvc, holdingsSvc, sender, cfg, zerolog.Nop())
	n.now = func() time.Time { return time.Date(2025, 1, 2, 13, 0, 0, 0, time.UTC) }
	return n
}

func TestSend(t *testing.T) {
	fake := markettest.New(t)
	rs := newResendServer(t)
	n := newNotifier(t, fake, rs.URL, []string{"ops@example.com"})

	id, err := n.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "email-42", id)
	assert.Equal(t, int32(1), rs.calls.Load())
	assert.Equal(t, "XRP ETF Summary 2025-01-02 13:00 UTC", rs.subject.Load())

	status := n.Status()
	assert.True(t, status.Enabled)
	assert.Equal(t, 1, status.SentCount)
	assert.Equal(t, 1, status.Recipients)
	require.NotNil(t, status.LastSent)
	assert.Empty(t, status.LastError)
}

func TestSend_NotConfigured(t *testing.T) {
	fake := markettest.New(t)
	n := newNotifier(t, fake, "", nil)

	_, err := n.Send(context.Background())
	assert.ErrorIs(t, err, config.ErrNotConfigured)
	assert.False(t, n.Status().Enabled)
	assert.Zero(t, fake.Hits(markettest.Yahoo), "nothing fetched")
}

func TestSend_RecordsFailure(t *testing.T) {
	fake := markettest.New(t)
	fake.Fail(markettest.Yahoo)
	rs := newResendServer(t)
	n := newNotifier(t, fake, rs.URL, []string{"ops@example.com"})

	_, err := n.Send(context.Background())
	require.Error(t, err)
	assert.Zero(t, rs.calls.Load())

	status := n.Status()
	assert.Zero(t, status.SentCount)
	assert.NotEmpty(t, status.LastError)
	assert.Equal(t, 1, n.Task().Status().Failures)
}

func TestSummary(t *testing.T) {
	fake := markettest.New(t)
	n := newNotifier(t, fake, "", []string{"ops@example.com"})

	s, err := n.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.5, s.XRPPrice)
	require.NotNil(t, s.Sentiment)
	require.NotNil(t, s.Holdings)
	assert.Equal(t, "3,000,000", s.Holdings.Total)
	assert.Empty(t, s.Holdings.Change, "no previous snapshot")
	assert.Empty(t, s.Insight, "AI not configured")

	require.NotEmpty(t, s.Groups)
	assert.Equal(t, "Index ETFs", s.Groups[0].Name)
	for _, g := range s.Groups {
		for i := 1; i < len(g.Rows); i++ {
			assert.GreaterOrEqual(t, g.Rows[i-1].Dollars, g.Rows[i].Dollars)
		}
	}
}
