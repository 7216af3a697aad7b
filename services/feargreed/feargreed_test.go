package feargreed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrp_etf_backend/services/datafetcher"
)

func TestLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"name":"Fear and Greed Index","data":[{"value":"72","value_classification":"Greed","timestamp":"1735689600"}]}`))
	}))
	defer srv.Close()

	client := NewClient(datafetcher.NewDataFetcher(time.Second, zerolog.Nop()), srv.URL)
	index, err := client.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 72, index.Value)
	assert.Equal(t, "Greed", index.Classification)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), index.Time)
}

func TestLatest_BadValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"value":"n/a"}]}`))
	}))
	defer srv.Close()

	client := NewClient(datafetcher.NewDataFetcher(time.Second, zerolog.Nop()), srv.URL)
	_, err := client.Latest(context.Background())
	assert.ErrorIs(t, err, datafetcher.ErrMalformed)
}
