package wbgtsource

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `,44132,44136,62078
2026073003,235,231,
2026073006,262,258,271
2026073009,291,287,303
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParse(t *testing.T) {
	buckets, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, buckets, 3)

	assert.Equal(t, "2026073003", buckets[0].TimeKey)
	assert.InDelta(t, 235, buckets[0].Values["44132"], 1e-9)
	assert.InDelta(t, 231, buckets[0].Values["44136"], 1e-9)

	// Blank cell means no reading published for that point.
	_, ok := buckets[0].Values["62078"]
	assert.False(t, ok)

	assert.Equal(t, "2026073009", buckets[2].TimeKey)
	assert.InDelta(t, 303, buckets[2].Values["62078"], 1e-9)
}

func TestParse_SkipsBadCells(t *testing.T) {
	csv := ",44132,44136\n2026073003,n/a,250\n,999,999\n"
	buckets, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	_, ok := buckets[0].Values["44132"]
	assert.False(t, ok)
	assert.InDelta(t, 250, buckets[0].Values["44136"], 1e-9)
}

func TestParse_EmptyHeader(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	require.Error(t, err)

	_, err = Parse(strings.NewReader("justone\n"))
	require.Error(t, err)
}

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = io.WriteString(w, sampleCSV)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, discardLogger())
	buckets, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	assert.Equal(t, "2026073006", buckets[1].TimeKey)
}

func TestClientFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, discardLogger())
	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
