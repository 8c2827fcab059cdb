package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:   "test-agent",
		Timeout:     5 * time.Second,
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		DefaultRate: rate.Inf,
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("file content here"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "TGR35001.ZIP")
	n, err := newTestFetcher().DownloadToFile(context.Background(), srv.URL+"/NM/TGR35001.ZIP", path)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file content here", string(data))
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownload_RetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = body.Close()
	assert.Equal(t, int32(2), calls.Load())
}

func TestDownload_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownload_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDownload_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().Download(ctx, srv.URL)
	require.Error(t, err)
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, 5*time.Minute, f.opts.Timeout)
	assert.Equal(t, 3, f.opts.MaxRetries)
	assert.Equal(t, time.Second, f.opts.BaseBackoff)
	assert.Equal(t, "tigerpoly/1.0", f.opts.UserAgent)
	assert.Equal(t, rate.Limit(10), f.opts.DefaultRate)
}

func TestLimiterFor_UsesConfiguredHost(t *testing.T) {
	census := rate.NewLimiter(1, 1)
	f := NewHTTPFetcher(HTTPOptions{
		RateLimiters: map[string]*rate.Limiter{"www2.census.gov": census},
	})

	u, err := url.Parse("https://www2.census.gov/geo/tiger/tiger2006se/NM/TGR35001.ZIP")
	require.NoError(t, err)
	assert.Same(t, census, f.limiterFor(u))

	other, err := url.Parse("https://example.com/file.zip")
	require.NoError(t, err)
	first := f.limiterFor(other)
	assert.NotSame(t, census, first)
	assert.Same(t, first, f.limiterFor(other), "limiter is created once per host")
}

func TestDefaultRateLimiters(t *testing.T) {
	lims := DefaultRateLimiters()
	assert.Contains(t, lims, "www2.census.gov")
	assert.Contains(t, lims, "ftp2.census.gov")
}
