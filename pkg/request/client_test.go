package request

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headsup/pkg/cache"
	"headsup/pkg/db"
	"headsup/pkg/store"
	"headsup/pkg/tracker"
)

func newCache(t *testing.T) cache.Cacher {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "client_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return cache.NewLayered(store.NewSQLiteStore(d), 16, time.Hour)
}

func fastOptions() Options {
	return Options{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
}

func TestGet_Sequential(t *testing.T) {
	var conc, maxConc int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&conc, 1)
		defer atomic.AddInt32(&conc, -1)
		for {
			m := atomic.LoadInt32(&maxConc)
			if current <= m || atomic.CompareAndSwapInt32(&maxConc, m, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	defer svr.Close()

	client := New(newCache(t), tracker.New(), fastOptions())

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(context.Background(), svr.URL, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxConc), "requests to one provider should be sequential")
}

func TestGet_Workers(t *testing.T) {
	var conc, maxConc int32
	release := make(chan struct{})
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&conc, 1)
		defer atomic.AddInt32(&conc, -1)
		for {
			m := atomic.LoadInt32(&maxConc)
			if current <= m || atomic.CompareAndSwapInt32(&maxConc, m, current) {
				break
			}
		}
		<-release
		_, _ = w.Write([]byte("ok"))
	}))
	defer svr.Close()

	opts := fastOptions()
	opts.Workers = 3
	client := New(nil, nil, opts)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = client.Get(context.Background(), svr.URL, "")
		}()
	}
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&conc) == 3 }, 2*time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&maxConc))
}

func TestGet_Retry(t *testing.T) {
	var attempts int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer svr.Close()

	client := New(newCache(t), tracker.New(), fastOptions())

	body, err := client.Get(context.Background(), svr.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "success", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestGet_RetriesExhausted(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer svr.Close()

	tr := tracker.New()
	client := New(nil, tr, fastOptions())

	_, err := client.Get(context.Background(), svr.URL, "")
	assert.ErrorIs(t, err, ErrMaxRetries)

	u, err := url.Parse(svr.URL)
	require.NoError(t, err)
	stats := tr.Snapshot()[u.Host]
	assert.Equal(t, int64(1), stats.APIFailures)
}

func TestGet_StatusError(t *testing.T) {
	var attempts int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer svr.Close()

	client := New(nil, nil, fastOptions())
	_, err := client.Get(context.Background(), svr.URL, "")

	var se *StatusError
	require.True(t, errors.As(err, &se), "expected StatusError, got %v", err)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "4xx must not be retried")
}

func TestGet_CacheAndUserAgent(t *testing.T) {
	var hits int32
	var gotUA atomic.Value
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		gotUA.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer svr.Close()

	opts := fastOptions()
	opts.UserAgent = "NFS-Minimap/1.0"
	tr := tracker.New()
	client := New(newCache(t), tr, opts)

	for i := 0; i < 3; i++ {
		body, err := client.Get(context.Background(), svr.URL+"/reverse", "geocode:1,2")
		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, string(body))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, "NFS-Minimap/1.0", gotUA.Load())

	var hitCount int64
	for _, s := range tr.Snapshot() {
		hitCount += s.CacheHits
	}
	assert.Equal(t, int64(2), hitCount)

	// Explicit header wins over the default.
	_, err := client.GetWithHeaders(context.Background(), svr.URL+"/other", map[string]string{"user-agent": "custom"}, "")
	require.NoError(t, err)
	assert.Equal(t, "custom", gotUA.Load())
}

func TestGet_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer svr.Close()
	defer close(block)

	client := New(nil, nil, fastOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, svr.URL, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
