package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-tracker/internal/config"
)

func newTestResolver(t *testing.T, handler http.HandlerFunc, withCache bool) (*Resolver, *miniredis.Miniredis) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var cache *redis.Client
	var mr *miniredis.Miniredis
	if withCache {
		mr = miniredis.RunT(t)
		cache = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}

	cfg := config.GeoConfig{
		Enabled:        true,
		BaseURL:        srv.URL,
		TimeoutSeconds: 2,
		CacheTTLHours:  1,
	}
	return NewResolver(cfg, cache), mr
}

func TestResolveSuccess(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/json/8.8.8.8", req.URL.Path)
		w.Write([]byte(`{"status":"success","city":"Mountain View","regionName":"California","country":"United States"}`))
	}, false)

	loc := r.Resolve(context.Background(), "8.8.8.8")
	assert.Equal(t, "Mountain View, California, United States", loc)
}

func TestResolveSkipsPrivateAndInvalid(t *testing.T) {
	called := false
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		called = true
	}, false)

	assert.Empty(t, r.Resolve(context.Background(), "127.0.0.1"))
	assert.Empty(t, r.Resolve(context.Background(), "10.0.0.4"))
	assert.Empty(t, r.Resolve(context.Background(), "not-an-ip"))
	assert.False(t, called)
}

func TestResolveFailureReturnsEmpty(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"status":"fail"}`))
	}, false)

	assert.Empty(t, r.Resolve(context.Background(), "8.8.8.8"))
}

func TestResolveUsesCache(t *testing.T) {
	var hits int64
	r, mr := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte(`{"status":"success","city":"Dallas","regionName":"Texas","country":"United States"}`))
	}, true)

	ctx := context.Background()
	first := r.Resolve(ctx, "8.8.4.4")
	second := r.Resolve(ctx, "8.8.4.4")

	require.Equal(t, "Dallas, Texas, United States", first)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt64(&hits))
	assert.True(t, mr.Exists("geo:8.8.4.4"))
}

func TestResolveDisabled(t *testing.T) {
	r := NewResolver(config.GeoConfig{Enabled: false, TimeoutSeconds: 1, BaseURL: "http://example.invalid"}, nil)
	assert.Empty(t, r.Resolve(context.Background(), "8.8.8.8"))
}
