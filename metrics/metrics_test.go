package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbc-om/sbc-sub007/cache/ttl"
)

func TestCacheHookCountsEvents(t *testing.T) {
	r := New()
	c := ttl.New[int](time.Minute, 1, ttl.WithMetrics(r.Cache("lookups")))

	c.Set("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("missing")
	c.Set("b", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheEvents.WithLabelValues("lookups", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheEvents.WithLabelValues("lookups", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheEvents.WithLabelValues("lookups", "eviction")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.cacheEvents.WithLabelValues("lookups", "expire")))
}

func TestObserveRequest(t *testing.T) {
	r := New()
	r.ObserveRequest(http.MethodGet, "/v1/lookup/*", http.StatusOK, 10*time.Millisecond)
	r.ObserveRequest(http.MethodGet, "/v1/lookup/*", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requestsTotal.WithLabelValues("GET", "/v1/lookup/*", "200")))
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	r := New()
	r.Cache("lookups").Hit()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cache_events_total{cache="lookups",event="hit"} 1`)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Cache("x").Miss()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.cacheEvents.WithLabelValues("x", "miss")))
}
