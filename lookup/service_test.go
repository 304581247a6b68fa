package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbc-om/sbc-sub007/cache/memo"
	"github.com/sbc-om/sbc-sub007/cache/ttl"
	"github.com/sbc-om/sbc-sub007/httpx"
)

type upstream struct {
	*httpx.TestServer
	calls    atomic.Int32
	lastAuth atomic.Value
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{}
	u.TestServer = httpx.NewTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		u.lastAuth.Store(r.Header.Get("Authorization"))
		handler(w, r)
	}))
	t.Cleanup(u.Close)
	return u
}

func jsonEcho(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path, "query": r.URL.RawQuery})
}

func newTestService(t *testing.T, baseURL string, opts ...Option) *Service {
	t.Helper()
	local := ttl.NewSynced[json.RawMessage](time.Minute, 8)
	t.Cleanup(func() { _ = local.Close() })
	client := httpx.NewClient(httpx.WithBaseURL(baseURL), httpx.WithClientTimeout(2*time.Second))
	return NewService(client, memo.New(local), opts...)
}

func TestLookupMemoizesUpstream(t *testing.T) {
	up := newUpstream(t, jsonEcho)
	svc := newTestService(t, up.BaseURL())

	first, err := svc.Lookup(context.Background(), "users/42", nil)
	require.NoError(t, err)
	assert.Equal(t, memo.SourceOrigin, first.Source)
	assert.JSONEq(t, `{"path":"/users/42","query":""}`, string(first.Data))

	second, err := svc.Lookup(context.Background(), "/users/42/", nil)
	require.NoError(t, err)
	assert.Equal(t, memo.SourceMemory, second.Source)
	assert.Equal(t, first.Data, second.Data)
	assert.EqualValues(t, 1, up.calls.Load())
}

func TestLookupQueryOrderSharesEntry(t *testing.T) {
	up := newUpstream(t, jsonEcho)
	svc := newTestService(t, up.BaseURL())

	q1, _ := url.ParseQuery("b=2&a=1")
	q2, _ := url.ParseQuery("a=1&b=2")

	_, err := svc.Lookup(context.Background(), "items", q1)
	require.NoError(t, err)
	res, err := svc.Lookup(context.Background(), "items", q2)
	require.NoError(t, err)

	assert.True(t, res.Source.Cached())
	assert.EqualValues(t, 1, up.calls.Load())
	assert.Equal(t, "items?a=1&b=2", Key("items", q1))
	assert.Equal(t, "items", Key("items", url.Values{}))
}

func TestLookupRejectsInvalidResources(t *testing.T) {
	up := newUpstream(t, jsonEcho)
	svc := newTestService(t, up.BaseURL())

	for _, resource := range []string{"", "/", "../etc/passwd", "a/../b", "a//b", "a b", "a?b=1", "%2e%2e"} {
		_, err := svc.Lookup(context.Background(), resource, nil)
		assert.ErrorIs(t, err, ErrInvalidResource, "resource %q", resource)
	}
	assert.Zero(t, up.calls.Load())
}

func TestLookupUpstreamFailureIsNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		jsonEcho(w, r)
	})
	svc := newTestService(t, up.BaseURL())

	_, err := svc.Lookup(context.Background(), "users", nil)
	require.ErrorIs(t, err, ErrUpstream)
	var se *httpx.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)

	fail.Store(false)
	res, err := svc.Lookup(context.Background(), "users", nil)
	require.NoError(t, err)
	assert.Equal(t, memo.SourceOrigin, res.Source)
	assert.EqualValues(t, 2, up.calls.Load())
}

func TestLookupRejectsNonJSON(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	})
	svc := newTestService(t, up.BaseURL())

	_, err := svc.Lookup(context.Background(), "page", nil)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Zero(t, svc.Stats().Entries)
}

func TestLookupSendsAPIKey(t *testing.T) {
	up := newUpstream(t, jsonEcho)
	svc := newTestService(t, up.BaseURL(), WithAPIKey("up-key"))

	_, err := svc.Lookup(context.Background(), "users", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer up-key", up.lastAuth.Load())
}

func TestForgetAndPurgeRefetch(t *testing.T) {
	up := newUpstream(t, jsonEcho)
	svc := newTestService(t, up.BaseURL())
	ctx := context.Background()
	q := url.Values{"x": {"1"}}

	_, err := svc.Lookup(ctx, "a", q)
	require.NoError(t, err)
	require.NoError(t, svc.Forget(ctx, "a", q))
	res, err := svc.Lookup(ctx, "a", q)
	require.NoError(t, err)
	assert.Equal(t, memo.SourceOrigin, res.Source)

	svc.Purge()
	assert.Zero(t, svc.Stats().Entries)
	_, err = svc.Lookup(ctx, "a", q)
	require.NoError(t, err)
	assert.EqualValues(t, 3, up.calls.Load())

	assert.ErrorIs(t, svc.Forget(ctx, "..", nil), ErrInvalidResource)
}
