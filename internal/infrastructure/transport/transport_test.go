package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomIdentityPicksFromPool(t *testing.T) {
	t.Parallel()

	pool := []string{"agent-a", "agent-b"}
	id := NewRandomIdentity(pool, "https://data.example.com/").
		WithHeaders(map[string]string{"Accept-Language": "zh-CN,zh;q=0.9"})

	for i := 0; i < 20; i++ {
		h := http.Header{}
		id.Apply(h)
		assert.Contains(t, pool, h.Get("User-Agent"))
		assert.Equal(t, "https://data.example.com/", h.Get("Referer"))
		assert.Equal(t, "zh-CN,zh;q=0.9", h.Get("Accept-Language"))
	}
}

func TestRandomIdentityDefaultsPool(t *testing.T) {
	t.Parallel()

	id := NewRandomIdentity(nil, "")
	h := http.Header{}
	id.Apply(h)
	assert.Contains(t, DefaultUserAgents, h.Get("User-Agent"))
	assert.Empty(t, h.Get("Referer"))
}

func TestStaticIdentity(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	StaticIdentity("test-agent").Apply(h)
	assert.Equal(t, "test-agent", h.Get("User-Agent"))
}

func TestGateSpacesRequests(t *testing.T) {
	t.Parallel()

	gate := NewGate(20, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, gate.Wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestGateUnlimitedAndNil(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	require.NoError(t, NewGate(0, 0).Wait(ctx))

	var g *Gate
	require.NoError(t, g.Wait(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, g.Wait(cancelled))
}

func TestSleepHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}

func TestDownloadClientStopsAfterMaxRedirects(t *testing.T) {
	t.Parallel()

	var hops atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops.Add(1)
		http.Redirect(w, r, server.URL+"/next", http.StatusFound)
	}))
	defer server.Close()

	client := NewDownloadClient(time.Second, 5*time.Second, 2)
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, int32(2), hops.Load())
}
