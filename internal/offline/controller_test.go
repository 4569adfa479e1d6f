package offline

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/worklog/internal/store"
)

var errNetworkDown = errors.New("network down")

// fakeNetwork answers from a fixed page table and counts calls per URL.
type fakeNetwork struct {
	mu      sync.Mutex
	offline bool
	pages   map[string]string
	calls   map[string]int
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		pages: map[string]string{
			"/":              "<html>home</html>",
			"/app.js":        "console.log('app')",
			"/style.css":     "body{}",
			"/api/summary":   `{"today":3600}`,
			"/manifest.json": `{"name":"worklog"}`,
		},
		calls: make(map[string]int),
	}
}

func (f *fakeNetwork) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.URL.Path]++
	if f.offline {
		return nil, errNetworkDown
	}
	body, ok := f.pages[req.URL.Path]
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
		body = "not found"
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"text/plain"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func (f *fakeNetwork) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

func (f *fakeNetwork) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func newTestController(t *testing.T, storage CacheStorage, assets ...string) (*Controller, *fakeNetwork) {
	t.Helper()
	base, err := url.Parse("http://app.local")
	require.NoError(t, err)
	network := newFakeNetwork()
	c := NewController(Config{
		Prefix:    "worklog",
		Version:   2,
		Base:      base,
		Assets:    assets,
		Transport: network,
	}, storage)
	t.Cleanup(c.Close)
	return c, network
}

func activate(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.Install(context.Background()))
	_, err := c.Activate()
	require.NoError(t, err)
	require.Equal(t, StateActive, c.State())
}

func get(t *testing.T, c *Controller, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://app.local"+path, nil)
	require.NoError(t, err)
	resp, err := c.RoundTrip(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// ============================================================
// Classification and naming
// ============================================================

func TestIsStaticAsset(t *testing.T) {
	for _, p := range []string{"/a.js", "/b.CSS", "/icons/x.png", "/f.woff2", "/site.webmanifest", "/data.json"} {
		u, _ := url.Parse("http://h" + p)
		assert.True(t, IsStaticAsset(u), p)
	}
	for _, p := range []string{"/", "/reports", "/api/summary", "/a.js.map", "/page.html"} {
		u, _ := url.Parse("http://h" + p)
		assert.False(t, IsStaticAsset(u), p)
	}
}

func TestCacheNames(t *testing.T) {
	c, _ := newTestController(t, NewMemoryStorage())
	assert.Equal(t, "worklog-static-v2", c.StaticCache())
	assert.Equal(t, "worklog-dynamic-v2", c.DynamicCache())
}

// ============================================================
// Lifecycle
// ============================================================

func TestInstallToleratesFailedAssets(t *testing.T) {
	storage := NewMemoryStorage()
	c, _ := newTestController(t, storage, "/", "/app.js", "/missing.css")

	require.NoError(t, c.Install(context.Background()))
	assert.Equal(t, StateInstalled, c.State())

	keys, err := storage.Keys(c.StaticCache())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"http://app.local/", "http://app.local/app.js"}, keys)
}

func TestActivateDeletesOldCaches(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Open("worklog-static-v1"))
	require.NoError(t, storage.Open("worklog-dynamic-v1"))
	c, _ := newTestController(t, storage)

	require.NoError(t, c.Install(context.Background()))
	n, err := c.Activate()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, err := storage.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"worklog-dynamic-v2", "worklog-static-v2"}, names)
}

func TestSkipWaitingActivatesInstalled(t *testing.T) {
	c, _ := newTestController(t, NewMemoryStorage())
	require.NoError(t, c.Install(context.Background()))
	require.Equal(t, StateInstalled, c.State())

	require.NoError(t, c.HandleMessage(context.Background(), Message{Type: MsgSkipWaiting}))
	assert.Equal(t, StateActive, c.State())
}

func TestSkipWaitingBeforeInstall(t *testing.T) {
	c, _ := newTestController(t, NewMemoryStorage())
	require.NoError(t, c.HandleMessage(context.Background(), Message{Type: MsgSkipWaiting}))
	assert.Equal(t, StateNew, c.State())

	require.NoError(t, c.Install(context.Background()))
	assert.Equal(t, StateActive, c.State())
}

func TestActivateClaimsSubscribers(t *testing.T) {
	c, _ := newTestController(t, NewMemoryStorage())
	_, unsub := c.Subscribe()
	defer unsub()
	activate(t, c)
	assert.Equal(t, 1, c.Claimed())
}

func TestUnknownMessage(t *testing.T) {
	c, _ := newTestController(t, NewMemoryStorage())
	err := c.HandleMessage(context.Background(), Message{Type: "NOPE"})
	assert.Error(t, err)
}

// ============================================================
// Fetch policies
// ============================================================

func TestCacheFirstServesHitWithoutNetwork(t *testing.T) {
	c, network := newTestController(t, NewMemoryStorage(), "/app.js")
	activate(t, c)
	require.Equal(t, 1, network.callCount("/app.js"))

	resp := get(t, c, "/app.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "console.log('app')", readBody(t, resp))
	assert.Equal(t, "hit", resp.Header.Get("X-Worklog-Cache"))
	assert.Equal(t, 1, network.callCount("/app.js"), "cache hit must not touch the network")
}

func TestCacheFirstFetchesAndStores(t *testing.T) {
	storage := NewMemoryStorage()
	c, network := newTestController(t, storage)
	activate(t, c)

	resp := get(t, c, "/style.css")
	assert.Equal(t, "body{}", readBody(t, resp))

	hit, err := storage.Match(c.StaticCache(), "http://app.local/style.css")
	require.NoError(t, err)
	require.NotNil(t, hit)

	network.setOffline(true)
	resp = get(t, c, "/style.css")
	assert.Equal(t, "body{}", readBody(t, resp))
	assert.Equal(t, 1, network.callCount("/style.css"))
}

func TestCacheFirstDoesNotStoreErrors(t *testing.T) {
	storage := NewMemoryStorage()
	c, _ := newTestController(t, storage)
	activate(t, c)

	resp := get(t, c, "/nope.js")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	hit, err := storage.Match(c.StaticCache(), "http://app.local/nope.js")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestCacheFirstOfflinePage(t *testing.T) {
	c, network := newTestController(t, NewMemoryStorage())
	activate(t, c)
	network.setOffline(true)

	resp := get(t, c, "/app.js")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "You are offline")
}

func TestNetworkFirstPrefersNetwork(t *testing.T) {
	storage := NewMemoryStorage()
	c, network := newTestController(t, storage)
	activate(t, c)

	get(t, c, "/api/summary")
	get(t, c, "/api/summary")
	assert.Equal(t, 2, network.callCount("/api/summary"))

	hit, err := storage.Match(c.DynamicCache(), "http://app.local/api/summary")
	require.NoError(t, err)
	require.NotNil(t, hit)
}

func TestNetworkFirstFallsBackToCachedCopy(t *testing.T) {
	c, network := newTestController(t, NewMemoryStorage())
	activate(t, c)

	get(t, c, "/api/summary")
	network.setOffline(true)

	resp := get(t, c, "/api/summary")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"today":3600}`, readBody(t, resp))
}

func TestNetworkFirstFallsBackToRootDocument(t *testing.T) {
	c, network := newTestController(t, NewMemoryStorage(), "/")
	activate(t, c)
	network.setOffline(true)

	resp := get(t, c, "/reports?week=12")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>home</html>", readBody(t, resp))
}

func TestNetworkFirstOfflinePage(t *testing.T) {
	c, network := newTestController(t, NewMemoryStorage())
	activate(t, c)
	network.setOffline(true)

	resp := get(t, c, "/reports")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestBypassBeforeActivation(t *testing.T) {
	storage := NewMemoryStorage()
	c, _ := newTestController(t, storage)

	get(t, c, "/api/summary")
	names, _ := storage.Names()
	assert.Empty(t, names)
}

func TestNonGetPassesThrough(t *testing.T) {
	storage := NewMemoryStorage()
	c, network := newTestController(t, storage)
	activate(t, c)

	req, _ := http.NewRequest(http.MethodPost, "http://app.local/api/summary", strings.NewReader("{}"))
	resp, err := c.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 1, network.callCount("/api/summary"))
	keys, _ := storage.Keys(c.DynamicCache())
	assert.Empty(t, keys)
}

// ============================================================
// Messages and events
// ============================================================

func TestCacheURLsMessage(t *testing.T) {
	storage := NewMemoryStorage()
	c, _ := newTestController(t, storage)
	activate(t, c)
	events, unsub := c.Subscribe()
	defer unsub()

	err := c.HandleMessage(context.Background(), Message{Type: MsgCacheURLs, URLs: []string{"/api/summary", "/missing"}})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, EventCacheUpdate, ev.Type)
		assert.Equal(t, 1, ev.Count)
		assert.Equal(t, []string{"http://app.local/api/summary"}, ev.URLs)
	case <-time.After(time.Second):
		t.Fatal("no cache update event")
	}
}

func TestMaintainCleansAndNotifies(t *testing.T) {
	storage := NewMemoryStorage()
	c, _ := newTestController(t, storage)
	activate(t, c)
	require.NoError(t, storage.Open("someone-else"))

	events, unsub := c.Subscribe()
	defer unsub()
	c.Maintain()

	ev := <-events
	assert.Equal(t, EventCacheCleaned, ev.Type)
	assert.Equal(t, 1, ev.Count)
	ev = <-events
	assert.Equal(t, EventSyncComplete, ev.Type)
}

func TestScheduleSync(t *testing.T) {
	c, _ := newTestController(t, NewMemoryStorage())
	require.NoError(t, c.HandleMessage(context.Background(), Message{Type: MsgScheduleSync}))
	assert.Len(t, c.cron.Entries(), 1)

	// Rescheduling replaces the previous job.
	require.NoError(t, c.HandleMessage(context.Background(), Message{Type: MsgScheduleSync, Spec: "@every 5m"}))
	assert.Len(t, c.cron.Entries(), 1)

	err := c.HandleMessage(context.Background(), Message{Type: MsgScheduleSync, Spec: "not a spec"})
	assert.Error(t, err)
}

// ============================================================
// SQLite-backed storage
// ============================================================

func TestStoreStorageRoundTrip(t *testing.T) {
	s, err := store.NewMemory()
	require.NoError(t, err)
	defer s.Close()

	c, network := newTestController(t, NewStoreStorage(s), "/app.js", "/")
	activate(t, c)
	network.setOffline(true)

	resp := get(t, c, "/app.js")
	assert.Equal(t, "console.log('app')", readBody(t, resp))
	resp = get(t, c, "/settings")
	assert.Equal(t, "<html>home</html>", readBody(t, resp))
}

// ============================================================
// Proxy
// ============================================================

func TestProxyMessageAndEvents(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "upstream "+r.URL.Path)
	}))
	defer upstream.Close()
	target, _ := url.Parse(upstream.URL)

	c := NewController(Config{Prefix: "worklog", Version: 1, Base: target}, NewMemoryStorage())
	defer c.Close()
	activate(t, c)

	srv := httptest.NewServer(NewProxy(c, target))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/dashboard")
	require.NoError(t, err)
	assert.Equal(t, "upstream /dashboard", readBody(t, resp))
	resp.Body.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/__sw/events", nil)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	// The subscription is registered before the handler flushes headers.
	resp, err = http.Post(srv.URL+"/__sw/message", "application/json",
		strings.NewReader(`{"type":"CACHE_URLS","urls":["/dashboard"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	reader := bufio.NewReader(stream.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: sw-cache-update\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"count":1`)
}

func TestServerShutdownClosesEventStreams(t *testing.T) {
	c, _ := newTestController(t, NewMemoryStorage())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln.Addr().String(), c, c.cfg.Base)
	go srv.Serve(ln)

	stream, err := http.Get("http://" + ln.Addr().String() + "/__sw/events")
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)

	_, err = io.ReadAll(stream.Body)
	assert.NoError(t, err)
}

func TestProxyBadMessage(t *testing.T) {
	c, _ := newTestController(t, NewMemoryStorage())
	srv := httptest.NewServer(NewProxy(c, c.cfg.Base))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/__sw/message", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
