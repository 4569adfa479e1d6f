// Package offline is a caching fetch layer that keeps the app usable when the
// upstream is unreachable. Static assets are served cache-first, everything
// else network-first with a cached fallback.
package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/sadopc/worklog/internal/store"
)

// Message types accepted by HandleMessage.
const (
	MsgSkipWaiting  = "SKIP_WAITING"
	MsgCacheURLs    = "CACHE_URLS"
	MsgScheduleSync = "SCHEDULE_SYNC"
)

// Event types delivered to subscribers.
const (
	EventCacheUpdate  = "sw-cache-update"
	EventCacheCleaned = "sw-cache-cleaned"
	EventSyncComplete = "sw-sync-complete"
)

// DefaultSyncSpec is the maintenance schedule used when SCHEDULE_SYNC carries
// none.
const DefaultSyncSpec = "@every 1h"

var staticExtensions = map[string]bool{
	".js": true, ".css": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".svg": true, ".ico": true, ".woff": true, ".woff2": true,
	".ttf": true, ".eot": true, ".webp": true, ".json": true, ".webmanifest": true,
}

type State int

const (
	StateNew State = iota
	StateInstalling
	StateInstalled // waiting for activation
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	}
	return "new"
}

// Message is sent from a client page to the controller.
type Message struct {
	Type string   `json:"type"`
	URLs []string `json:"urls,omitempty"`
	Spec string   `json:"spec,omitempty"`
}

// Event is sent from the controller to subscribed pages.
type Event struct {
	Type  string    `json:"type"`
	Count int       `json:"count,omitempty"`
	URLs  []string  `json:"urls,omitempty"`
	Time  time.Time `json:"time"`
}

type Config struct {
	Prefix  string
	Version int
	// Base resolves relative asset paths and locates the root document.
	Base *url.URL
	// Assets are pre-warmed into the static cache on Install.
	Assets []string
	// Transport performs network fetches. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// Controller implements http.RoundTripper.
type Controller struct {
	cfg     Config
	storage CacheStorage
	next    http.RoundTripper

	mu          sync.Mutex
	state       State
	skipWaiting bool
	clients     int
	subs        map[int]chan Event
	nextSub     int

	cron   *cron.Cron
	syncID cron.EntryID
}

func NewController(cfg Config, storage CacheStorage) *Controller {
	if cfg.Prefix == "" {
		cfg.Prefix = "worklog"
	}
	if cfg.Version <= 0 {
		cfg.Version = 1
	}
	next := cfg.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	return &Controller{
		cfg:     cfg,
		storage: storage,
		next:    next,
		subs:    make(map[int]chan Event),
		cron:    cron.New(),
	}
}

func (c *Controller) StaticCache() string {
	return fmt.Sprintf("%s-static-v%d", c.cfg.Prefix, c.cfg.Version)
}

func (c *Controller) DynamicCache() string {
	return fmt.Sprintf("%s-dynamic-v%d", c.cfg.Prefix, c.cfg.Version)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Install opens both caches and pre-warms the static one. Assets that fail to
// fetch are logged and skipped. It activates right away when SKIP_WAITING
// was received earlier.
func (c *Controller) Install(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateInstalling
	c.mu.Unlock()

	for _, name := range []string{c.StaticCache(), c.DynamicCache()} {
		if err := c.storage.Open(name); err != nil {
			return fmt.Errorf("install: %w", err)
		}
	}
	cached := c.cacheURLs(ctx, c.StaticCache(), c.cfg.Assets)
	log.Info("offline cache installed", "cache", c.StaticCache(), "assets", len(cached), "requested", len(c.cfg.Assets))

	c.mu.Lock()
	c.state = StateInstalled
	skip := c.skipWaiting
	c.mu.Unlock()

	if skip {
		_, err := c.Activate()
		return err
	}
	return nil
}

// Activate deletes caches left by other versions, claims clients and makes
// the controller serve requests through its caches. It returns the number of
// caches deleted.
func (c *Controller) Activate() (int, error) {
	n, err := c.cleanup()
	if err != nil {
		return n, fmt.Errorf("activate: %w", err)
	}
	c.mu.Lock()
	c.state = StateActive
	c.clients = len(c.subs)
	c.mu.Unlock()
	log.Info("offline cache active", "deleted", n)
	return n, nil
}

// Claimed reports how many subscribed clients were taken over on activation.
func (c *Controller) Claimed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clients
}

// cleanup drops every cache not named by this version.
func (c *Controller) cleanup() (int, error) {
	names, err := c.storage.Names()
	if err != nil {
		return 0, err
	}
	keep := map[string]bool{c.StaticCache(): true, c.DynamicCache(): true}
	deleted := 0
	for _, n := range names {
		if keep[n] {
			continue
		}
		if err := c.storage.Drop(n); err != nil {
			return deleted, err
		}
		log.Debug("dropped stale cache", "cache", n)
		deleted++
	}
	return deleted, nil
}

// Maintain is the periodic pass: it removes unknown caches and notifies
// subscribers with the count.
func (c *Controller) Maintain() {
	n, err := c.cleanup()
	if err != nil {
		log.Error("cache maintenance", "err", err)
		return
	}
	c.publish(Event{Type: EventCacheCleaned, Count: n})
	c.publish(Event{Type: EventSyncComplete})
}

// HandleMessage applies a client message.
func (c *Controller) HandleMessage(ctx context.Context, msg Message) error {
	switch msg.Type {
	case MsgSkipWaiting:
		c.mu.Lock()
		c.skipWaiting = true
		state := c.state
		c.mu.Unlock()
		if state == StateInstalled {
			_, err := c.Activate()
			return err
		}
		return nil
	case MsgCacheURLs:
		cached := c.cacheURLs(ctx, c.DynamicCache(), msg.URLs)
		c.publish(Event{Type: EventCacheUpdate, Count: len(cached), URLs: cached})
		return nil
	case MsgScheduleSync:
		return c.scheduleSync(msg.Spec)
	}
	return fmt.Errorf("unknown message type %q", msg.Type)
}

func (c *Controller) scheduleSync(spec string) error {
	if spec == "" {
		spec = DefaultSyncSpec
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.syncID != 0 {
		c.cron.Remove(c.syncID)
	}
	id, err := c.cron.AddFunc(spec, c.Maintain)
	if err != nil {
		return fmt.Errorf("schedule sync %q: %w", spec, err)
	}
	c.syncID = id
	c.cron.Start()
	log.Info("cache maintenance scheduled", "spec", spec)
	return nil
}

// Close stops scheduled maintenance and closes subscriber channels.
func (c *Controller) Close() {
	<-c.cron.Stop().Done()
	c.closeSubscribers()
}

// closeSubscribers ends every event stream.
func (c *Controller) closeSubscribers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// Subscribe registers for events. The returned function unsubscribes.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, 16)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if ch, ok := c.subs[id]; ok {
			close(ch)
			delete(c.subs, id)
		}
	}
}

// publish drops the event for subscribers whose buffer is full.
func (c *Controller) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// cacheURLs fetches each URL and stores 200 responses. It returns the URLs
// that were cached.
func (c *Controller) cacheURLs(ctx context.Context, cache string, urls []string) []string {
	var cached []string
	for _, raw := range urls {
		u := c.resolve(raw)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			log.Warn("skip cache url", "url", raw, "err", err)
			continue
		}
		resp, err := c.next.RoundTrip(req)
		if err != nil {
			log.Warn("fetch for cache failed", "url", u, "err", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			log.Warn("fetch for cache failed", "url", u, "status", resp.StatusCode)
			continue
		}
		if _, err := c.put(cache, key(req), resp); err != nil {
			log.Warn("store cache entry", "url", u, "err", err)
			continue
		}
		cached = append(cached, u)
	}
	return cached
}

func (c *Controller) resolve(raw string) string {
	if c.cfg.Base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return c.cfg.Base.ResolveReference(ref).String()
}

// RoundTrip serves GET requests through the caches once the controller is
// active. Other requests, and everything before activation, go straight to
// the network.
func (c *Controller) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || c.State() != StateActive {
		return c.next.RoundTrip(req)
	}
	if IsStaticAsset(req.URL) {
		return c.cacheFirst(req)
	}
	return c.networkFirst(req)
}

// IsStaticAsset reports whether u names a file with a static-asset extension.
func IsStaticAsset(u *url.URL) bool {
	return staticExtensions[strings.ToLower(path.Ext(u.Path))]
}

func (c *Controller) cacheFirst(req *http.Request) (*http.Response, error) {
	k := key(req)
	if hit, err := c.storage.Match(c.StaticCache(), k); err != nil {
		log.Warn("cache lookup", "url", k, "err", err)
	} else if hit != nil {
		return toResponse(req, hit), nil
	}

	resp, err := c.next.RoundTrip(req)
	if err != nil {
		log.Debug("asset fetch failed, serving offline page", "url", k, "err", err)
		return offlineResponse(req), nil
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	return c.put(c.StaticCache(), k, resp)
}

func (c *Controller) networkFirst(req *http.Request) (*http.Response, error) {
	k := key(req)
	resp, err := c.next.RoundTrip(req)
	if err == nil {
		if resp.StatusCode != http.StatusOK {
			return resp, nil
		}
		return c.put(c.DynamicCache(), k, resp)
	}
	log.Debug("network failed, trying cache", "url", k, "err", err)

	root := rootKey(req)
	for _, candidate := range []string{k, root} {
		for _, cache := range []string{c.DynamicCache(), c.StaticCache()} {
			hit, merr := c.storage.Match(cache, candidate)
			if merr != nil {
				log.Warn("cache lookup", "url", candidate, "err", merr)
				continue
			}
			if hit != nil {
				return toResponse(req, hit), nil
			}
		}
	}
	return offlineResponse(req), nil
}

// put reads resp fully, stores it and hands back an equivalent response.
func (c *Controller) put(cache, k string, resp *http.Response) (*http.Response, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", k, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	err = c.storage.Put(cache, store.CachedResponse{
		URL:    k,
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	})
	if err != nil {
		log.Warn("store cache entry", "url", k, "err", err)
	}
	return resp, nil
}

func key(req *http.Request) string {
	u := *req.URL
	u.Fragment = ""
	return u.String()
}

func rootKey(req *http.Request) string {
	u := *req.URL
	u.Path = "/"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func toResponse(req *http.Request, r *store.CachedResponse) *http.Response {
	h := http.Header{}
	for k, v := range r.Header {
		h[k] = append([]string(nil), v...)
	}
	h.Set("X-Worklog-Cache", "hit")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.Status, http.StatusText(r.Status)),
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}
