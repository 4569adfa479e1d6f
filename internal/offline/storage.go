package offline

import (
	"sort"
	"sync"

	"github.com/sadopc/worklog/internal/store"
)

// CacheStorage holds named caches of response snapshots keyed by URL.
// Match returns nil, nil on a miss.
type CacheStorage interface {
	Open(name string) error
	Names() ([]string, error)
	Drop(name string) error
	Put(name string, r store.CachedResponse) error
	Match(name, url string) (*store.CachedResponse, error)
	Keys(name string) ([]string, error)
}

// StoreStorage keeps caches in the SQLite cache tables.
type StoreStorage struct {
	s *store.Store
}

func NewStoreStorage(s *store.Store) *StoreStorage {
	return &StoreStorage{s: s}
}

func (c *StoreStorage) Open(name string) error             { return c.s.CacheOpen(name) }
func (c *StoreStorage) Names() ([]string, error)           { return c.s.CacheNames() }
func (c *StoreStorage) Drop(name string) error             { return c.s.CacheDrop(name) }
func (c *StoreStorage) Keys(name string) ([]string, error) { return c.s.CacheKeys(name) }

func (c *StoreStorage) Put(name string, r store.CachedResponse) error {
	return c.s.CachePut(name, r)
}

func (c *StoreStorage) Match(name, url string) (*store.CachedResponse, error) {
	return c.s.CacheMatch(name, url)
}

// MemoryStorage is a process-local CacheStorage.
type MemoryStorage struct {
	mu     sync.RWMutex
	caches map[string]map[string]store.CachedResponse
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]map[string]store.CachedResponse)}
}

func (m *MemoryStorage) Open(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.caches[name]; !ok {
		m.caches[name] = make(map[string]store.CachedResponse)
	}
	return nil
}

func (m *MemoryStorage) Names() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.caches))
	for n := range m.caches {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStorage) Drop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.caches, name)
	return nil
}

func (m *MemoryStorage) Put(name string, r store.CachedResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.caches[name]
	if !ok {
		c = make(map[string]store.CachedResponse)
		m.caches[name] = c
	}
	r.Body = append([]byte(nil), r.Body...)
	c[r.URL] = r
	return nil
}

func (m *MemoryStorage) Match(name, url string) (*store.CachedResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.caches[name][url]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemoryStorage) Keys(name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.caches[name]))
	for k := range m.caches[name] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
