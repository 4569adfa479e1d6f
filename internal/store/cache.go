package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CachedResponse is a stored HTTP response snapshot used by the offline
// cache controller.
type CachedResponse struct {
	URL      string
	Status   int
	Header   map[string][]string
	Body     []byte
	StoredAt time.Time
}

// CacheOpen creates the named cache if it does not exist yet.
func (s *Store) CacheOpen(name string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.q.Exec(
		`INSERT OR IGNORE INTO cache_names (name, created_at) VALUES (?, ?)`, name, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("open cache %q: %w", name, err)
	}
	return nil
}

func (s *Store) CacheNames() ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`SELECT name FROM cache_names ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// CacheDrop deletes the named cache and everything stored in it.
func (s *Store) CacheDrop(name string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.q.Exec(`DELETE FROM cache_names WHERE name = ?`, name); err != nil {
		return fmt.Errorf("drop cache %q: %w", name, err)
	}
	return nil
}

func (s *Store) CachePut(name string, r CachedResponse) error {
	if err := s.CacheOpen(name); err != nil {
		return err
	}
	header, err := json.Marshal(r.Header)
	if err != nil {
		return fmt.Errorf("encode cached header: %w", err)
	}
	if r.StoredAt.IsZero() {
		r.StoredAt = time.Now()
	}
	_, err = s.q.Exec(
		`INSERT INTO cache_entries (cache_name, url, status, header, body, stored_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_name, url) DO UPDATE SET
		   status = excluded.status, header = excluded.header, body = excluded.body, stored_at = excluded.stored_at`,
		name, r.URL, r.Status, string(header), r.Body, formatTime(r.StoredAt),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// CacheMatch returns the stored response for url, or nil when absent.
func (s *Store) CacheMatch(name, url string) (*CachedResponse, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	r := &CachedResponse{URL: url}
	var header, storedAt string
	err := s.q.QueryRow(
		`SELECT status, header, body, stored_at FROM cache_entries WHERE cache_name = ? AND url = ?`, name, url,
	).Scan(&r.Status, &header, &r.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("match cache entry: %w", err)
	}
	if err := json.Unmarshal([]byte(header), &r.Header); err != nil {
		return nil, fmt.Errorf("decode cached header: %w", err)
	}
	r.StoredAt = parseTime(storedAt)
	return r, nil
}

func (s *Store) CacheKeys(name string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`SELECT url FROM cache_entries WHERE cache_name = ? ORDER BY url`, name)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) CacheDelete(name, url string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.q.Exec(`DELETE FROM cache_entries WHERE cache_name = ? AND url = ?`, name, url); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}
