package cache

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is an exact-match answer cache backed by SQLite, keyed by query
// fingerprint and language.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

// Entry is a cached answer with its originating provider.
type Entry struct {
	Answer   string
	Provider string
}

// Stats reports cache performance.
type Stats struct {
	Entries int64   `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

const createAnswersTable = `
CREATE TABLE IF NOT EXISTS answers (
	fingerprint TEXT NOT NULL,
	language TEXT NOT NULL,
	answer TEXT NOT NULL,
	provider TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL,
	PRIMARY KEY (fingerprint, language)
);
`

// New creates a Cache with the given database path and default TTL.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createAnswersTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl}, nil
}

// Fingerprint computes a stable SHA-256 key from the normalized query
// text and language. Queries that differ only in case or surrounding
// whitespace share an entry.
func Fingerprint(query, language string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	h.Write([]byte{0})
	h.Write([]byte(language))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get retrieves a cached answer. Returns false if absent or expired.
func (c *Cache) Get(fingerprint, language string) (Entry, bool) {
	var e Entry
	var createdAt time.Time
	var ttlSeconds int64

	err := c.db.QueryRow(
		`SELECT answer, provider, created_at, ttl_seconds FROM answers WHERE fingerprint = ? AND language = ?`,
		fingerprint, language,
	).Scan(&e.Answer, &e.Provider, &createdAt, &ttlSeconds)

	if err != nil {
		c.misses.Add(1)
		return Entry{}, false
	}

	ttl := time.Duration(ttlSeconds) * time.Second
	if time.Since(createdAt) > ttl {
		c.misses.Add(1)
		return Entry{}, false
	}

	c.hits.Add(1)
	return e, true
}

// Put stores an answer, replacing any previous entry for the same key.
func (c *Cache) Put(fingerprint, language string, e Entry) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO answers (fingerprint, language, answer, provider, created_at, ttl_seconds)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fingerprint, language, e.Answer, e.Provider, time.Now().UTC(), int64(c.ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (Stats, error) {
	var count int64
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM answers`).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	s := Stats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s, nil
}

// Clear removes entries. If expiredOnly is true, only expired entries go.
func (c *Cache) Clear(expiredOnly bool) error {
	query := `DELETE FROM answers`
	if expiredOnly {
		query = `DELETE FROM answers WHERE (julianday('now') - julianday(created_at)) * 86400 > ttl_seconds`
	}
	if _, err := c.db.Exec(query); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
