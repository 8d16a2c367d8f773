package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/onramp-ai/onramp/pkg/models"
)

// categoryRules maps a category to its keyword list. Order matters: the
// first category with a keyword hit wins, and "general" is the fallback.
var categoryRules = []struct {
	name     string
	keywords []string
}{
	{"staking", []string{"stake", "staking", "validator", "delegat", "reward", "apy", "apr"}},
	{"bridging", []string{"bridge", "bridging", "cross-chain", "crosschain", "transfer between"}},
	{"wallet", []string{"wallet", "seed phrase", "private key", "metamask", "ledger", "custody"}},
	{"defi", []string{"defi", "liquidity", "yield", "lending", "borrow", "swap", "amm", "pool"}},
	{"nft", []string{"nft", "non-fungible", "mint", "opensea", "collectible"}},
	{"trading", []string{"trade", "trading", "price", "buy", "sell", "exchange", "market"}},
	{"security", []string{"scam", "hack", "phishing", "secure", "security", "safe", "audit"}},
	{"gas", []string{"gas", "fee", "transaction cost", "gwei"}},
}

// Classify assigns a query to the first matching category, or "general".
func Classify(query string) string {
	lower := strings.ToLower(query)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.name
			}
		}
	}
	return "general"
}

// Recorder persists interactions to SQLite and keeps running aggregates
// in memory so metrics reads never touch the database.
type Recorder struct {
	db *sql.DB

	mu           sync.Mutex
	total        int64
	succeeded    int64
	failed       int64
	totalCost    float64
	totalLatency int64
	categories   map[string]int64
	languages    map[string]int64
	questions    map[string]*questionEntry
	users        map[string]*userEntry
}

type questionEntry struct {
	hits         int64
	category     string
	lastAccessed time.Time
}

type userEntry struct {
	firstSeen time.Time
	lastSeen  time.Time
	queries   int64
}

const createInteractions = `
CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identity TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	category TEXT NOT NULL,
	language TEXT NOT NULL,
	provider TEXT NOT NULL,
	status TEXT NOT NULL,
	latency_ms INTEGER NOT NULL,
	tokens INTEGER NOT NULL,
	cost REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_interactions_identity ON interactions(identity);
CREATE INDEX IF NOT EXISTS idx_interactions_fingerprint ON interactions(fingerprint);
`

// New opens the analytics database and runs auto-migration.
func New(dbPath string) (*Recorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(createInteractions); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate analytics db: %w", err)
	}

	return &Recorder{
		db:         db,
		categories: make(map[string]int64),
		languages:  make(map[string]int64),
		questions:  make(map[string]*questionEntry),
		users:      make(map[string]*userEntry),
	}, nil
}

// Log stores one interaction and updates the in-memory aggregates.
func (r *Recorder) Log(ctx context.Context, in models.Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO interactions (identity, fingerprint, category, language, provider, status, latency_ms, tokens, cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Identity, in.Fingerprint, in.Category, in.Language, in.Provider, string(in.Status),
		in.LatencyMs, in.Tokens, in.Cost, in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.total++
	switch in.Status {
	case models.StatusError:
		r.failed++
	default:
		r.succeeded++
	}
	r.totalCost += in.Cost
	r.totalLatency += in.LatencyMs
	r.categories[in.Category]++
	if in.Language != "" {
		r.languages[in.Language]++
	}

	q := r.questions[in.Fingerprint]
	if q == nil {
		q = &questionEntry{category: in.Category}
		r.questions[in.Fingerprint] = q
	}
	q.hits++
	q.lastAccessed = in.CreatedAt

	u := r.users[in.Identity]
	if u == nil {
		u = &userEntry{firstSeen: in.CreatedAt}
		r.users[in.Identity] = u
	}
	u.lastSeen = in.CreatedAt
	u.queries++

	return nil
}

// HitCount returns how often a query fingerprint has been seen since start.
func (r *Recorder) HitCount(fingerprint string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q := r.questions[fingerprint]; q != nil {
		return q.hits
	}
	return 0
}

// Metrics returns the aggregated view of everything logged so far.
func (r *Recorder) Metrics() models.MetricsSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := models.MetricsSummary{
		TotalQueries:      r.total,
		SuccessfulQueries: r.succeeded,
		FailedQueries:     r.failed,
		TotalCost:         r.totalCost,
		TopCategories:     make(map[string]int64, len(r.categories)),
		Languages:         make(map[string]int64, len(r.languages)),
		ActiveUsers:       len(r.users),
	}
	for k, v := range r.categories {
		s.TopCategories[k] = v
	}
	for k, v := range r.languages {
		s.Languages[k] = v
	}
	if r.total > 0 {
		s.SuccessRate = float64(r.succeeded) / float64(r.total)
		s.AvgCostPerQuery = r.totalCost / float64(r.total)
		s.AvgLatencyMs = float64(r.totalLatency) / float64(r.total)
	}
	return s
}

// TopQuestions returns the most frequent query fingerprints, most popular
// first. Ties break on most recent access so the order is stable enough
// for display.
func (r *Recorder) TopQuestions(limit int) []models.TopQuestion {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.TopQuestion, 0, len(r.questions))
	for fp, q := range r.questions {
		out = append(out, models.TopQuestion{
			Fingerprint:  fp,
			HitCount:     q.hits,
			Category:     q.category,
			LastAccessed: q.lastAccessed,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HitCount != out[j].HitCount {
			return out[i].HitCount > out[j].HitCount
		}
		return out[i].LastAccessed.After(out[j].LastAccessed)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TopStored ranks fingerprints from the database instead of the
// in-process frequency table, so the offline CLI sees history across
// restarts.
func (r *Recorder) TopStored(ctx context.Context, limit int) ([]models.TopQuestion, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT fingerprint, COUNT(*), MAX(category), MAX(created_at)
		 FROM interactions GROUP BY fingerprint ORDER BY COUNT(*) DESC, MAX(created_at) DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top questions: %w", err)
	}
	defer rows.Close()

	var out []models.TopQuestion
	for rows.Next() {
		var q models.TopQuestion
		if err := rows.Scan(&q.Fingerprint, &q.HitCount, &q.Category, &q.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan top question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// UserInsights returns activity for one identity, or false if never seen.
func (r *Recorder) UserInsights(identity string) (models.UserInsights, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.users[identity]
	if u == nil {
		return models.UserInsights{}, false
	}
	return models.UserInsights{
		Identity:     identity,
		FirstSeen:    u.firstSeen,
		LastSeen:     u.lastSeen,
		TotalQueries: u.queries,
	}, true
}

// Summary aggregates stored interactions grouped by provider and category,
// optionally filtered by identity. Used by the offline stats CLI.
func (r *Recorder) Summary(ctx context.Context, identity string) ([]models.InteractionSummary, error) {
	query := `SELECT provider, category, COUNT(*), SUM(tokens), SUM(cost) FROM interactions`
	var args []any
	if identity != "" {
		query += ` WHERE identity = ?`
		args = append(args, identity)
	}
	query += ` GROUP BY provider, category ORDER BY provider, category`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.InteractionSummary
	for rows.Next() {
		var s models.InteractionSummary
		if err := rows.Scan(&s.Provider, &s.Category, &s.Count, &s.Tokens, &s.Cost); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Interactions returns the stored interactions for one identity, newest
// first. Used for data export.
func (r *Recorder) Interactions(ctx context.Context, identity string, limit int) ([]models.Interaction, error) {
	query := `SELECT id, identity, fingerprint, category, language, provider, status, latency_ms, tokens, cost, created_at
		 FROM interactions WHERE identity = ? ORDER BY created_at DESC`
	args := []any{identity}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []models.Interaction
	for rows.Next() {
		var in models.Interaction
		var status string
		if err := rows.Scan(&in.ID, &in.Identity, &in.Fingerprint, &in.Category, &in.Language,
			&in.Provider, &status, &in.LatencyMs, &in.Tokens, &in.Cost, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Status = models.RouteStatus(status)
		out = append(out, in)
	}
	return out, rows.Err()
}

// DeleteIdentity removes all stored interactions for an identity and
// drops it from the in-memory aggregates. Counters and category totals
// remain since they carry no personal data.
func (r *Recorder) DeleteIdentity(ctx context.Context, identity string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM interactions WHERE identity = ?`, identity)
	if err != nil {
		return 0, fmt.Errorf("delete interactions: %w", err)
	}
	n, _ := res.RowsAffected()

	r.mu.Lock()
	delete(r.users, identity)
	r.mu.Unlock()

	return n, nil
}

// Close releases the database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}
