package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Event kinds recorded by the gateway. Detail never contains matched PII
// values or raw identifiers, only class names and counts.
const (
	KindPIIRedacted    = "pii_redacted"
	KindConsentGranted = "consent_granted"
	KindConsentRevoked = "consent_revoked"
	KindDataExported   = "data_exported"
	KindDataErased     = "data_erased"
)

// Event is one audit log entry. Identity is the hashed caller key.
type Event struct {
	ID        int64     `json:"id"`
	Identity  string    `json:"identity"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Logger writes and queries audit events in a dedicated SQLite database.
type Logger struct {
	db            *sql.DB
	retentionDays int
	done          chan struct{}
	wg            sync.WaitGroup
}

// New opens the audit SQLite database and creates the schema.
func New(dbPath string, retentionDays int) (*Logger, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:            db,
		retentionDays: retentionDays,
		done:          make(chan struct{}),
	}

	if retentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		identity   TEXT NOT NULL,
		kind       TEXT NOT NULL,
		detail     TEXT,
		request_id TEXT,
		created_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_identity ON audit_events(identity)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_events(created_at)`)
	return err
}

// Log inserts an audit event. A nil Logger is a no-op so callers can run
// without an audit store.
func (l *Logger) Log(ctx context.Context, e Event) error {
	if l == nil || l.db == nil {
		return nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_events (identity, kind, detail, request_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Identity, e.Kind, e.Detail, e.RequestID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("log audit event: %w", err)
	}
	return nil
}

// Query returns events, newest first, optionally filtered by identity and
// kind. Limit defaults to 100.
func (l *Logger) Query(ctx context.Context, identity, kind string, limit int) ([]Event, error) {
	q := `SELECT id, identity, kind, detail, request_id, created_at FROM audit_events WHERE 1=1`
	var args []any

	if identity != "" {
		q += " AND identity = ?"
		args = append(args, identity)
	}
	if kind != "" {
		q += " AND kind = ?"
		args = append(args, kind)
	}
	q += " ORDER BY created_at DESC"
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var detail, requestID sql.NullString
		if err := rows.Scan(&e.ID, &e.Identity, &e.Kind, &detail, &requestID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.Detail = detail.String
		e.RequestID = requestID.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteIdentity purges an identity's audit trail for erasure requests.
// The erasure event itself is written by the caller afterwards.
func (l *Logger) DeleteIdentity(ctx context.Context, identity string) (int64, error) {
	if l == nil || l.db == nil {
		return 0, nil
	}
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_events WHERE identity = ?`, identity)
	if err != nil {
		return 0, fmt.Errorf("delete audit events: %w", err)
	}
	return res.RowsAffected()
}

// Cleanup deletes events older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -l.retentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}
