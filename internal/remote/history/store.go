// Package history records every telemetry fetch outcome in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
	"github.com/mizuna-io/mizuna/internal/remote/telemetry"
	"github.com/mizuna-io/mizuna/pkg/log"
)

const writeTimeout = 2 * time.Second

var migrations = []struct {
	Version int
	UpSQL   string
}{
	{
		Version: 1,
		UpSQL: `
CREATE TABLE IF NOT EXISTS feed_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	feed        TEXT    NOT NULL,
	outcome     TEXT    NOT NULL,
	error       TEXT    NOT NULL DEFAULT '',
	latency_ms  INTEGER NOT NULL,
	recorded_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feed_results_feed_time ON feed_results(feed, recorded_at);
`,
	},
}

// Entry is one recorded fetch.
type Entry struct {
	Feed       string    `json:"feed"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	LatencyMs  int64     `json:"latencyMs"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Summary counts outcomes of one feed.
type Summary struct {
	Feed     string `json:"feed"`
	Success  int    `json:"success"`
	Failure  int    `json:"failure"`
	LastSeen string `json:"lastSeen,omitempty"`
}

// Store is the history database.
type Store struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
}

// Open opens or creates the database at path and applies migrations.
func Open(ctx context.Context, path string, retention time.Duration) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return &Store{db: db, retention: retention, now: time.Now}, nil
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.Version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES (?, datetime('now'))`, m.Version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores one fetch result.
func (s *Store) Record(ctx context.Context, r telemetry.Result) error {
	errText := ""
	if r.Err != nil {
		errText = r.Err.Error()
	}
	at := r.At
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_results(feed, outcome, error, latency_ms, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		r.Feed, r.Outcome.String(), errText, r.Latency.Milliseconds(), ts(at))
	if err != nil {
		return fmt.Errorf("record %s result: %w", r.Feed, err)
	}
	return nil
}

// Hook returns a telemetry.ResultHook that records every result and logs
// write failures.
func (s *Store) Hook() telemetry.ResultHook {
	return func(r telemetry.Result) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.Record(ctx, r); err != nil {
			log.Warn("Failed to record feed history", "feed", r.Feed, "error", err)
		}
	}
}

// Recent returns up to limit entries of feed, newest first.
func (s *Store) Recent(ctx context.Context, feed string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT feed, outcome, error, latency_ms, recorded_at FROM feed_results WHERE feed = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		feed, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var recorded string
		if err := rows.Scan(&e.Feed, &e.Outcome, &e.Error, &e.LatencyMs, &recorded); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", recorded, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summarize counts outcomes per feed.
func (s *Store) Summarize(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT feed,
	SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
	SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
	MAX(recorded_at)
FROM feed_results
GROUP BY feed
ORDER BY feed`, connectivity.Success.String(), connectivity.Failure.String())
	if err != nil {
		return nil, fmt.Errorf("summarize history: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.Feed, &sm.Success, &sm.Failure, &sm.LastSeen); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Prune deletes entries older than the retention period.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	res, err := s.db.ExecContext(ctx, `DELETE FROM feed_results WHERE recorded_at < ?`, ts(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// Run prunes once per interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.Prune(ctx)
			if err != nil {
				log.Warn("History prune failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("Pruned feed history", "deleted", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// ts formats t so that lexical order matches time order.
func ts(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
