// Package authaudit persists a local record of authenticator activity
// (logins, logouts, opportunistic re-auths) so a long-running caller of the
// HTTP client core can answer "when did this host last re-authenticate, and
// did it succeed" without re-deriving it from scattered log lines. Grounded
// on the teacher's own storage stack: goose migrations over
// modernc.org/sqlite, the same pairing tonimelisma/onedrive-go uses for its
// local sync-state database.
package authaudit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Event is one recorded authenticator action.
type Event struct {
	Host       string
	Method     string // "oauth" | "cookie" | "bot" | "none", or "unknown" (what aclnetctl records)
	Kind       string // "login" | "logout" | "opportunistic_reauth"
	Outcome    string // "success" | "failure"
	OccurredAt time.Time
}

// Store wraps a SQLite-backed audit ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates it to the latest schema version via goose.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("authaudit: opening %s: %w", path, err)
	}

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("authaudit: setting dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("authaudit: migrating %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record appends one audit event.
func (s *Store) Record(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_events (host, method, event, outcome, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		e.Host, e.Method, e.Kind, e.Outcome, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("authaudit: recording event: %w", err)
	}

	return nil
}

// Recent returns the most recent n events for host, newest first. n <= 0
// returns all events for host.
func (s *Store) Recent(ctx context.Context, host string, n int) ([]Event, error) {
	query := `SELECT host, method, event, outcome, occurred_at FROM auth_events
		WHERE host = ? ORDER BY occurred_at DESC, id DESC`

	args := []any{host}

	if n > 0 {
		query += ` LIMIT ?`
		args = append(args, n)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("authaudit: querying events: %w", err)
	}
	defer rows.Close()

	var out []Event

	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Host, &e.Method, &e.Kind, &e.Outcome, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("authaudit: scanning event: %w", err)
		}

		out = append(out, e)
	}

	return out, rows.Err()
}
