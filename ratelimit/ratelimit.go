// Package ratelimit guards calls to the summarization backend with a
// durable rolling-window limiter shared across process invocations.
//
// Two constraints apply and both must pass: at most MaxPerWindow calls
// in the trailing Window, and at least MinInterval since the previous
// call. State is a single-table SQLite database; the check-and-record
// sequence runs inside one transaction, so two near-simultaneous
// processes sharing the state file cannot both pass on a stale view
// (the loser's write is serialized behind SQLITE_BUSY and re-reads
// committed state, see dbopen.RunTx).
package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/gistify/dbopen"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
    ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS calls_ts ON calls(ts);
`

// Config configures the limiter.
type Config struct {
	// Window is the rolling interval calls are counted over. Default: 1h.
	Window time.Duration

	// MaxPerWindow caps recorded calls inside the window. Default: 10.
	MaxPerWindow int

	// MinInterval is the minimum gap since the most recent call. Default: 5s.
	MinInterval time.Duration

	// Now supplies the clock, injectable for tests. Default: time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Window <= 0 {
		c.Window = time.Hour
	}
	if c.MaxPerWindow <= 0 {
		c.MaxPerWindow = 10
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 5 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Decision is the outcome of a gated call attempt. When Allowed is
// false, RetryAfter is how long until a retry could pass both
// constraints.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter enforces the call budget against a shared SQLite state file.
type Limiter struct {
	db  *sql.DB
	cfg Config
}

// DefaultPath returns the per-user state location, ~/.gistify/ratelimit.db.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ratelimit.db"
	}
	return filepath.Join(home, ".gistify", "ratelimit.db")
}

// Open opens (or creates) the state database at path. An unreadable or
// corrupt file is discarded and recreated as empty state rather than
// failing the run.
func Open(path string, cfg Config) (*Limiter, error) {
	cfg.defaults()

	db, err := openState(path)
	if err != nil {
		cfg.Logger.Warn("ratelimit: state unreadable, recreating", "path", path, "error", err)
		removeState(path)
		db, err = openState(path)
		if err != nil {
			return nil, fmt.Errorf("ratelimit: open state %s: %w", path, err)
		}
	}
	return &Limiter{db: db, cfg: cfg}, nil
}

// New wraps an already-open database, typically dbopen.OpenMemory in
// tests. The schema must have been applied.
func New(db *sql.DB, cfg Config) *Limiter {
	cfg.defaults()
	return &Limiter{db: db, cfg: cfg}
}

// Schema returns the state schema for callers opening their own database.
func Schema() string { return schema }

// Close releases the state database.
func (l *Limiter) Close() error {
	return l.db.Close()
}

// CheckAndRecord applies both constraints at the current clock reading.
// On pass, the call is recorded and persisted before returning. On
// denial, no timestamp is added; expired and future-dated entries are
// still pruned (a clock that moved backward must not let stale state
// extend the budget).
func (l *Limiter) CheckAndRecord(ctx context.Context) (Decision, error) {
	now := l.cfg.Now()
	nowMs := now.UnixMilli()
	windowMs := l.cfg.Window.Milliseconds()

	var dec Decision
	err := dbopen.RunTx(ctx, l.db, func(tx *sql.Tx) error {
		// Prune entries outside the window, and entries in the future
		// relative to now: those come from a clock jump and would
		// otherwise pin the window shut (or open) indefinitely.
		if _, err := tx.Exec(`DELETE FROM calls WHERE ts > ? OR ts <= ?`, nowMs, nowMs-windowMs); err != nil {
			return fmt.Errorf("prune: %w", err)
		}

		var count int
		var newest, oldest sql.NullInt64
		row := tx.QueryRow(`SELECT COUNT(*), MAX(ts), MIN(ts) FROM calls`)
		if err := row.Scan(&count, &newest, &oldest); err != nil {
			return fmt.Errorf("scan window: %w", err)
		}

		var wait time.Duration
		if count > 0 && newest.Valid {
			if gap := time.Duration(nowMs-newest.Int64) * time.Millisecond; gap < l.cfg.MinInterval {
				wait = l.cfg.MinInterval - gap
			}
		}
		if count >= l.cfg.MaxPerWindow && oldest.Valid {
			// Window clears when the oldest recorded call ages out.
			if w := l.cfg.Window - time.Duration(nowMs-oldest.Int64)*time.Millisecond; w > wait {
				wait = w
			}
		}

		if wait > 0 {
			dec = Decision{Allowed: false, RetryAfter: wait}
			return nil
		}

		if _, err := tx.Exec(`INSERT INTO calls (ts) VALUES (?)`, nowMs); err != nil {
			return fmt.Errorf("record: %w", err)
		}
		dec = Decision{Allowed: true}
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: check and record: %w", err)
	}

	if !dec.Allowed {
		l.cfg.Logger.Debug("ratelimit: denied", "retry_after", dec.RetryAfter)
	}
	return dec, nil
}

func openState(path string) (*sql.DB, error) {
	return dbopen.Open(path,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(schema),
	)
}

func removeState(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		os.Remove(p)
	}
}
