package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/randalmurphal/ticketflow/checkpoint"
)

// DB is an open ticketflow database.
type DB struct {
	db    *sql.DB
	clock *checkpoint.Clock
	now   func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithClock sets the time source for stored timestamps and lease expiry.
func WithClock(now func() time.Time) Option {
	return func(d *DB) {
		if now != nil {
			d.now = now
			d.clock = checkpoint.NewClock(now)
		}
	}
}

// Open opens (or creates) the database at path and runs migrations.
// The special path ":memory:" opens a private in-memory database.
func Open(path string, opts ...Option) (*DB, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create db directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// SQLite allows one writer; an in-memory database also must not be
	// split across connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db, now: time.Now, clock: checkpoint.NewClock(nil)}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Checkpoints returns the checkpoint store.
func (d *DB) Checkpoints() *CheckpointStore {
	return &CheckpointStore{db: d.db, clock: d.clock}
}

// Tickets returns the ticket repository.
func (d *DB) Tickets() *TicketStore {
	return &TicketStore{db: d.db, now: d.now}
}

// Leases returns the per-ticket lease table.
func (d *DB) Leases() *Leases {
	return &Leases{db: d.db, now: d.now}
}

func (d *DB) migrate() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			id              TEXT PRIMARY KEY,
			ticket_id       TEXT NOT NULL,
			graph_id        TEXT NOT NULL,
			checkpoint_id   TEXT NOT NULL,
			state_json      TEXT NOT NULL,
			agent_name      TEXT NOT NULL DEFAULT '',
			next_agent_type TEXT NOT NULL DEFAULT '',
			created_at      INTEGER NOT NULL,
			status          TEXT NOT NULL DEFAULT 'active'
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_checkpoints_active
			ON checkpoints(ticket_id, graph_id, checkpoint_id) WHERE status = 'active';
		CREATE INDEX IF NOT EXISTS idx_checkpoints_latest
			ON checkpoints(ticket_id, graph_id, created_at);

		CREATE TABLE IF NOT EXISTS tickets (
			id          TEXT PRIMARY KEY,
			tenant_id   TEXT NOT NULL DEFAULT '',
			state       TEXT NOT NULL,
			record_json TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_state ON tickets(state);

		CREATE TABLE IF NOT EXISTS leases (
			ticket_id  TEXT PRIMARY KEY,
			holder_id  TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
	`)
	return err
}
