// Package accesslog provides an optional durable sink for proxy lifecycle
// events, persisted to a local SQLite file via the pure-Go modernc.org
// driver (no cgo), so a relaygate binary stays a single static artifact.
package accesslog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relaygate/relaygate/internal/proxy"
)

// Row is one recorded lifecycle event, matching the nine event kinds a
// Server emits.
type Row struct {
	RequestID  string
	Pipeline   string // "web" or "ws"
	Event      string
	Path       string
	Status     int
	DurationMS int64
	OccurredAt time.Time
}

// Store persists Rows to a SQLite database. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.Mutex
}

// Open creates (if needed) the schema at path and returns a ready Store.
// path may be ":memory:" for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("accesslog: opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway

	const schema = `
CREATE TABLE IF NOT EXISTS access_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id  TEXT NOT NULL,
	pipeline    TEXT NOT NULL,
	event       TEXT NOT NULL,
	path        TEXT NOT NULL,
	status      INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	occurred_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_access_log_request_id ON access_log(request_id);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("accesslog: creating schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Record writes one row. Errors are logged, not returned, since a failing
// access-log sink must never affect the primary proxy path.
func (s *Store) Record(ctx context.Context, row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_log (request_id, pipeline, event, path, status, duration_ms, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.RequestID, row.Pipeline, row.Event, row.Path, row.Status, row.DurationMS, row.OccurredAt,
	)
	if err != nil {
		s.logger.Error("accesslog: insert failed", "error", err)
	}
}

// Recent returns up to limit rows, most recent first, for the admin API.
func (s *Store) Recent(ctx context.Context, limit int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, pipeline, event, path, status, duration_ms, occurred_at
		 FROM access_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("accesslog: querying recent rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.RequestID, &r.Pipeline, &r.Event, &r.Path, &r.Status, &r.DurationMS, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("accesslog: scanning row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Listener returns a proxy.Listener suitable for Server.On(kind, ...) that
// records every occurrence of kind on pipeline ("web" or "ws") as a Row.
// Registering it for each of the nine event kinds turns a Server's full
// lifecycle into a durable audit trail.
func (s *Store) Listener(pipeline string) proxy.Listener {
	return func(ev proxy.Event) {
		row := Row{
			Pipeline:   pipeline,
			Event:      string(ev.Kind),
			OccurredAt: time.Now(),
		}
		if ev.Req != nil {
			row.RequestID = ev.Req.RequestID
			if ev.Req.Req != nil {
				row.Path = ev.Req.Req.URL.Path
			}
		}
		if ev.Err != nil {
			row.Event = string(ev.Kind) + ":" + string(ev.Err.Kind)
		}
		s.Record(context.Background(), row)
	}
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
