// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/foredeck-sh/foredeck/lib/clock"
)

// schema is applied to every pool connection on first use. CREATE IF
// NOT EXISTS makes it a no-op after the first connection of the first
// run.
const schema = `
	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY,
		received_at INTEGER NOT NULL,
		channel     TEXT NOT NULL,
		kind        TEXT NOT NULL,
		resource    TEXT NOT NULL DEFAULT '',
		payload     TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_events_received ON events(received_at);
	CREATE INDEX IF NOT EXISTS idx_events_channel_kind ON events(channel, kind);
`

// Entry is one journaled stream frame.
type Entry struct {
	// ID is the journal's own row identifier, assigned on insert.
	// Zero on entries passed to Append.
	ID int64

	// ReceivedAt is when the client received the frame. Append fills
	// it from the journal's clock when zero.
	ReceivedAt time.Time

	// Channel is the feed channel label the frame arrived on:
	// "inbox", "chat", or a per-feed label like "integration:github".
	Channel string

	// Kind is the frame type, e.g. "inbox.task.created".
	Kind string

	// Resource is the primary identifier the frame concerns — a task
	// id, conversation id, or run id. May be empty for frames with no
	// single subject.
	Resource string

	// Payload is the frame's raw JSON data.
	Payload []byte
}

// Filter selects journal entries. Zero-valued fields are not applied.
type Filter struct {
	// Since keeps entries received at or after this instant.
	Since time.Time

	// Channel is an exact match on the channel label.
	Channel string

	// Kind is a prefix match on the frame type: "inbox.task" matches
	// created, updated, and closed.
	Kind string

	// Resource is an exact match on the resource identifier.
	Resource string

	// Limit caps the number of entries returned (default 100).
	Limit int
}

// Config holds the parameters for opening a journal.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist; the file is created on first open.
	// Required.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative.
	PoolSize int

	// Retention, when positive, deletes entries older than this on
	// open. Zero keeps everything.
	Retention time.Duration

	// Clock provides receive timestamps and the retention cutoff.
	// Defaults to the real clock.
	Clock clock.Clock

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Journal is the SQLite-backed event journal. Safe for concurrent use;
// a watch session appending frames and a log query can share one
// Journal or separate processes on the same file.
type Journal struct {
	pool   *sqlitex.Pool
	clock  clock.Clock
	logger *slog.Logger
	path   string
}

// Open opens the journal database, creating it if needed, and applies
// retention. The caller must Close the journal when done.
func Open(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("eventlog: Path is required")
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: opening %s: %w", cfg.Path, err)
	}

	journal := &Journal{
		pool:   pool,
		clock:  clk,
		logger: logger,
		path:   cfg.Path,
	}

	if cfg.Retention > 0 {
		if _, err := journal.Prune(context.Background(), cfg.Retention); err != nil {
			pool.Close()
			return nil, err
		}
	}

	logger.Info("event journal opened", "path", cfg.Path)
	return journal, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (j *Journal) Close() error {
	if err := j.pool.Close(); err != nil {
		return fmt.Errorf("eventlog: closing %s: %w", j.path, err)
	}
	return nil
}

// Append inserts one entry. A zero ReceivedAt is filled from the
// journal's clock. The insert is a single synchronous write; WAL mode
// keeps it cheap enough to call from feed callbacks directly.
func (j *Journal) Append(ctx context.Context, entry Entry) error {
	if entry.Channel == "" {
		return fmt.Errorf("eventlog: append: channel is required")
	}
	if entry.Kind == "" {
		return fmt.Errorf("eventlog: append: kind is required")
	}
	receivedAt := entry.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = j.clock.Now()
	}

	conn, err := j.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("eventlog: append: %w", err)
	}
	defer j.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO events (received_at, channel, kind, resource, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				receivedAt.UTC().UnixNano(),
				entry.Channel,
				entry.Kind,
				entry.Resource,
				string(entry.Payload),
			},
		})
	if err != nil {
		return fmt.Errorf("eventlog: append: %w", err)
	}
	return nil
}

// Query returns entries matching the filter, newest first. Entries
// with the same receive timestamp order by insertion, newest first.
func (j *Journal) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventlog: query: %w", err)
	}
	defer j.pool.Put(conn)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var conditions []string
	var args []any

	if !filter.Since.IsZero() {
		conditions = append(conditions, "received_at >= ?")
		args = append(args, filter.Since.UTC().UnixNano())
	}
	if filter.Channel != "" {
		conditions = append(conditions, "channel = ?")
		args = append(args, filter.Channel)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind LIKE ?")
		args = append(args, filter.Kind+"%")
	}
	if filter.Resource != "" {
		conditions = append(conditions, "resource = ?")
		args = append(args, filter.Resource)
	}

	query := "SELECT id, received_at, channel, kind, resource, payload FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY received_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var entries []Entry
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entry := Entry{
				ID:         stmt.ColumnInt64(0),
				ReceivedAt: time.Unix(0, stmt.ColumnInt64(1)).UTC(),
				Channel:    stmt.ColumnText(2),
				Kind:       stmt.ColumnText(3),
				Resource:   stmt.ColumnText(4),
			}
			if payload := stmt.ColumnText(5); payload != "" {
				entry.Payload = []byte(payload)
			}
			entries = append(entries, entry)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: query: %w", err)
	}
	return entries, nil
}

// Count returns the total number of journaled entries.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("eventlog: count: %w", err)
	}
	defer j.pool.Put(conn)

	var count int64
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM events", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("eventlog: count: %w", err)
	}
	return count, nil
}

// Prune deletes entries received more than olderThan before the
// current clock and reports how many were removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("eventlog: prune: %w", err)
	}
	defer j.pool.Put(conn)

	cutoff := j.clock.Now().Add(-olderThan)
	err = sqlitex.Execute(conn, "DELETE FROM events WHERE received_at < ?", &sqlitex.ExecOptions{
		Args: []any{cutoff.UTC().UnixNano()},
	})
	if err != nil {
		return 0, fmt.Errorf("eventlog: prune: %w", err)
	}

	deleted := int64(conn.Changes())
	if deleted > 0 {
		j.logger.Info("journal pruned",
			"deleted", deleted,
			"cutoff", cutoff.UTC().Format(time.RFC3339),
		)
	}
	return deleted, nil
}

// prepareConnection applies the journal's pragmas and schema. Runs
// once per pool connection, on first use.
func prepareConnection(conn *sqlite.Conn) error {
	// WAL keeps a watch session's appends from blocking log queries.
	// NORMAL synchronous survives process crashes; the journal is an
	// observation log, so OS-crash durability is not worth
	// fsync-per-commit.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("eventlog: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("eventlog: schema: %w", err)
	}
	return nil
}
