package persist

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/state"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added timestamp index for range scans
const currentSchemaVersion = 1

// SQLite is the durable adapter for desktop deployments. Uses WAL mode so
// inspection tools can read while the runtime writes.
type SQLite struct {
	db     *sql.DB
	closed atomic.Bool
}

// OpenSQLite creates or opens the event database at path and applies
// pragmas and migrations. Idempotent; safe to call on an existing database.
//
// The connection is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - a single connection (SQLite allows one writer at a time)
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// Single writer avoids SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Init implements Adapter. The schema is already applied by OpenSQLite;
// Init verifies the connection still answers.
func (s *SQLite) Init(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite init: %w", err)
	}
	return nil
}

// Append implements Adapter. ON CONFLICT(id) DO NOTHING makes duplicate
// appends of the same event idempotent; payload and metadata are stored as
// canonical JSON.
func (s *SQLite) Append(ctx context.Context, ev event.Event) error {
	if s.closed.Load() {
		return ErrClosed
	}

	payloadJSON, err := marshalPayload(ev.Payload)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	metadataJSON, err := marshalMetadata(ev.Metadata)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, type, payload, timestamp, reducer, source, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		ev.Type,
		payloadJSON,
		ev.Timestamp,
		ev.Reducer,
		ev.Source,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Load implements Adapter. Rows come back in durable append order with a
// byte-wise ID tie-break, so recovery replay order is deterministic.
func (s *SQLite) Load(ctx context.Context) ([]event.Event, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, payload, timestamp, reducer, source, metadata
		FROM events
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		var (
			ev           event.Event
			payloadJSON  sql.NullString
			metadataJSON sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &payloadJSON, &ev.Timestamp, &ev.Reducer, &ev.Source, &metadataJSON); err != nil {
			return nil, fmt.Errorf("load events: scan: %w", err)
		}
		if payloadJSON.Valid && payloadJSON.String != "" {
			if err := json.Unmarshal([]byte(payloadJSON.String), &ev.Payload); err != nil {
				return nil, fmt.Errorf("load events: payload for %s: %w", ev.ID, err)
			}
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("load events: metadata for %s: %w", ev.ID, err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return out, nil
}

// Truncate implements Adapter: keeps the first keep events in seq order and
// deletes the rest.
func (s *SQLite) Truncate(ctx context.Context, keep int) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if keep < 0 {
		keep = 0
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM events
		WHERE seq > (
			SELECT COALESCE(MAX(seq), 0)
			FROM (SELECT seq FROM events ORDER BY seq ASC LIMIT ?)
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("truncate events: %w", err)
	}
	return nil
}

// Reset implements Adapter.
func (s *SQLite) Reset(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("reset events: %w", err)
	}
	return nil
}

// Close implements Adapter.
func (s *SQLite) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// marshalPayload renders a payload as RFC 8785 canonical JSON, or "" for a
// nil payload (stored as NULL-ish empty).
func marshalPayload(payload any) (string, error) {
	if payload == nil {
		return "", nil
	}
	canon, err := state.CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	return string(canon), nil
}

// marshalMetadata renders metadata deterministically (encoding/json sorts
// string map keys).
func marshalMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental schema migrations based on
// user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the timestamp index for databases created before it was
// part of schema.sql. CREATE INDEX IF NOT EXISTS is a no-op on new
// databases.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}
