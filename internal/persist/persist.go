// Package persist provides durable storage adapters for the event log.
//
// An Adapter mirrors the in-memory log: every append is written through,
// undo truncates, and import resets. At startup the runtime loads persisted
// events back and replays them. Adapters are strictly best-effort from the
// runtime's point of view: a failing adapter degrades the runtime to
// memory-only operation, it never blocks a dispatch.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/omnibrowser/redix/internal/event"
)

// Supported driver names for Open and the REDIX_STORAGE_DRIVER variable.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Environment variables consulted by OpenFromEnv. Library callers inject
// adapters directly; the CLI and embedding shells configure via env.
const (
	EnvDriver     = "REDIX_STORAGE_DRIVER"
	EnvSQLitePath = "REDIX_SQLITE_PATH"
	EnvBadgerDir  = "REDIX_BADGER_DIR"
)

// ErrClosed is returned by operations on a closed adapter.
var ErrClosed = errors.New("persistence adapter is closed")

// Adapter is the storage contract between the runtime and a backend.
//
// Implementations must preserve append order on Load and must tolerate
// duplicate appends of the same event ID (idempotent writes): the runtime
// may retry after partial failures.
type Adapter interface {
	// Init prepares the backend. The runtime calls it exactly once before
	// first use; failure degrades the runtime to memory-only operation.
	Init(ctx context.Context) error

	// Append writes one event. Events arrive in log order.
	Append(ctx context.Context, ev event.Event) error

	// Load returns all persisted events in append order.
	Load(ctx context.Context) ([]event.Event, error)

	// Truncate drops every event past the first keep ones. Undo support.
	Truncate(ctx context.Context, keep int) error

	// Reset drops all persisted events. Import support.
	Reset(ctx context.Context) error

	// Close releases backend resources. Operations after Close fail with
	// ErrClosed.
	Close() error
}

// Open constructs an adapter for the named driver. An empty driver selects
// memory. The path is the SQLite file or the Badger directory; memory
// ignores it.
func Open(driver, path string) (Adapter, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if path == "" {
			return nil, fmt.Errorf("driver %q requires a database path", driver)
		}
		return OpenSQLite(path)
	case DriverBadger:
		if path == "" {
			return nil, fmt.Errorf("driver %q requires a directory", driver)
		}
		return OpenBadger(DefaultBadgerConfig(path))
	default:
		return nil, fmt.Errorf("unknown storage driver %q (want %s, %s, or %s)",
			driver, DriverMemory, DriverSQLite, DriverBadger)
	}
}

// OpenFromEnv constructs the adapter selected by REDIX_STORAGE_DRIVER,
// defaulting to memory when unset.
func OpenFromEnv() (Adapter, error) {
	driver := os.Getenv(EnvDriver)
	var path string
	switch driver {
	case DriverSQLite:
		path = os.Getenv(EnvSQLitePath)
	case DriverBadger:
		path = os.Getenv(EnvBadgerDir)
	}
	return Open(driver, path)
}
