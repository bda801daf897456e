// Package runtime wires the event log to the outside world: it validates
// and dispatches events, notifies watchers synchronously, keeps a bounded
// dispatch history with periodic debug snapshots, and mirrors appended
// events to a storage adapter.
//
// Thread-safety: all exported methods are safe for concurrent use. The
// runtime assumes a single logical writer; concurrent Dispatch calls are
// serialized, not coordinated.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/omnibrowser/redix/internal/eventlog"
	"github.com/omnibrowser/redix/internal/persist"
	"github.com/omnibrowser/redix/internal/reducer"
	"github.com/omnibrowser/redix/internal/state"
)

const (
	// DefaultHistorySize bounds the dispatch history ring.
	DefaultHistorySize = 200

	// DefaultSnapshotEvery is the dispatch cadence for debug snapshots.
	DefaultSnapshotEvery = 5

	// DefaultMaxSnapshots bounds the debug snapshot ring.
	DefaultMaxSnapshots = 100

	// DefaultHistoryLimit is how many history entries History returns
	// when the caller does not ask for a specific count.
	DefaultHistoryLimit = 10
)

// ErrClosed is returned by mutating calls after Close.
var ErrClosed = errors.New("runtime closed")

// Validator vets an event before it reaches the log. Dispatch rejects the
// event when Validate returns an error.
type Validator interface {
	Validate(eventType string, payload map[string]any) error
}

// Runtime is the dispatch engine over a single event log.
type Runtime struct {
	mu sync.Mutex

	log       *eventlog.Log
	adapter   persist.Adapter
	validator Validator
	metrics   *Metrics

	listeners *listenerRegistry
	history   *ring[RuntimeEvent]
	snaps     *ring[DebugSnapshot]

	historySize   int
	snapshotEvery int
	maxSnapshots  int

	dispatchCount int64
	snapSeq       int64

	initOnce sync.Once
	initErr  error
	degraded bool
	closed   bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithAdapter mirrors appended events to a. Init recovers the log from it.
func WithAdapter(a persist.Adapter) Option {
	return func(r *Runtime) { r.adapter = a }
}

// WithLog runs the runtime over an existing log instead of a fresh one.
// New registers the default reducers on it; re-register after New to
// override any of them.
func WithLog(l *eventlog.Log) Option {
	return func(r *Runtime) { r.log = l }
}

// WithValidator vets every dispatched event before it is appended.
func WithValidator(v Validator) Option {
	return func(r *Runtime) { r.validator = v }
}

// WithMetrics records dispatch instrumentation. Without it the runtime
// runs unmetered.
func WithMetrics(m *Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// WithHistorySize bounds the dispatch history ring.
func WithHistorySize(n int) Option {
	return func(r *Runtime) { r.historySize = n }
}

// WithSnapshotEvery sets the dispatch cadence for debug snapshots. Zero
// disables them.
func WithSnapshotEvery(n int) Option {
	return func(r *Runtime) { r.snapshotEvery = n }
}

// WithMaxSnapshots bounds the debug snapshot ring.
func WithMaxSnapshots(n int) Option {
	return func(r *Runtime) { r.maxSnapshots = n }
}

// New builds a runtime with the default reducers registered. Storage
// recovery is deferred to Init, or to the first Dispatch if Init is never
// called.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		historySize:   DefaultHistorySize,
		snapshotEvery: DefaultSnapshotEvery,
		maxSnapshots:  DefaultMaxSnapshots,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = eventlog.New()
	}
	reducer.RegisterDefaults(r.log)
	r.listeners = newListenerRegistry()
	r.history = newRing[RuntimeEvent](r.historySize)
	r.snaps = newRing[DebugSnapshot](r.maxSnapshots)
	return r
}

// Init prepares the storage adapter and replays any persisted events into
// the log. It runs once; later calls return the first outcome. A failing
// adapter does not stop the runtime: it degrades to memory-only operation
// and Init returns the error so durability-sensitive callers can react.
func (r *Runtime) Init(ctx context.Context) error {
	r.initOnce.Do(func() { r.initErr = r.initialize(ctx) })
	return r.initErr
}

func (r *Runtime) initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adapter == nil {
		return nil
	}
	if err := r.adapter.Init(ctx); err != nil {
		slog.Warn("storage unavailable, continuing in memory", "error", err)
		_ = r.adapter.Close()
		r.adapter = nil
		r.degraded = true
		return err
	}
	events, err := r.adapter.Load(ctx)
	if err != nil {
		slog.Warn("storage recovery failed, starting empty", "error", err)
		return err
	}
	if len(events) > 0 && r.log.Len() == 0 {
		if err := r.log.Restore(events); err != nil {
			slog.Warn("storage replay failed, starting empty", "error", err)
			return err
		}
		slog.Info("recovered event log from storage", "events", r.log.Len())
	}
	r.metrics.recordLogSize(r.log.Len())
	return nil
}

// Degraded reports whether the runtime fell back to memory-only operation
// because its storage adapter failed to initialize.
func (r *Runtime) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

// State returns a copy of the current materialized state.
func (r *Runtime) State() state.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.State()
}

// Log exposes the underlying event log for replay, filtering, and digest
// checks.
func (r *Runtime) Log() *eventlog.Log {
	return r.log
}

// Clear resets the dispatch surface: listeners, history, debug snapshots,
// and the snapshot cadence. The event log and durable storage keep their
// events.
func (r *Runtime) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners.reset()
	r.history.clear()
	r.snaps.clear()
	r.dispatchCount = 0
	r.snapSeq = 0
}

// Close releases the storage adapter. Mutating calls fail afterwards.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.adapter == nil {
		return nil
	}
	return r.adapter.Close()
}
