// Package eventlog implements the append-only event log and snapshot store
// at the core of the Redix runtime.
//
// The log is the single source of truth: current state is always derivable
// by folding registered reducers over the event sequence from an empty
// document. Periodic snapshots bound the cost of historical state queries;
// they are a pure cache and are always rebuilt, never trusted across
// import or recovery boundaries.
package eventlog

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/state"
)

// DefaultSnapshotInterval is the append period between replay snapshots.
// Historical queries replay at most this many events past a snapshot.
const DefaultSnapshotInterval = 50

// Reducer folds one event into the state document. Reducers must be pure:
// no mutation of the input state (return a new top-level value, sharing
// untouched sub-trees), no I/O, no reads of ambient time. A reducer that
// does not recognize the event type must return its input unchanged.
type Reducer func(state.State, event.Event) state.State

// snapshot caches the state derived from events [0, eventIndex].
type snapshot struct {
	eventIndex int
	state      state.State
}

// Log is an append-only event log with a registry of named reducers and a
// derived current state.
//
// Thread-safety: all methods are safe for concurrent use, but the contract
// is single logical writer; the mutex protects invariants, it does not
// order concurrent appends meaningfully.
type Log struct {
	mu           sync.Mutex
	events       []event.Event
	snapshots    []snapshot
	st           state.State
	reducers     map[string]Reducer
	idGen        event.IDGenerator
	now          func() int64
	snapInterval int
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the millisecond timestamp source. Tests and the
// conformance harness install deterministic clocks here.
func WithClock(now func() int64) Option {
	return func(l *Log) {
		l.now = now
	}
}

// WithIDGenerator overrides the event ID source.
func WithIDGenerator(gen event.IDGenerator) Option {
	return func(l *Log) {
		l.idGen = gen
	}
}

// WithSnapshotInterval overrides the replay-snapshot period.
// Use small values to exercise snapshot paths in tests.
func WithSnapshotInterval(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.snapInterval = n
		}
	}
}

// New creates an empty log. Production defaults: UUIDv7 event IDs,
// wall-clock millisecond timestamps, snapshots every
// DefaultSnapshotInterval appends.
func New(opts ...Option) *Log {
	l := &Log{
		st:           state.Empty(),
		reducers:     make(map[string]Reducer),
		idGen:        event.UUIDv7Generator{},
		now:          func() int64 { return time.Now().UnixMilli() },
		snapInterval: DefaultSnapshotInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RegisterReducer binds fn to name. Re-registering a name overwrites the
// previous reducer; subsequent replays use the new function.
func (l *Log) RegisterReducer(name string, fn Reducer) {
	name = norm.NFC.String(name)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reducers[name] = fn
}

// Append normalizes the partial event, assigns it a fresh ID and timestamp,
// appends it, and folds it into current state via the reducer named by
// ev.Reducer, if registered. Events naming an unregistered (or empty)
// reducer are logged without changing state; that is never an error.
//
// Every SnapshotInterval-th append also caches a replay snapshot.
func (l *Log) Append(partial event.Event) (event.Event, error) {
	ev, err := event.Normalize(partial)
	if err != nil {
		return event.Event{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ev.ID = l.idGen.Generate()
	ev.Timestamp = l.now()

	l.events = append(l.events, ev)
	l.st = l.apply(l.st, ev)

	if len(l.events)%l.snapInterval == 0 {
		l.snapshots = append(l.snapshots, snapshot{
			eventIndex: len(l.events) - 1,
			state:      l.st,
		})
	}
	return ev, nil
}

// apply folds a single event. Caller holds the lock.
func (l *Log) apply(st state.State, ev event.Event) state.State {
	if ev.Reducer == "" {
		return st
	}
	fn, ok := l.reducers[ev.Reducer]
	if !ok {
		return st
	}
	next := fn(st, ev)
	if next == nil {
		return state.Empty()
	}
	return next
}

// State returns a deep copy of the current derived state.
func (l *Log) State() state.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.Clone()
}

// Len returns the number of logged events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// StateAt returns the state as of event index i (after applying events
// [0, i]). Indexes outside [0, Len()) fail with ErrIndexOutOfRange.
//
// Cost is bounded: the nearest snapshot at or before i seeds the replay,
// so at most SnapshotInterval-1 events are re-applied.
func (l *Log) StateAt(i int) (state.State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateAtLocked(i)
}

// StateAtTime returns the state as of the last event whose timestamp is at
// or before ts. A ts before every event yields the empty document; a ts
// after every event yields current state. Never fails.
func (l *Log) StateAtTime(ts int64) state.State {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Timestamp <= ts {
			st, err := l.stateAtLocked(i)
			if err != nil {
				// Unreachable: i is in range by construction.
				return state.Empty()
			}
			return st
		}
	}
	return state.Empty()
}

// stateAtLocked is StateAt without locking. Caller holds the lock.
func (l *Log) stateAtLocked(i int) (state.State, error) {
	if i < 0 || i >= len(l.events) {
		return nil, fmt.Errorf("index %d outside [0, %d): %w", i, len(l.events), ErrIndexOutOfRange)
	}

	st := state.Empty()
	start := 0
	for k := len(l.snapshots) - 1; k >= 0; k-- {
		snap := l.snapshots[k]
		if snap.eventIndex > i {
			continue
		}
		if snap.eventIndex == i {
			return snap.state.Clone(), nil
		}
		st = snap.state
		start = snap.eventIndex + 1
		break
	}

	for j := start; j <= i; j++ {
		st = l.apply(st, l.events[j])
	}
	return st.Clone(), nil
}

// Replay rebuilds current state and all snapshots from the event sequence
// alone and returns the rebuilt state. Idempotent; used after log surgery
// (undo, import, recovery).
func (l *Log) Replay() state.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replayLocked()
	return l.st.Clone()
}

func (l *Log) replayLocked() {
	l.snapshots = nil
	st := state.Empty()
	for i, ev := range l.events {
		st = l.apply(st, ev)
		if (i+1)%l.snapInterval == 0 {
			l.snapshots = append(l.snapshots, snapshot{eventIndex: i, state: st})
		}
	}
	l.st = st
}

// Undo drops the most recent event and replays the remainder, returning the
// rolled-back state. ErrNothingToUndo on an empty log. Cost is O(log
// length); undo is a rollback, not a cheap pointer move.
func (l *Log) Undo() (state.State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) == 0 {
		return nil, ErrNothingToUndo
	}

	// Nil the slot so the backing array releases the payload.
	l.events[len(l.events)-1] = event.Event{}
	l.events = l.events[:len(l.events)-1]
	l.replayLocked()
	return l.st.Clone(), nil
}

// Redo always fails with ErrRedoUnsupported; see that error's doc.
func (l *Log) Redo() (state.State, error) {
	return nil, ErrRedoUnsupported
}

// Events returns a copy of the full event sequence in append order.
func (l *Log) Events() []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]event.Event, len(l.events))
	copy(out, l.events)
	return out
}

// IndexOf returns the zero-based position of the event with the given ID.
func (l *Log) IndexOf(id string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, ev := range l.events {
		if ev.ID == id {
			return i, true
		}
	}
	return 0, false
}

// EventsByType returns events whose type equals t (after NFC
// normalization), in append order.
func (l *Log) EventsByType(t string) []event.Event {
	t = norm.NFC.String(t)
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []event.Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// EventsInRange returns events with from <= Timestamp <= to, in append
// order.
func (l *Log) EventsInRange(from, to int64) []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []event.Event
	for _, ev := range l.events {
		if ev.Timestamp >= from && ev.Timestamp <= to {
			out = append(out, ev)
		}
	}
	return out
}

// SnapshotIndices returns the event indexes that currently have cached
// replay snapshots, in ascending order.
func (l *Log) SnapshotIndices() []int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]int, len(l.snapshots))
	for i, s := range l.snapshots {
		out[i] = s.eventIndex
	}
	return out
}

// Restore replaces the log's contents with the given events (normalizing
// each) and replays. Assigned IDs and timestamps are preserved, unlike
// Append. Used by import and persistence recovery.
func (l *Log) Restore(events []event.Event) error {
	normed := make([]event.Event, len(events))
	for i, ev := range events {
		n, err := event.Normalize(ev)
		if err != nil {
			return fmt.Errorf("restore event %d: %w", i, err)
		}
		normed[i] = n
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = normed
	l.replayLocked()
	return nil
}

// Clear drops all events, snapshots, and derived state.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	l.snapshots = nil
	l.st = state.Empty()
}

// Digest returns the canonical hash of current state.
func (l *Log) Digest() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.Digest()
}
