package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/state"
)

// RuntimeEvent is what listeners and the history ring see: the appended
// event plus the states around it and the structural delta between them.
// PrevState and NextState are copies, shared by every listener of the same
// dispatch; treat them as read-only.
type RuntimeEvent struct {
	event.Event

	// Seq is the event's zero-based position in the log.
	Seq       int         `json:"seq"`
	PrevState state.State `json:"prevState"`
	NextState state.State `json:"nextState"`
	Diff      []DiffEntry `json:"diff"`
}

// DebugSnapshot is a periodic capture of the post-dispatch state, taken
// every Nth dispatch on the configured cadence.
type DebugSnapshot struct {
	ID        string      `json:"id"`
	EventID   string      `json:"eventId"`
	EventType string      `json:"eventType"`
	Timestamp int64       `json:"timestamp"`
	State     state.State `json:"state"`
	Diff      []DiffEntry `json:"diff"`
}

// Dispatch validates ev, appends it to the log, computes the state delta,
// records history and snapshots, mirrors the event to storage, and then
// notifies listeners: type-scoped first, then global, in registration
// order. Listeners run synchronously on the calling goroutine after the
// runtime's lock is released, so they may dispatch further events. A
// panicking listener is recovered and logged; the remaining listeners
// still run.
//
// Storage failures after the append are logged and do not fail the
// dispatch: the in-memory log is the source of truth.
func (r *Runtime) Dispatch(ctx context.Context, ev event.Event) (RuntimeEvent, error) {
	start := time.Now()
	_ = r.Init(ctx)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return RuntimeEvent{}, ErrClosed
	}
	if r.validator != nil {
		if err := r.validator.Validate(ev.Type, ev.PayloadMap()); err != nil {
			r.mu.Unlock()
			return RuntimeEvent{}, fmt.Errorf("dispatch %s: %w", ev.Type, err)
		}
	}

	prev := r.log.State()
	appended, err := r.log.Append(ev)
	if err != nil {
		r.mu.Unlock()
		return RuntimeEvent{}, err
	}
	next := r.log.State()

	re := RuntimeEvent{
		Event:     appended,
		Seq:       r.log.Len() - 1,
		PrevState: prev,
		NextState: next,
		Diff:      Diff(prev, next),
	}
	if r.history.push(re) {
		r.metrics.recordHistoryEviction()
	}

	r.dispatchCount++
	if r.snapshotEvery > 0 && r.dispatchCount%int64(r.snapshotEvery) == 0 {
		r.snapSeq++
		r.snaps.push(DebugSnapshot{
			ID:        fmt.Sprintf("snap-%06d", r.snapSeq),
			EventID:   appended.ID,
			EventType: appended.Type,
			Timestamp: appended.Timestamp,
			State:     next,
			Diff:      re.Diff,
		})
		r.metrics.recordDebugSnapshot()
	}

	if r.adapter != nil {
		if err := r.adapter.Append(ctx, appended); err != nil {
			slog.Error("storage append failed", "event", appended.ID, "error", err)
		}
	}
	r.metrics.recordLogSize(r.log.Len())

	targets := r.listeners.matching(appended.Type)
	r.mu.Unlock()

	for _, entry := range targets {
		r.invoke(entry, re)
	}
	r.metrics.recordDispatch(start)
	return re, nil
}

func (r *Runtime) invoke(entry listenerEntry, re RuntimeEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.recordListenerFailure()
			slog.Error("listener panicked", "event", re.Type, "listener", entry.id, "panic", rec)
		}
	}()
	entry.fn(re)
}

// Watch registers fn for events of exactly the given type. The returned
// function removes the registration; calling it more than once is
// harmless.
func (r *Runtime) Watch(eventType string, fn Handler) func() {
	eventType = norm.NFC.String(eventType)
	r.mu.Lock()
	id := r.listeners.addTyped(eventType, fn)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.listeners.remove(eventType, id)
		r.mu.Unlock()
	}
}

// WatchAll registers fn for every dispatched event. Global listeners fire
// after any type-scoped ones.
func (r *Runtime) WatchAll(fn Handler) func() {
	r.mu.Lock()
	id := r.listeners.addGlobal(fn)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.listeners.remove("", id)
		r.mu.Unlock()
	}
}

// History returns the most recent dispatches, newest first. A non-empty
// eventType filters to that type; limit <= 0 means DefaultHistoryLimit.
func (r *Runtime) History(eventType string, limit int) []RuntimeEvent {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	eventType = norm.NFC.String(eventType)
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.history.all()
	out := make([]RuntimeEvent, 0, min(limit, len(entries)))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		if eventType != "" && entries[i].Type != eventType {
			continue
		}
		out = append(out, entries[i])
	}
	return out
}

// Snapshots returns the captured debug snapshots, oldest first.
func (r *Runtime) Snapshots() []DebugSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps.all()
}
