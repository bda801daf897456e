package runtime

import (
	"context"
	"log/slog"

	"github.com/omnibrowser/redix/internal/eventlog"
	"github.com/omnibrowser/redix/internal/state"
)

// TravelQuery selects a historical state. When more than one criterion is
// set, EventID wins over EventIndex, which wins over Timestamp.
type TravelQuery struct {
	EventID    string
	EventIndex *int
	Timestamp  *int64
}

// TimeTravel reconstructs the state the log held after the event the query
// names. It reports false when the query is empty or names nothing: an
// unknown event ID or an out-of-range index. A timestamp always resolves;
// one before the first event yields the empty state.
func (r *Runtime) TimeTravel(q TravelQuery) (state.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case q.EventID != "":
		idx, ok := r.log.IndexOf(q.EventID)
		if !ok {
			return nil, false
		}
		st, err := r.log.StateAt(idx)
		if err != nil {
			return nil, false
		}
		return st, true
	case q.EventIndex != nil:
		st, err := r.log.StateAt(*q.EventIndex)
		if err != nil {
			return nil, false
		}
		return st, true
	case q.Timestamp != nil:
		return r.log.StateAtTime(*q.Timestamp), true
	default:
		return nil, false
	}
}

// Undo removes the most recent event, replays the rest, prunes history and
// snapshot entries that referenced it, and truncates the durable mirror to
// match. Returns ErrNothingToUndo on an empty log.
func (r *Runtime) Undo(ctx context.Context) (state.State, error) {
	_ = r.Init(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	st, err := r.log.Undo()
	if err != nil {
		return nil, err
	}
	r.pruneDeadEntriesLocked()
	if r.adapter != nil {
		if terr := r.adapter.Truncate(ctx, r.log.Len()); terr != nil {
			slog.Error("storage truncate failed", "keep", r.log.Len(), "error", terr)
		}
	}
	r.metrics.recordLogSize(r.log.Len())
	return st, nil
}

// Redo is unsupported: undo discards events rather than parking them, so
// there is nothing to reapply.
func (r *Runtime) Redo() (state.State, error) {
	return nil, eventlog.ErrRedoUnsupported
}

// Export serializes the log as a portable envelope.
func (r *Runtime) Export() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Export()
}

// Import replaces the log from an export envelope, rebuilds the durable
// mirror, and drops history and snapshot entries that referenced the old
// events. A failed import leaves the runtime untouched.
func (r *Runtime) Import(ctx context.Context, data string) error {
	_ = r.Init(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if err := r.log.Import(data); err != nil {
		return err
	}
	r.pruneDeadEntriesLocked()
	if r.adapter != nil {
		if err := r.adapter.Reset(ctx); err != nil {
			slog.Error("storage reset failed", "error", err)
		} else {
			for _, ev := range r.log.Events() {
				if err := r.adapter.Append(ctx, ev); err != nil {
					slog.Error("storage append failed", "event", ev.ID, "error", err)
				}
			}
		}
	}
	r.metrics.recordLogSize(r.log.Len())
	return nil
}

// pruneDeadEntriesLocked drops history and snapshot entries whose events
// are no longer in the log.
func (r *Runtime) pruneDeadEntriesLocked() {
	alive := make(map[string]struct{}, r.log.Len())
	for _, ev := range r.log.Events() {
		alive[ev.ID] = struct{}{}
	}
	r.history.retain(func(re RuntimeEvent) bool {
		_, ok := alive[re.ID]
		return ok
	})
	r.snaps.retain(func(s DebugSnapshot) bool {
		_, ok := alive[s.EventID]
		return ok
	})
}
