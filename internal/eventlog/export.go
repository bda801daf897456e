package eventlog

import (
	"encoding/json"
	"fmt"

	"github.com/omnibrowser/redix/internal/event"
)

// envelope is the export wire format: UTF-8 JSON, consumed by the debug UI
// and the CLI. stateHash is the canonical digest of the exporter's state;
// importers verify it after replay. snapshotIndices are informational only:
// import never carries snapshots over, it rebuilds them by replaying.
type envelope struct {
	Events          []event.Event  `json:"events"`
	State           map[string]any `json:"state"`
	SnapshotIndices []int          `json:"snapshotIndices"`
	StateHash       string         `json:"stateHash,omitempty"`
}

// Export serializes the full log: every event, the current derived state,
// the snapshot positions, and the state's canonical hash.
func (l *Log) Export() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	hash, err := l.st.Digest()
	if err != nil {
		return "", fmt.Errorf("export event log: %w", err)
	}

	env := envelope{
		Events:          l.events,
		State:           map[string]any(l.st),
		SnapshotIndices: make([]int, len(l.snapshots)),
		StateHash:       hash,
	}
	if env.Events == nil {
		env.Events = []event.Event{}
	}
	for i, s := range l.snapshots {
		env.SnapshotIndices[i] = s.eventIndex
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("export event log: %w", err)
	}
	return string(raw), nil
}

// Import replaces the log's contents with the events from an exported
// envelope, then rebuilds state and snapshots by full replay. Nothing else
// in the envelope is trusted: the state field is ignored in favor of the
// replay result, and snapshotIndices never carry over.
//
// When the envelope has a stateHash, the replayed state is verified against
// it; ErrStateHashMismatch means the file was altered or the importer's
// reducers diverge from the exporter's. Import is all-or-nothing: any
// failure, including hash mismatch, leaves the previous log contents in
// place.
func (l *Log) Import(text string) error {
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return fmt.Errorf("import event log: %w", err)
	}
	if env.Events == nil {
		return fmt.Errorf("import event log: missing events field")
	}

	prev := l.Events()

	if err := l.Restore(env.Events); err != nil {
		return fmt.Errorf("import event log: %w", err)
	}

	if env.StateHash != "" {
		digest, err := l.Digest()
		if err != nil || digest != env.StateHash {
			// Roll back to the pre-import log; prev is known-good.
			if restoreErr := l.Restore(prev); restoreErr != nil {
				return fmt.Errorf("import event log: rollback failed: %w", restoreErr)
			}
			if err != nil {
				return fmt.Errorf("import event log: %w", err)
			}
			return fmt.Errorf("import event log: %w", ErrStateHashMismatch)
		}
	}
	return nil
}
