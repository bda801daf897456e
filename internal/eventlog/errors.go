package eventlog

import "errors"

// Sentinel errors returned by log operations. Callers match with errors.Is.
var (
	// ErrNothingToUndo is returned by Undo on an empty log.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrRedoUnsupported is returned by Redo unconditionally. Undo drops
	// the tail event instead of parking it, so there is never anything to
	// reapply. The error makes the non-support explicit at the call site
	// rather than silently returning an unchanged state.
	ErrRedoUnsupported = errors.New("redo is not supported: undone events are dropped, not parked")

	// ErrIndexOutOfRange is returned by StateAt for indexes outside the
	// logged range.
	ErrIndexOutOfRange = errors.New("event index out of range")

	// ErrStateHashMismatch is returned by Import when the replayed state
	// does not match the stateHash recorded in the export. This means the
	// file was tampered with or the importing process registered different
	// reducers than the exporter.
	ErrStateHashMismatch = errors.New("replayed state does not match export stateHash")
)
