package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omnibrowser/redix/internal/eventlog"
	"github.com/omnibrowser/redix/internal/state"
)

// UndoOptions holds flags for the undo command.
type UndoOptions struct {
	*RootOptions
	Storage StorageOptions
}

// UndoResult reports a completed rollback.
type UndoResult struct {
	UndoneID   string      `json:"undoneId"`
	UndoneType string      `json:"undoneType"`
	Remaining  int         `json:"remaining"`
	State      state.State `json:"state"`
	Digest     string      `json:"digest"`
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UndoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Roll back the last event",
		Long: `Roll back the last event: drop it from the log, replay the remainder,
and truncate the persisted mirror to match.

Exit codes:
  0 - Event rolled back
  1 - Log is empty, nothing to undo
  2 - Command error

Examples:
  redix undo --db ./redix.db
  redix undo --db ./redix.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUndo(opts, cmd)
		},
	}

	addStorageFlags(cmd, &opts.Storage)

	return cmd
}

func runUndo(opts *UndoOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	rt, err := openRuntime(ctx, &opts.Storage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	defer rt.Close()

	var undoneID, undoneType string
	if events := rt.Log().Events(); len(events) > 0 {
		tail := events[len(events)-1]
		undoneID, undoneType = tail.ID, tail.Type
	}

	st, err := rt.Undo(ctx)
	if errors.Is(err, eventlog.ErrNothingToUndo) {
		return NewExitError(ExitFailure, "nothing to undo")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "undo failed", err)
	}

	digest, err := st.Digest()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest state", err)
	}
	result := UndoResult{
		UndoneID:   undoneID,
		UndoneType: undoneType,
		Remaining:  rt.Log().Len(),
		State:      st,
		Digest:     digest,
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Undid %s (%s)\n", result.UndoneID, result.UndoneType)
	fmt.Fprintf(w, "remaining: %d event(s)\n", result.Remaining)
	fmt.Fprintf(w, "digest: %s\n", result.Digest)
	return nil
}
