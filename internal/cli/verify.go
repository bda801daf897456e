package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/eventlog"
	"github.com/omnibrowser/redix/internal/reducer"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Storage StorageOptions
}

// VerifyResult holds the determinism check outcome.
type VerifyResult struct {
	Events        int    `json:"events"`
	FirstDigest   string `json:"firstDigest"`
	SecondDigest  string `json:"secondDigest"`
	Deterministic bool   `json:"deterministic"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay the persisted log twice and compare digests",
		Long: `Verify replay determinism: load the persisted events, fold them
through the reducers twice in two fresh logs, and compare the canonical
state digests. Divergence means a reducer is impure or storage returned
events out of order.

Exit codes:
  0 - Replays converged
  1 - Digests diverged
  2 - Command error

Examples:
  redix verify --db ./redix.db
  redix verify --db ./redix.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	addStorageFlags(cmd, &opts.Storage)

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	adapter, err := openAdapter(&opts.Storage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	defer adapter.Close()

	if err := adapter.Init(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize storage", err)
	}
	events, err := adapter.Load(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load events", err)
	}

	first, err := replayDigest(events)
	if err != nil {
		return WrapExitError(ExitCommandError, "first replay failed", err)
	}
	second, err := replayDigest(events)
	if err != nil {
		return WrapExitError(ExitCommandError, "second replay failed", err)
	}

	result := VerifyResult{
		Events:        len(events),
		FirstDigest:   first,
		SecondDigest:  second,
		Deterministic: first == second,
	}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if !result.Deterministic {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    "E_DETERMINISM",
				Message: "replay digests diverged",
			}
		}
		if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
			return err
		}
		if !result.Deterministic {
			return NewExitError(ExitFailure, "replay digests diverged")
		}
		return nil
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Verify: %d event(s) replayed twice\n", result.Events)
	fmt.Fprintf(w, "  first:  %s\n", result.FirstDigest)
	fmt.Fprintf(w, "  second: %s\n", result.SecondDigest)
	if !result.Deterministic {
		fmt.Fprintln(w, "✗ replay digests diverged")
		return NewExitError(ExitFailure, "replay digests diverged")
	}
	fmt.Fprintln(w, "✓ deterministic replay")
	return nil
}

// replayDigest folds events through a fresh log with the default reducers
// and returns the canonical digest of the resulting state.
func replayDigest(events []event.Event) (string, error) {
	l := eventlog.New()
	reducer.RegisterDefaults(l)
	if err := l.Restore(events); err != nil {
		return "", err
	}
	return l.Digest()
}
