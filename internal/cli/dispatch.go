package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/omnibrowser/redix/internal/event"
	"github.com/omnibrowser/redix/internal/runtime"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Storage StorageOptions
	Type    string
	Reducer string
	Source  string
	Payload string
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Dispatch one event into the persisted log",
		Long: `Dispatch one event: recover the runtime from storage, validate the
payload against the built-in schemas, fold the event through its reducer,
and mirror it back to storage.

Exit codes:
  0 - Event dispatched
  1 - Event rejected (schema validation, closed runtime)
  2 - Command error (bad flags, storage not reachable)

Examples:
  redix dispatch --db ./redix.db --type redix:tab:opened --reducer tab \
    --payload '{"tabId":"t1","url":"https://example.com"}'
  redix dispatch --db ./redix.db --type redix:policy:mode --reducer policy \
    --payload '{"mode":"eco"}' --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(opts, cmd)
		},
	}

	addStorageFlags(cmd, &opts.Storage)
	cmd.Flags().StringVar(&opts.Type, "type", "", "event type (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&opts.Reducer, "reducer", "", "reducer name the event folds through")
	cmd.Flags().StringVar(&opts.Source, "source", "cli", "event source tag")
	cmd.Flags().StringVar(&opts.Payload, "payload", "{}", "event payload as JSON")

	return cmd
}

func runDispatch(opts *DispatchOptions, cmd *cobra.Command) error {
	var payload map[string]any
	if err := json.Unmarshal([]byte(opts.Payload), &payload); err != nil {
		return WrapExitError(ExitCommandError, "invalid --payload JSON", err)
	}

	ctx := context.Background()
	rt, err := openRuntime(ctx, &opts.Storage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	defer rt.Close()

	re, err := rt.Dispatch(ctx, event.Event{
		Type:    opts.Type,
		Reducer: opts.Reducer,
		Source:  opts.Source,
		Payload: payload,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "event rejected", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: re})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Dispatched %s (seq %d)\n", re.ID, re.Seq)
	fmt.Fprintf(w, "  type: %s\n", re.Type)
	if len(re.Diff) == 0 {
		fmt.Fprintln(w, "  no state change")
		return nil
	}
	writeDiff(w, re.Diff)
	return nil
}

// writeDiff renders diff entries one per line: + added, - removed,
// ~ changed.
func writeDiff(w io.Writer, entries []runtime.DiffEntry) {
	for _, e := range entries {
		switch {
		case !e.BeforePresent:
			fmt.Fprintf(w, "  + %s = %s\n", e.Path, compactJSON(e.After))
		case !e.AfterPresent:
			fmt.Fprintf(w, "  - %s (was %s)\n", e.Path, compactJSON(e.Before))
		default:
			fmt.Fprintf(w, "  ~ %s: %s -> %s\n", e.Path, compactJSON(e.Before), compactJSON(e.After))
		}
	}
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
