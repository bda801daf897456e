package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Storage StorageOptions
	Output  string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the log as a wire-format envelope",
		Long: `Export the recovered log as a UTF-8 JSON envelope: every event, the
derived state, the snapshot positions, and the state's canonical hash.
The envelope round-trips through the import command.

Exit codes:
  0 - Envelope written
  2 - Command error

Examples:
  redix export --db ./redix.db
  redix export --db ./redix.db -o backup.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	addStorageFlags(cmd, &opts.Storage)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the envelope to this file instead of stdout")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	rt, err := openRuntime(ctx, &opts.Storage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	defer rt.Close()

	data, err := rt.Export()
	if err != nil {
		return WrapExitError(ExitCommandError, "export failed", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(data), 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write envelope", err)
		}
		if opts.Format == "json" {
			return writeJSON(cmd.OutOrStdout(), CLIResponse{
				Status: "ok",
				Data:   map[string]any{"path": opts.Output, "events": rt.Log().Len()},
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d event(s) to %s\n", rt.Log().Len(), opts.Output)
		return nil
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: json.RawMessage(data)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), data)
	return nil
}
