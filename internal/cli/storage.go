package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omnibrowser/redix/internal/persist"
	"github.com/omnibrowser/redix/internal/runtime"
	"github.com/omnibrowser/redix/internal/schema"
)

// StorageOptions selects the persistence backend for commands that operate
// on a durable log.
type StorageOptions struct {
	Driver   string
	Database string
}

// addStorageFlags registers the shared storage flags on a command.
func addStorageFlags(cmd *cobra.Command, opts *StorageOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite file or Badger directory")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "storage driver (memory|sqlite|badger)")
}

// openAdapter resolves the adapter from flags. A bare --db selects SQLite;
// with no flags at all, the REDIX_* environment variables decide.
func openAdapter(opts *StorageOptions) (persist.Adapter, error) {
	if opts.Driver == "" && opts.Database == "" {
		return persist.OpenFromEnv()
	}
	driver := opts.Driver
	if driver == "" {
		driver = persist.DriverSQLite
	}
	return persist.Open(driver, opts.Database)
}

// openRuntime builds a runtime over the selected adapter, with the built-in
// payload schemas, and replays the persisted log into it.
func openRuntime(ctx context.Context, opts *StorageOptions) (*runtime.Runtime, error) {
	schemas, err := schema.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("builtin schemas: %w", err)
	}
	adapter, err := openAdapter(opts)
	if err != nil {
		return nil, err
	}

	rt := runtime.New(
		runtime.WithAdapter(adapter),
		runtime.WithValidator(schemas),
	)
	if err := rt.Init(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}
