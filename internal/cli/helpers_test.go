package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// tempDB returns a path for a throwaway SQLite database.
func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "redix.db")
}

// execute builds a fresh command, runs it with args, and returns the
// combined output.
func execute(t *testing.T, build func(*RootOptions) *cobra.Command, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := build(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// seedTabEvents dispatches three tab events into db, one command per
// event, so every dispatch recovers from storage first.
func seedTabEvents(t *testing.T, db string) {
	t.Helper()
	steps := [][]string{
		{"--db", db, "--type", "redix:tab:opened", "--reducer", "tab", "--payload", `{"tabId":"t1","url":"https://example.com/a","title":"Alpha"}`},
		{"--db", db, "--type", "redix:tab:opened", "--reducer", "tab", "--payload", `{"tabId":"t2","url":"https://example.com/b","title":"Beta"}`},
		{"--db", db, "--type", "redix:tab:activated", "--reducer", "tab", "--payload", `{"tabId":"t2"}`},
	}
	for _, args := range steps {
		_, err := execute(t, NewDispatchCommand, "text", args...)
		require.NoError(t, err)
	}
}

// stateDigest runs the state command against db and extracts the digest
// line from its text output.
func stateDigest(t *testing.T, db string) string {
	t.Helper()
	out, err := execute(t, NewStateCommand, "text", "--db", db)
	require.NoError(t, err)
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, "digest: "); ok {
			return rest
		}
	}
	t.Fatalf("no digest line in output:\n%s", out)
	return ""
}
