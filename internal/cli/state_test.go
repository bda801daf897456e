package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnibrowser/redix/internal/testutil"
)

func TestStateCurrent(t *testing.T) {
	testutil.SilenceLogs(t)
	db := tempDB(t)
	seedTabEvents(t, db)

	out, err := execute(t, NewStateCommand, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `"t1"`)
	assert.Contains(t, out, `"t2"`)
	assert.Contains(t, out, "digest: ")
	assert.Contains(t, out, "events: 3")
}

func TestStateAtIndex(t *testing.T) {
	testutil.SilenceLogs(t)
	db := tempDB(t)
	seedTabEvents(t, db)

	// Index 0 is the state after only the first open.
	out, err := execute(t, NewStateCommand, "text", "--db", db, "--index", "0")
	require.NoError(t, err)
	assert.Contains(t, out, `"t1"`)
	assert.NotContains(t, out, `"t2"`)
}

func TestStateIndexOutOfRange(t *testing.T) {
	testutil.SilenceLogs(t)
	db := tempDB(t)
	seedTabEvents(t, db)

	_, err := execute(t, NewStateCommand, "text", "--db", db, "--index", "9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no state at index 9")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestStateFlagsMutuallyExclusive(t *testing.T) {
	_, err := execute(t, NewStateCommand, "text",
		"--db", tempDB(t), "--index", "0", "--at", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStateJSON(t *testing.T) {
	testutil.SilenceLogs(t)
	db := tempDB(t)
	seedTabEvents(t, db)

	out, err := execute(t, NewStateCommand, "json", "--db", db)
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)

	data, ok := response.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), data["events"])
	assert.NotEmpty(t, data["digest"])

	st, ok := data["state"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, st, "tabs")
}
