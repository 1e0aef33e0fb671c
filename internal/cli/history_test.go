package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/harness"
	"github.com/roach88/labelcheck/internal/store"
	"github.com/roach88/labelcheck/internal/testutil"
)

// seedRun records one run with a pass and a skip and returns its ID.
func seedRun(t *testing.T, db string, mutate func(*store.Run)) string {
	t.Helper()
	agg := harness.NewAggregator()
	agg.Add(harness.NewScenarioResult("basic", 0, backend.Echo, harness.StatusPass, "", ""))
	agg.Add(harness.NewScenarioResult("basic", 0, backend.Vertex, harness.StatusSkipped, "", "vertex: not configured"))

	run, err := store.NewRun(testutil.Epoch, "hello", agg)
	require.NoError(t, err)
	if mutate != nil {
		mutate(run)
	}

	st, err := store.Open(t.Context(), db)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.WriteRun(t.Context(), run))
	return run.ID
}

func TestHistoryCommand_NoStore(t *testing.T) {
	_, err := execute(t, NewHistoryCommand(testOptions()))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no store configured")
}

func TestHistoryCommand_StoreFromEnv(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	id := seedRun(t, db, nil)

	opts := testOptions()
	opts.Lookup = testutil.MapEnv(map[string]string{"LABELCHECK_STORE": db})
	out, err := execute(t, NewHistoryCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, testutil.Epoch.Format(time.RFC3339))
	assert.Contains(t, out, "1 passed, 0 failed, 1 skipped")
}

func TestHistoryCommand_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, NewHistoryCommand(testOptions()), "--store", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestHistoryCommand_EmptyJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	opts := testOptions()
	opts.Format = "json"

	out, err := execute(t, NewHistoryCommand(opts), "--store", db)
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.JSONEq(t, "[]", string(resp.Data))
}

func TestShowCommand_Text(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	id := seedRun(t, db, nil)

	out, err := execute(t, NewShowCommand(testOptions()), id, "--store", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Run: "+id)
	assert.Contains(t, out, "Prompt: hello")
	assert.Contains(t, out, "echo: 1 passed, 0 failed, 0 skipped (100.0%)")
	assert.Contains(t, out, "- basic: vertex: not configured")
	assert.Contains(t, out, "Summary: 1 passed, 0 failed, 1 skipped, 2 total")
}

func TestShowCommand_NotFound(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	seedRun(t, db, nil)

	_, err := execute(t, NewShowCommand(testOptions()), "ffffffff", "--store", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestShowCommand_DigestMismatch(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	id := seedRun(t, db, func(r *store.Run) {
		r.Digest = "0000000000000000000000000000000000000000000000000000000000000000"
	})

	opts := testOptions()
	opts.Format = "json"
	out, err := execute(t, NewShowCommand(opts), id, "--store", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDigest, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "digest mismatch")
}

func TestShowCommand_RequiresID(t *testing.T) {
	_, err := execute(t, NewShowCommand(testOptions()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestShortDigest(t *testing.T) {
	assert.Equal(t, "abc", shortDigest("abc"))
	assert.Equal(t, "0123456789ab", shortDigest("0123456789abcdef"))
}
