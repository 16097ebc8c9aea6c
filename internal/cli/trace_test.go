package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/patchwork/internal/store"
)

func TestTraceCommand_RequiresDB(t *testing.T) {
	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)
}

func TestTraceCommand_BadDatabasePath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing", "dir", "journal.db")

	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestTraceCommand_EmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)

	require.NoError(t, err)
	assert.Contains(t, out, "No runs found in database.")
}

func TestTraceCommand_UnknownRun(t *testing.T) {
	dbPath := runSceneInto(t, "run-1")

	_, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "run-404")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceCommand_LatestRunText(t *testing.T) {
	dbPath := runSceneInto(t, "run-1")

	out, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)

	require.NoError(t, err)
	assert.Contains(t, out, "Trace for Run: run-1")
	assert.Contains(t, out, "=== Timeline ===")
	assert.Contains(t, out, "LOAD")
	assert.Contains(t, out, "REBUILD")
	assert.Contains(t, out, "=== Live Subscriptions ===")
	assert.Contains(t, out, "wall.map -> brick")
	assert.Contains(t, out, "hero.geometry -> box")
	assert.Contains(t, out, "hero.material -> wall")
	assert.Contains(t, out, "=== Stats ===")
}

func TestTraceCommand_ComponentJSON(t *testing.T) {
	dbPath := runSceneInto(t, "run-1")

	out, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", "run-1", "--component", "hero")
	require.NoError(t, err)

	var result TraceResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "hero", result.Component)
	for _, e := range result.Timeline {
		assert.Equal(t, "hero", e.Component)
	}
	assert.Equal(t, 1, result.Stats.Events)
	assert.Equal(t, 1, result.Stats.Rebuilds)
	assert.Equal(t, 0, result.Stats.Patches)
	assert.Equal(t, 2, result.Stats.Subscribed)
	assert.Equal(t, 0, result.Stats.Released)
	assert.ElementsMatch(t, []LiveEdge{
		{Owner: "hero", Slot: "geometry", Target: "box"},
		{Owner: "hero", Slot: "material", Target: "wall"},
	}, result.Live)
}

func TestTraceStats(t *testing.T) {
	stats := traceStats([]store.TimelineEntry{
		{Seq: 1, Type: "event:load", Component: "a"},
		{Seq: 2, Type: "event:update", Component: "a"},
		{Seq: 3, Type: "rebuild", Component: "a", Detail: "[]"},
		{Seq: 4, Type: "patch", Component: "a", Detail: `["color"]`},
		{Seq: 5, Type: "subscribed", Component: "a", Detail: "map -> t"},
		{Seq: 6, Type: "released", Component: "a", Detail: "map -> t"},
		{Seq: 7, Type: "failure", Component: "a", Detail: "boom"},
	})

	assert.Equal(t, TraceStats{
		TotalEntries: 7,
		Events:       2,
		Rebuilds:     1,
		Patches:      1,
		Subscribed:   1,
		Released:     1,
		Failures:     1,
	}, stats)
}
