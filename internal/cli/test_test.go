package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../harness/testdata/scenarios"

func TestTestCommand_Scenarios(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenarioDir)

	require.NoError(t, err, out)
	for _, name := range []string{"late_texture_load", "material_patch", "material_type_switch", "mesh_patch", "texture_swap"} {
		assert.Contains(t, out, "✓ "+name)
	}
	assert.Contains(t, out, "Test Summary: 5 passed, 0 failed, 5 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_JSONGoldenStatus(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "json"}), "--filter", "m*", scenarioDir)
	require.NoError(t, err, out)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, result.Total)
	golden := map[string]string{}
	for _, sr := range result.Scenarios {
		golden[sr.Name] = sr.Golden
	}
	assert.Equal(t, map[string]string{
		"material_patch":       "match",
		"material_type_switch": "",
		"mesh_patch":           "match",
	}, golden)
}

func TestTestCommand_UpdateThenMismatch(t *testing.T) {
	goldenDir := filepath.Join(t.TempDir(), "golden")

	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), "--golden", goldenDir, "--update", scenarioDir)
	require.NoError(t, err)
	entries, err := os.ReadDir(goldenDir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	_, err = execute(NewTestCommand(&RootOptions{Format: "text"}), "--golden", goldenDir, scenarioDir)
	require.NoError(t, err, "freshly written goldens match")

	path := filepath.Join(goldenDir, "texture_swap.golden")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), "--golden", goldenDir, "--filter", "texture_swap", scenarioDir)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ texture_swap")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommand_NoMatches(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), "--filter", "zzz*", scenarioDir)

	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingPath(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "json"}), filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decodeResponse(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestTestCommand_BrokenScenario(t *testing.T) {
	file := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: broken\n"), 0o644))

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), file)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestFilterScenarios(t *testing.T) {
	files := []string{"a/material_patch.yaml", "a/mesh_patch.yaml", "b/texture_swap.yaml"}

	got, err := filterScenarios(files, "*patch")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/material_patch.yaml", "a/mesh_patch.yaml"}, got)

	got, err = filterScenarios(files, "")
	require.NoError(t, err)
	assert.Equal(t, files, got)

	_, err = filterScenarios(files, "[")
	assert.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("testdata", "golden", "x.golden"), goldenFilePath("", filepath.Join("testdata", "scenarios", "x.yaml"), "x"))
	assert.Equal(t, filepath.Join("out", "x.golden"), goldenFilePath("out", filepath.Join("testdata", "scenarios", "x.yaml"), "x"))
}
