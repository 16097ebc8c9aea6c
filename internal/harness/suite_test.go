package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))
	single := filepath.Join(dir, "notes.txt")

	paths, err := DiscoverScenarios([]string{dir, single}, "")

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		single,
	}, paths)
}

func TestDiscoverScenarios_RelativeToBase(t *testing.T) {
	paths, err := DiscoverScenarios([]string{"scenarios"}, "testdata")

	require.NoError(t, err)
	assert.Len(t, paths, 5)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "late_texture_load.yaml"), paths[0])
}

func TestDiscoverScenarios_Missing(t *testing.T) {
	_, err := DiscoverScenarios([]string{"missing"}, t.TempDir())

	var nf *ScenarioNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Path)
	assert.Contains(t, nf.ResolvedPath, "missing")
}

func TestRunSuite(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("name: [\n"), 0o644))
	failing := filepath.Join(dir, "failing.yaml")
	require.NoError(t, os.WriteFile(failing, []byte(`name: failing
description: "wrong count"
components: [{name: box, type: box-geometry}]
steps: [{get: {component: box}}]
assertions: [{type: rebuild_count, component: box, count: 7}]
`), 0o644))
	passing := filepath.Join("testdata", "scenarios", "material_patch.yaml")

	result, err := RunSuite(context.Background(), []string{passing, broken, failing})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, broken, result.Failures[0].Path)
	assert.Contains(t, result.Failures[0].Errors[0], "failed to load scenario")
	assert.Equal(t, "failing", result.Failures[1].Scenario)
	assert.Contains(t, result.Failures[1].Errors[0], "rebuild_count")
}

func TestRunSuite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := RunSuite(ctx, []string{"a.yaml"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Total)
}
