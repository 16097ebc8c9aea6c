package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCommand_Text(t *testing.T) {
	dir := writeSceneDir(t, testScene)

	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), dir)

	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 4 component(s)")
	assert.Contains(t, out, "wall: standard-material, 2 attribute(s)")
	assert.Contains(t, out, "map → brick")
	assert.Contains(t, out, "geometry → box")
	assert.Contains(t, out, "Fingerprint: ")
}

func TestCompileCommand_JSON(t *testing.T) {
	dir := writeSceneDir(t, testScene)

	out, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)

	var result struct {
		SchemaVersion string `json:"schema_version"`
		Fingerprint   string `json:"fingerprint"`
		Components    []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"components"`
	}
	resp := decodeResponse(t, out, &result)

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1", result.SchemaVersion)
	assert.NotEmpty(t, result.Fingerprint)
	require.Len(t, result.Components, 4)
	names := []string{}
	for _, c := range result.Components {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"brick", "wall", "box", "hero"}, names, "declaration order is kept")
}

func TestCompileCommand_OutputIsCanonical(t *testing.T) {
	dir := writeSceneDir(t, testScene)
	first := filepath.Join(t.TempDir(), "a.json")
	second := filepath.Join(t.TempDir(), "b.json")

	_, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), "-o", first, dir)
	require.NoError(t, err)

	// Same scene, different field order and formatting.
	reordered := strings.Replace(testScene, "type:      \"standard-material\"\n\troughness: 0.5", "roughness: 0.5\n\ttype: \"standard-material\"", 1)
	require.NotEqual(t, testScene, reordered)
	_, err = execute(NewCompileCommand(&RootOptions{Format: "text"}), "--output", second, writeSceneDir(t, reordered))
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.True(t, strings.HasPrefix(string(a), `{"components":[{"attributes":{"src":"brick.png"},"name":"brick","type":"texture"}`), string(a))
	assert.True(t, strings.HasSuffix(string(a), "\"schema_version\":\"1\"}\n"))
}

func TestCompileCommand_MissingDir(t *testing.T) {
	out, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), filepath.Join(t.TempDir(), "nope"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestCompileCommand_WriteFailure(t *testing.T) {
	dir := writeSceneDir(t, testScene)
	target := filepath.Join(t.TempDir(), "missing", "scene.json")

	_, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), "-o", target, dir)

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
