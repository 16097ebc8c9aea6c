package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testScene = `package scene

component: brick: {
	type: "texture"
	src:  "brick.png"
}
component: wall: {
	type:      "standard-material"
	roughness: 0.5
	map: {ref: "brick"}
}
component: box: {
	type:  "box-geometry"
	width: 2
}
component: hero: {
	type:     "mesh"
	geometry: {ref: "box"}
	material: {ref: "wall"}
}
`

// writeSceneDir writes src as scene.cue in a fresh directory.
func writeSceneDir(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.cue"), []byte(src), 0o644))
	return dir
}

// execute runs cmd with args and returns stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
	RunID  string          `json:"run_id"`
}

// decodeResponse parses a JSON envelope and decodes its data into data.
func decodeResponse(t *testing.T, out string, data any) jsonResponse {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

// runSceneInto runs the test scene into a fresh journal and returns its path.
func runSceneInto(t *testing.T, runID string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	_, err := execute(NewRunCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run-id", runID, writeSceneDir(t, testScene))
	require.NoError(t, err)
	return dbPath
}
