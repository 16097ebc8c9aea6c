package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]int{"components": 3}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"components": float64(3)}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("E005", "scene directory not found", map[string]string{"dir": "x"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E005", resp.Error.Code)
	assert.Equal(t, "scene directory not found", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		wantSubs []string
		notSubs  []string
	}{
		{"quiet", false, []string{"Error [E001]", "boom"}, []string{"Details:"}},
		{"verbose", true, []string{"Error [E001]", "Details: map[file:scene.cue]"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E001", "boom", map[string]string{"file": "scene.cue"}))

			for _, s := range tt.wantSubs {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.notSubs {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestOutputFormatter_PrintfAndJSONModes(t *testing.T) {
	text := &bytes.Buffer{}
	(&OutputFormatter{Format: "text", Writer: text}).Printf("%d components\n", 2)
	assert.Equal(t, "2 components\n", text.String())

	js := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: js}
	f.Printf("ignored")
	assert.Empty(t, js.String())

	require.NoError(t, (&OutputFormatter{Format: "text", Writer: text}).JSON(CLIResponse{Status: "ok"}))
	assert.Equal(t, "2 components\n", text.String(), "JSON is a no-op in text mode")
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("found %d files", 2)
	(&OutputFormatter{Writer: out}).VerboseLog("dropped")

	assert.Empty(t, out.String())
	assert.Equal(t, "found 2 files\n", errOut.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "replay differs", errors.New("inner")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "outer: replay differs: inner", wrapped.Error())
}
