package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/patchwork/internal/compiler"
)

func TestValidateCommand_Valid(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), writeSceneDir(t, testScene))

	require.NoError(t, err)
	assert.Contains(t, out, "✓ Scene valid (4 component(s))")
	assert.NotContains(t, out, "⚠")
}

func TestValidateCommand_UnknownType(t *testing.T) {
	dir := writeSceneDir(t, `package scene

component: lamp: {type: "spot-light"}
`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnknownType, resp.Error.Code)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "component.lamp.type", result.Errors[0].Field)
}

func TestValidateCommand_Strict(t *testing.T) {
	src := `package scene

component: wall: {
	type:  "standard-material"
	sheen: 0.3
}
`
	t.Run("lenient", func(t *testing.T) {
		_, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), writeSceneDir(t, src))
		assert.NoError(t, err)
	})

	t.Run("strict", func(t *testing.T) {
		out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "--strict", writeSceneDir(t, src))

		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "✗ Validation failed")
		assert.Contains(t, out, compiler.ErrUnknownAttribute)
		assert.Contains(t, out, `"sheen"`)
	})
}

func TestValidateCommand_CycleWarning(t *testing.T) {
	dir := writeSceneDir(t, `package scene

component: a: {
	type: "standard-material"
	map: {ref: "b"}
}
component: b: {
	type: "basic-material"
	map: {ref: "a"}
}
`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)

	require.NoError(t, err, "cycles are warnings")
	assert.Contains(t, out, "⚠ reference cycle")
	assert.Contains(t, out, "✓ Scene valid (2 component(s))")
}

func TestValidateCommand_CompileErrorIsFailure(t *testing.T) {
	dir := writeSceneDir(t, `package scene

component: box: {width: 2}
`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "scene.cue:")
	assert.Contains(t, out, ErrCodeComponentType)
	assert.Contains(t, out, "type is required")
}

func TestValidateCommand_MissingDir(t *testing.T) {
	_, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
