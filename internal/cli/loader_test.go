package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScene(t *testing.T) {
	dir := writeSceneDir(t, testScene)

	result, err := LoadScene(dir)

	require.NoError(t, err)
	assert.Equal(t, 1, result.FileCount)
	assert.Equal(t, []string{"brick", "wall", "box", "hero"}, result.Scene.Names())
	assert.NotEmpty(t, result.Hash)
	assert.True(t, result.Value.Exists())

	again, err := LoadScene(dir)
	require.NoError(t, err)
	assert.Equal(t, result.Hash, again.Hash)
}

func TestLoadScene_MultipleFiles(t *testing.T) {
	dir := writeSceneDir(t, testScene)
	extra := `package scene

component: floor: {
	type:  "box-geometry"
	width: 10
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "floor.cue"), []byte(extra), 0o644))

	result, err := LoadScene(dir)

	require.NoError(t, err)
	assert.Equal(t, 2, result.FileCount)
	assert.Len(t, result.Scene.Components, 5)
	_, ok := result.Scene.Lookup("floor")
	assert.True(t, ok)
}

func TestLoadScene_Errors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scene.cue")
	require.NoError(t, os.WriteFile(file, []byte(testScene), 0o644))

	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing", filepath.Join(t.TempDir(), "nope"), ErrCodeNotFound},
		{"not a directory", file, ErrCodeNotFound},
		{"empty", t.TempDir(), ErrCodeNoFiles},
		{"syntax", writeSceneDir(t, "package scene\n\ncomponent: {"), ErrCodeLoadFailed},
		{"conflict", writeSceneDir(t, "package scene\n\ncomponent: box: {type: \"box-geometry\", width: 2}\ncomponent: box: width: 3\n"), ErrCodeBuildFailed},
		{"missing type", writeSceneDir(t, "package scene\n\ncomponent: box: {width: 2}\n"), ErrCodeComponentType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScene(tt.dir)

			require.Error(t, err)
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.code, loadErr.Code, loadErr.Message)
		})
	}
}

func TestLoadError_Line(t *testing.T) {
	_, err := LoadScene(writeSceneDir(t, "package scene\n\ncomponent: box: {width: 2}\n"))

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, 3, loadErr.Line())
	assert.Contains(t, loadErr.Error(), "scene.cue:3:")

	plain := &LoadError{Code: ErrCodeGeneric, Message: "boom"}
	assert.Equal(t, 0, plain.Line())
	assert.Equal(t, "E001: boom", plain.Error())
}

func TestFindCUEFiles(t *testing.T) {
	dir := writeSceneDir(t, testScene)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "other.cue"), []byte("package other"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files, err := FindCUEFiles(dir)

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "scene.cue")}, files)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"cue", ErrCodeBuildFailed},
		{"component.box.type", ErrCodeComponentType},
		{"component.box", ErrCodeComponentShape},
		{"component.box.width", ErrCodeAttributeValue},
		{"component.hero.geometry.ref", ErrCodeAttributeValue},
		{"other", ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
