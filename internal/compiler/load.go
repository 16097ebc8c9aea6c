package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/patchwork/internal/ir"
)

// CompileFiles compiles and unifies the given CUE files, in order, into one
// scene. Each file is compiled on its own so positions in errors name the
// file they came from.
func CompileFiles(paths ...string) (*ir.SceneDef, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scene files given")
	}
	ctx := cuecontext.New()
	var root cue.Value
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read scene file: %w", err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if i == 0 {
			root = v
			continue
		}
		root = root.Unify(v)
	}
	return CompileScene(root)
}

// CompileSource compiles a single in-memory CUE document. name is used as
// the file name in error positions.
func CompileSource(name, src string) (*ir.SceneDef, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(name))
	return CompileScene(v)
}
