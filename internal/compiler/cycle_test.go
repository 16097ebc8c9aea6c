package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/patchwork/internal/ir"
)

func refScene(edges ...[2]string) *ir.SceneDef {
	scene := &ir.SceneDef{}
	index := map[string]int{}
	add := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		index[name] = len(scene.Components)
		scene.Components = append(scene.Components, ir.ComponentDef{Name: name, Type: "mesh", Attributes: ir.Attributes{}})
		return index[name]
	}
	for _, e := range edges {
		from := add(e[0])
		if e[1] == "" {
			continue
		}
		add(e[1])
		slot := "material"
		if _, taken := scene.Components[from].Attributes[slot]; taken {
			slot = "geometry"
		}
		scene.Components[from].Attributes[slot] = ir.Ref(e[1])
	}
	return scene
}

func TestAnalyzeCycles_Acyclic(t *testing.T) {
	scene := refScene([2]string{"hero", "wall"}, [2]string{"hero", "box"}, [2]string{"wall", "brick"})

	assert.Empty(t, AnalyzeCycles(scene))
	assert.Empty(t, AnalyzeCycles(nil))
	assert.Empty(t, AnalyzeCycles(&ir.SceneDef{}))
}

func TestAnalyzeCycles_SelfReference(t *testing.T) {
	scene := refScene([2]string{"a", "a"})

	warnings := AnalyzeCycles(scene)

	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "a"}, warnings[0].Path)
	assert.Equal(t, "component references itself: a → a", warnings[0].Message)
	assert.Equal(t, "warning", warnings[0].Level)
}

func TestAnalyzeCycles_TwoCycle(t *testing.T) {
	scene := refScene([2]string{"a", "b"}, [2]string{"b", "a"})

	warnings := AnalyzeCycles(scene)

	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Equal(t, "reference cycle: a → b → a", warnings[0].Message)
}

func TestAnalyzeCycles_ThreeCycleWithTail(t *testing.T) {
	scene := refScene(
		[2]string{"root", "a"},
		[2]string{"a", "b"},
		[2]string{"b", "c"},
		[2]string{"c", "a"},
	)

	warnings := AnalyzeCycles(scene)

	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, warnings[0].Path)
}

func TestAnalyzeCycles_SeparateCycles(t *testing.T) {
	scene := refScene(
		[2]string{"a", "b"},
		[2]string{"b", "a"},
		[2]string{"x", "x"},
	)

	warnings := AnalyzeCycles(scene)

	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Equal(t, []string{"x", "x"}, warnings[1].Path)
}

func TestAnalyzeCycles_IgnoresDanglingReferences(t *testing.T) {
	scene := refScene([2]string{"a", ""})
	scene.Components[0].Attributes["material"] = ir.Ref("ghost")

	assert.Empty(t, AnalyzeCycles(scene))
}
