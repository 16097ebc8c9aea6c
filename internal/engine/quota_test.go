package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/patchwork/internal/ir"
)

func TestPropagationBudget(t *testing.T) {
	b := newPropagationBudget(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Check(0))
	}
	err := b.Check(7)

	require.Error(t, err)
	assert.True(t, IsPropagationLimit(err))
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "7", re.Details["pending"])
	assert.Equal(t, 4, b.Current())
}

func TestPropagationBudget_Disabled(t *testing.T) {
	b := newPropagationBudget(0)

	for i := 0; i < 100; i++ {
		require.NoError(t, b.Check(0))
	}
}

func TestEngine_DrainStopsAtPropagationLimit(t *testing.T) {
	e := newTestEngine(t, WithPropagationLimit(2))
	for _, name := range []string{"a", "b", "c", "d"} {
		e.Add(name, ir.Attributes{"type": ir.String("size")})
	}

	err := e.Drain(context.Background())

	assert.True(t, IsPropagationLimit(err))
	assert.Equal(t, []string{"a", "b"}, e.Names())
	assert.Equal(t, 2, e.Pending(), "unprocessed events stay queued")

	require.NoError(t, e.Drain(context.Background()))
	assert.Equal(t, []string{"a", "b", "c", "d"}, e.Names())
}

func TestRuntimeError_Predicates(t *testing.T) {
	unknown := NewUnknownComponentError("ghost")
	dup := NewDuplicateComponentError("twin")
	wrapped := errors.Join(errors.New("other"), unknown)

	assert.True(t, IsUnknownComponent(wrapped))
	assert.False(t, IsDuplicateComponent(wrapped))
	assert.True(t, IsDuplicateComponent(dup))
	assert.Equal(t, "UNKNOWN_COMPONENT: no such component (component=ghost)", unknown.Error())
	assert.False(t, IsPropagationLimit(nil))
}
