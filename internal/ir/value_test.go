package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Float(0.5)
	var _ Value = Bool(true)
	var _ Value = Vec3{X: 1, Y: 2, Z: 3}
	var _ Value = Ref("brick")
}

func TestAttributesSortedKeys(t *testing.T) {
	attrs := Attributes{
		"roughness": Float(0.2),
		"color":     String("#fff"),
		"Map":       Ref("brick"),
	}

	assert.Equal(t, []string{"Map", "color", "roughness"}, attrs.SortedKeys())
}

func TestAttributesGetMissingIsNull(t *testing.T) {
	attrs := Attributes{"a": Int(1)}
	assert.Equal(t, Int(1), attrs.Get("a"))
	assert.Equal(t, Null{}, attrs.Get("b"))
}

func TestAttributesCloneIsIndependent(t *testing.T) {
	attrs := Attributes{"a": Int(1)}
	clone := attrs.Clone()
	clone["a"] = Int(2)
	assert.Equal(t, Int(1), attrs["a"])
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Float(0.5), Float(0.5)))
	assert.True(t, Equal(Vec3{1, 2, 3}, Vec3{1, 2, 3}))
	assert.True(t, Equal(nil, Null{}))
	assert.False(t, Equal(Int(1), Float(1)))
	assert.False(t, Equal(Ref("a"), String("a")))
}

func TestFromNative(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"bool", true, Bool(true)},
		{"string", "bricks.png", String("bricks.png")},
		{"int", 3, Int(3)},
		{"float", 0.8, Float(0.8)},
		{"json int", json.Number("12"), Int(12)},
		{"json float", json.Number("0.25"), Float(0.25)},
		{"vector", []any{1, 2.5, -1}, Vec3{X: 1, Y: 2.5, Z: -1}},
		{"ref", map[string]any{"ref": "brick"}, Ref("brick")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromNative(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromNativeRejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"short list", []any{1, 2}},
		{"non numeric list", []any{1, "a", 3}},
		{"plain object", map[string]any{"x": 1}},
		{"empty ref", map[string]any{"ref": ""}},
		{"struct", struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromNative(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestToNativeInvertsFromNative(t *testing.T) {
	values := []Value{Null{}, String("x"), Int(7), Float(1.5), Bool(false), Vec3{1, 2, 3}, Ref("tex")}
	for _, v := range values {
		back, err := FromNative(ToNative(v))
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}

func TestAttributesJSONRoundTripKeepsIntegers(t *testing.T) {
	attrs := Attributes{
		"segments":  Int(9007199254740993),
		"roughness": Float(0.8),
		"map":       Ref("brick"),
		"position":  Vec3{0, 1, 0},
	}

	data, err := json.Marshal(attrs)
	require.NoError(t, err)

	var decoded Attributes
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, attrs, decoded)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "null", Format(nil))
	assert.Equal(t, `"a"`, Format(String("a")))
	assert.Equal(t, "0.8", Format(Float(0.8)))
	assert.Equal(t, "[0 1 2.5]", Format(Vec3{0, 1, 2.5}))
	assert.Equal(t, "@brick", Format(Ref("brick")))
}

func TestAsAccessors(t *testing.T) {
	f, ok := AsFloat(Int(2))
	assert.True(t, ok)
	assert.Equal(t, 2.0, f)

	n, ok := AsInt(Float(4))
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)

	_, ok = AsInt(Float(4.5))
	assert.False(t, ok)

	_, ok = AsString(Int(1))
	assert.False(t, ok)
}
