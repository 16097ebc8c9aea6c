package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface representing attribute values.
// Only Null, String, Int, Float, Bool, Vec3 and Ref implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents an explicitly unset attribute.
type Null struct{}

func (Null) irValue() {}

// String represents a string attribute value.
type String string

func (String) irValue() {}

// Int represents an integer attribute value.
type Int int64

func (Int) irValue() {}

// Float represents a floating point attribute value.
// NaN and infinities are rejected at every conversion boundary.
type Float float64

func (Float) irValue() {}

// Bool represents a boolean attribute value.
type Bool bool

func (Bool) irValue() {}

// Vec3 represents a three component vector (positions, scales, colors).
type Vec3 struct {
	X, Y, Z float64
}

func (Vec3) irValue() {}

// Ref names another component whose built object this attribute consumes.
// References are the edges the dependency manager subscribes along.
type Ref string

func (Ref) irValue() {}

// Attributes maps attribute names to values.
// Use SortedKeys() for deterministic iteration.
type Attributes map[string]Value

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (a Attributes) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Clone returns a shallow copy. Values are immutable so a shallow copy is
// a full copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Get returns the value for name, or Null when it is not set.
func (a Attributes) Get(name string) Value {
	if v, ok := a[name]; ok && v != nil {
		return v
	}
	return Null{}
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
// Go's default string comparison uses UTF-8 which orders supplementary
// plane characters differently.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	for i := 0; i < min(len(a16), len(b16)); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Equal reports whether two values are identical.
// Int and Float never compare equal to each other; the declared shape is
// part of the value.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	return a == b
}

// AsFloat returns the numeric value of an Int or Float.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Float:
		return float64(n), true
	case Int:
		return float64(n), true
	}
	return 0, false
}

// AsInt returns the value of an Int, or a Float with no fractional part.
func AsInt(v Value) (int64, bool) {
	switch n := v.(type) {
	case Int:
		return int64(n), true
	case Float:
		if f := float64(n); f == math.Trunc(f) {
			return int64(f), true
		}
	}
	return 0, false
}

// AsString returns the value of a String.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// AsBool returns the value of a Bool.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(Bool)
	return bool(b), ok
}

// AsVec3 returns the value of a Vec3.
func AsVec3(v Value) (Vec3, bool) {
	vec, ok := v.(Vec3)
	return vec, ok
}

// Format renders a value for logs and terminal output.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return strconv.Quote(string(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return formatFloat(float64(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	case Vec3:
		return fmt.Sprintf("[%s %s %s]", formatFloat(val.X), formatFloat(val.Y), formatFloat(val.Z))
	case Ref:
		return "@" + string(val)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatFloat uses the shortest representation that round-trips.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// FromNative converts a decoded YAML/JSON value into a Value.
//
// Conversion rules:
//   - nil → Null
//   - bool, string → Bool, String
//   - integers → Int; floats with no fractional part stay Float
//   - json.Number → Int when it parses as int64, otherwise Float
//   - a list of exactly three numbers → Vec3
//   - a map with the single key "ref" holding a string → Ref
//
// Anything else is rejected with a descriptive error.
func FromNative(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return Int(val), nil
	case float32:
		return newFloat(float64(val))
	case float64:
		return newFloat(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return Int(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return newFloat(f)
	case []any:
		return vecFromList(val)
	case map[string]any:
		if len(val) == 1 {
			if name, ok := val["ref"].(string); ok && name != "" {
				return Ref(name), nil
			}
		}
		return nil, fmt.Errorf("unsupported object value: only {ref: <name>} is allowed")
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func newFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float: %v", f)
	}
	return Float(f), nil
}

func vecFromList(list []any) (Value, error) {
	if len(list) != 3 {
		return nil, fmt.Errorf("list values must have exactly 3 numeric elements, got %d", len(list))
	}
	var out [3]float64
	for i, elem := range list {
		v, err := FromNative(elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		f, ok := AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("[%d]: expected number, got %T", i, elem)
		}
		out[i] = f
	}
	return Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// AttributesFromNative converts a decoded map into Attributes.
func AttributesFromNative(m map[string]any) (Attributes, error) {
	attrs := make(Attributes, len(m))
	for k, raw := range m {
		v, err := FromNative(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		attrs[k] = v
	}
	return attrs, nil
}

// ToNative converts a Value back into plain Go data, the inverse of FromNative.
func ToNative(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Vec3:
		return []any{val.X, val.Y, val.Z}
	case Ref:
		return map[string]any{"ref": string(val)}
	default:
		return nil
	}
}

// Native converts every attribute with ToNative.
func (a Attributes) Native() map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = ToNative(v)
	}
	return out
}

// MarshalJSON encodes Attributes as canonical JSON.
func (a Attributes) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(a)
}

// UnmarshalJSON decodes Attributes, keeping integers exact via json.Number.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	attrs, err := AttributesFromNative(raw)
	if err != nil {
		return err
	}
	*a = attrs
	return nil
}
