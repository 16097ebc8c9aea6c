package catalog

import (
	"github.com/roach88/patchwork/internal/ir"
)

func floatAttr(attrs ir.Attributes, name string, def float64) float64 {
	if f, ok := ir.AsFloat(attrs.Get(name)); ok {
		return f
	}
	return def
}

func intAttr(attrs ir.Attributes, name string, def int) int {
	if n, ok := ir.AsInt(attrs.Get(name)); ok {
		return int(n)
	}
	if f, ok := ir.AsFloat(attrs.Get(name)); ok {
		return int(f)
	}
	return def
}

func stringAttr(attrs ir.Attributes, name, def string) string {
	if s, ok := ir.AsString(attrs.Get(name)); ok {
		return s
	}
	return def
}

func boolAttr(attrs ir.Attributes, name string, def bool) bool {
	if b, ok := ir.AsBool(attrs.Get(name)); ok {
		return b
	}
	return def
}

func vecAttr(attrs ir.Attributes, name string, def ir.Vec3) ir.Vec3 {
	if v, ok := ir.AsVec3(attrs.Get(name)); ok {
		return v
	}
	return def
}

// axisVec assembles a composite vector from base and optional per-axis
// members "<base>.x", "<base>.y", "<base>.z". Members win over the base.
func axisVec(attrs ir.Attributes, base string, def ir.Vec3) ir.Vec3 {
	v := vecAttr(attrs, base, def)
	v.X = floatAttr(attrs, base+".x", v.X)
	v.Y = floatAttr(attrs, base+".y", v.Y)
	v.Z = floatAttr(attrs, base+".z", v.Z)
	return v
}

func axisMembers(base string) []string {
	return []string{base + ".x", base + ".y", base + ".z"}
}
