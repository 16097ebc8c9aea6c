package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Domain prefixes for fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainAttributes = "patchwork/attributes/v1"
	DomainScene      = "patchwork/scene/v1"
)

// fingerprintMode encodes with RFC 8949 core deterministic rules: sorted map
// keys, shortest float encoding, no indefinite lengths.
var fingerprintMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR fingerprint mode: %v", err))
	}
	return mode
}()

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes a content hash of an attribute set.
// Equal attribute sets always produce equal fingerprints, independent of map
// iteration order. The journal records it per resolution so two builds from
// the same inputs can be recognized.
func Fingerprint(attrs Attributes) (string, error) {
	data, err := fingerprintMode.Marshal(cborAttributes(attrs))
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainAttributes, data), nil
}

// MustFingerprint is Fingerprint that panics on error. Attribute sets built
// from ir values cannot fail to encode; tests use this for brevity.
func MustFingerprint(attrs Attributes) string {
	fp, err := Fingerprint(attrs)
	if err != nil {
		panic(err)
	}
	return fp
}

// SceneFingerprint hashes every component definition of a scene, keyed by
// component name.
func SceneFingerprint(scene *SceneDef) (string, error) {
	m := make(map[string]any, len(scene.Components))
	for _, def := range scene.Components {
		m[def.Name] = map[string]any{
			"type":       def.Type,
			"attributes": cborAttributes(def.Attributes),
		}
	}
	data, err := fingerprintMode.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("scene fingerprint: %w", err)
	}
	return hashWithDomain(DomainScene, data), nil
}

// cborAttributes maps values to CBOR-friendly shapes. Each value is tagged
// by its kind so Int(1) and Float(1) hash differently.
func cborAttributes(attrs Attributes) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = cborValue(v)
	}
	return out
}

func cborValue(v Value) []any {
	switch val := v.(type) {
	case String:
		return []any{"s", string(val)}
	case Int:
		return []any{"i", int64(val)}
	case Float:
		return []any{"f", float64(val)}
	case Bool:
		return []any{"b", bool(val)}
	case Vec3:
		return []any{"v", val.X, val.Y, val.Z}
	case Ref:
		return []any{"r", string(val)}
	default:
		return []any{"n"}
	}
}
