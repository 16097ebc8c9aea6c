// Package ir provides the value model shared by every patchwork package.
//
// A component is described by a flat set of attributes. Each attribute holds
// an ir.Value, a sealed interface over the handful of shapes a declarative
// definition can carry: strings, integers, floats, booleans, 3-vectors and
// references to other components.
//
// This package contains type definitions and encodings only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Attribute names are stored exactly as declared; canonicalization
//     (case folding, synonym folding) belongs to the reconciler
//   - Canonical JSON is the only text encoding used for journaling and
//     golden traces
//   - Fingerprints use deterministic CBOR so floats hash stably
package ir
