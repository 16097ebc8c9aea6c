package catalog

import (
	"github.com/roach88/patchwork/internal/reconcile"
)

// Kinds returns every built-in kind in registration order.
func Kinds() []reconcile.Kind {
	var kinds []reconcile.Kind
	kinds = append(kinds, materialKinds()...)
	kinds = append(kinds, textureKind())
	kinds = append(kinds, geometryKinds()...)
	kinds = append(kinds, renderKinds()...)
	return kinds
}

// NewRegistry returns a registry holding the built-in kinds.
func NewRegistry() *reconcile.Registry {
	return reconcile.NewRegistry().MustRegister(Kinds()...)
}
