// Package catalog registers the built-in component kinds.
//
// Each kind pairs a plain Go struct standing in for the rendering engine's
// object with the tables reconcile needs: default attributes, synonym
// groups, patch functions, dependency slots and a dispose hook. Attribute
// names here are canonical (lower case).
//
// Slot values follow one rule: an ir.Ref names another component, a string
// names a resource URL.
package catalog
