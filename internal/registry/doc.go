// Package registry is documented in registry.go and purger.go; this file
// only anchors the package godoc entrypoint, following the same per-
// package doc.go convention torua uses.
package registry
