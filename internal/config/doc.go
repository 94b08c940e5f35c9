// Package config is documented in config.go; this file only anchors
// the package godoc entrypoint.
package config
