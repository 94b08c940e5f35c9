package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestRunServe_PropagatesConfigError(t *testing.T) {
	configPath = t.TempDir()
	listenAddr = ""
	err := runServe(&cobra.Command{}, nil)
	assert.Error(t, err)
}
