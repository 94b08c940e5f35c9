package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestRunServe_PropagatesStoreOpenError(t *testing.T) {
	configPath = t.TempDir()
	listenAddr = ""
	t.Setenv("EDGEROUTER_DB_PATH", "/nonexistent/directory/edgerouter.db")
	err := runServe(&cobra.Command{}, nil)
	assert.Error(t, err)
}

func TestRootCmd_HasServeSubcommand(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Use == "serve" {
			found = true
		}
	}
	assert.True(t, found)
}
