package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTunneler_UnknownModeErrors(t *testing.T) {
	_, err := NewTunneler("carrier-pigeon", "127.0.0.1:8080")
	assert.Error(t, err)
}

func TestNoneTunneler_OpensToListenAddr(t *testing.T) {
	tun, err := NewTunneler("none", "127.0.0.1:8080")
	require.NoError(t, err)
	url, err := tun.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", url)
	assert.Empty(t, tun.MeshIP())
}

func TestNamedTunneler_RequiresHostname(t *testing.T) {
	tun, err := NewTunneler("named", "127.0.0.1:8080")
	require.NoError(t, err)
	_, err = tun.Open(context.Background())
	assert.Error(t, err)
}
