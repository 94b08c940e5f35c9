package edge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/fabric/internal/storage"
)

func newTestRegistry(t *testing.T, ttl time.Duration) *Registry {
	t.Helper()
	reg, err := New(storage.NewMemoryStore(), ttl)
	require.NoError(t, err)
	return reg
}

func TestRegistry_RegisterAssignsIDWhenEmpty(t *testing.T) {
	reg := newTestRegistry(t, time.Minute)
	id, err := reg.Register("", "https://coord-a", "us-east", 4001)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	live := reg.ListLive()
	require.Len(t, live, 1)
	assert.Equal(t, id, live[0].CoordinatorID)
	assert.Equal(t, "https://coord-a", live[0].TunnelURL)
	assert.Equal(t, 4001, live[0].DHTPort)
}

func TestRegistry_ReRegisterPreservesRegisteredAt(t *testing.T) {
	reg := newTestRegistry(t, time.Minute)
	id, err := reg.Register("coord-1", "https://a", "", 0)
	require.NoError(t, err)

	live := reg.ListLive()
	require.Len(t, live, 1)
	first := live[0].RegisteredAt

	_, err = reg.Register(id, "https://b", "eu-west", 5000)
	require.NoError(t, err)

	live = reg.ListLive()
	require.Len(t, live, 1)
	assert.Equal(t, first, live[0].RegisteredAt)
	assert.Equal(t, "https://b", live[0].TunnelURL)
	assert.Equal(t, "eu-west", live[0].Location)
}

func TestRegistry_HeartbeatUnknownReturnsFalse(t *testing.T) {
	reg := newTestRegistry(t, time.Minute)
	assert.False(t, reg.Heartbeat("never-registered"))
}

func TestRegistry_StaleCoordinatorExcludedFromListLive(t *testing.T) {
	reg := newTestRegistry(t, time.Millisecond)
	id, err := reg.Register("", "https://a", "", 0)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	assert.False(t, reg.Heartbeat(id))
	assert.Empty(t, reg.ListLive())
}

func TestRegistry_PersistsAcrossReload(t *testing.T) {
	store := storage.NewMemoryStore()
	reg, err := New(store, time.Minute)
	require.NoError(t, err)

	id, err := reg.Register("", "https://a", "us-east", 4001)
	require.NoError(t, err)

	reg2, err := New(store, time.Minute)
	require.NoError(t, err)

	live := reg2.ListLive()
	require.Len(t, live, 1)
	assert.Equal(t, id, live[0].CoordinatorID)
}
