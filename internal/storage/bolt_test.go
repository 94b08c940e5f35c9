package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBolt(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := NewBoltStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBoltStore_PutGetRoundTrip(t *testing.T) {
	s := openTestBolt(t)

	require.NoError(t, s.Put("coordinator:alpha", []byte(`{"tunnel_url":"https://a"}`)))

	v, err := s.Get("coordinator:alpha")
	require.NoError(t, err)
	assert.Equal(t, `{"tunnel_url":"https://a"}`, string(v))
}

func TestBoltStore_GetMissingKeyReturnsErrKeyNotFound(t *testing.T) {
	s := openTestBolt(t)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBoltStore_DeleteIsIdempotent(t *testing.T) {
	s := openTestBolt(t)
	require.NoError(t, s.Delete("never-existed"))

	require.NoError(t, s.Put("k", []byte("v")))
	require.NoError(t, s.Delete("k"))
	_, err := s.Get("k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBoltStore_ListAndStats(t *testing.T) {
	s := openTestBolt(t)
	require.NoError(t, s.Put("a", []byte("1")))
	require.NoError(t, s.Put("b", []byte("22")))

	assert.ElementsMatch(t, []string{"a", "b"}, s.List())

	stats := s.Stats()
	assert.Equal(t, 2, stats.Keys)
	assert.Equal(t, 3, stats.Bytes)
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	s1, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Put("durable", []byte("yes")))
	require.NoError(t, s1.Close())

	s2, err := NewBoltStore(path)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.Get("durable")
	require.NoError(t, err)
	assert.Equal(t, "yes", string(v))
}
