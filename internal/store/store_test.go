package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryStore(t *testing.T) {
	m := NewMemory()

	_, ok, err := m.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set("k", "v"))
	v, ok, err := m.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, m.Set("k", "v2"))
	v, _, _ = m.Get("k")
	assert.Equal(t, "v2", v)
}

func TestPebbleStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	p, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	_, ok, err := p.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok, "absent keys are not an error")

	require.NoError(t, p.Set("session:x:attempts", "3"))
	v, ok, err := p.Get("session:x:attempts")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	require.NoError(t, p.Close())

	// Values survive a reopen.
	p, err = Open(path, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	v, ok, err = p.Get("session:x:attempts")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}
