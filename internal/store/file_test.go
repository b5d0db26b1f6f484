package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileBackend(t *testing.T) (Backend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.json")
	b, err := NewFileBackend(path, "")
	require.NoError(t, err)
	return b, path
}

func TestFileBackend_SetGet(t *testing.T) {
	b, _ := newTestFileBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "state", `{"a":1}`, 0))

	record, ok, err := b.Get(ctx, "state")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, record.Payload)
}

func TestFileBackend_SurvivesReopen(t *testing.T) {
	b, path := newTestFileBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "persistent", "value", 0))

	reopened, err := NewFileBackend(path, "")
	require.NoError(t, err)

	record, ok, err := reopened.Get(ctx, "persistent")
	require.NoError(t, err)
	require.True(t, ok, "records survive a process restart")
	assert.Equal(t, "value", record.Payload)
}

func TestFileBackend_TTL(t *testing.T) {
	b, _ := newTestFileBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "ephemeral", "v", 40*time.Millisecond))

	_, ok, err := b.Get(ctx, "ephemeral")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok, err = b.Get(ctx, "ephemeral")
	require.NoError(t, err)
	assert.False(t, ok)

	// The expired record must also have been removed from disk.
	keys, err := b.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFileBackend_ClearSparesForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	ours, err := NewFileBackend(path, "ours")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, ours.Set(ctx, "a", "1", 0))

	// A second namespace sharing the same physical file.
	theirs, err := NewFileBackend(path, "theirs")
	require.NoError(t, err)
	require.NoError(t, theirs.Set(ctx, "b", "2", 0))

	require.NoError(t, theirs.Clear(ctx))

	keys, err := theirs.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Clear must be scoped to its own namespace.
	reloaded, err := NewFileBackend(path, "ours")
	require.NoError(t, err)
	_, ok, err := reloaded.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileBackend_EmptyPath(t *testing.T) {
	_, err := NewFileBackend("", "")
	assert.Error(t, err)
}
