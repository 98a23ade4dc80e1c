package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_UploadDownload(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n1,2\n"), 0644))

	ctx := context.Background()
	require.NoError(t, store.Upload(ctx, src, "runs/in.csv"))

	exists, err := store.Exists(ctx, "runs/in.csv")
	require.NoError(t, err)
	assert.True(t, exists)

	dst := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, store.Download(ctx, "runs/in.csv", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = store.Download(context.Background(), "nope", filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, ErrObjectNotFound)

	exists, err := store.Exists(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, store.Upload(ctx, "x", "y"))
}
