// Package file_test tests the file-backed history store.
package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listingwatch/internal/history/file"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := file.New(file.Config{Path: filepath.Join(t.TempDir(), "history.txt")})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("MissingPath", func(t *testing.T) {
		_, err := file.New(file.Config{})
		assert.Error(t, err)
	})

	t.Run("CreatesParentDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "state")
		_, err := file.New(file.Config{Path: filepath.Join(dir, "history.txt")})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("ParentIsAFile", func(t *testing.T) {
		parent := filepath.Join(t.TempDir(), "plain")
		require.NoError(t, os.WriteFile(parent, []byte("x"), 0o600))
		_, err := file.New(file.Config{Path: filepath.Join(parent, "history.txt")})
		assert.Error(t, err)
	})
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store, err := file.New(file.Config{Path: filepath.Join(t.TempDir(), "history.txt")})
	require.NoError(t, err)

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestAppendSurvivesReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.txt")
	store, err := file.New(file.Config{Path: path})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "649991"))
	require.NoError(t, store.Append(ctx, "3xpuppies"))
	require.NoError(t, store.Close())

	// A fresh store on the same path simulates a process restart.
	reopened, err := file.New(file.Config{Path: path})
	require.NoError(t, err)
	set, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, set.Has("649991"))
	assert.True(t, set.Has("3xpuppies"))

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "649991\n3xpuppies\n", string(raw))
}

func TestAppendPreservesExistingContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.txt")
	require.NoError(t, os.WriteFile(path, []byte("111111\n"), 0o600))

	store, err := file.New(file.Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), "222222"))

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "111111\n222222\n", string(raw))
}

func TestAppendDoesNotDeduplicate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.txt")
	store, err := file.New(file.Config{Path: path})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "649991"))
	require.NoError(t, store.Append(ctx, "649991"))

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "649991\n649991\n", string(raw))
}

func TestAppendRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	store, err := file.New(file.Config{Path: filepath.Join(t.TempDir(), "history.txt")})
	require.NoError(t, err)
	assert.Error(t, store.Append(context.Background(), ""))
	assert.Error(t, store.Append(context.Background(), "a\nb"))
}

func TestAppendCanceledContext(t *testing.T) {
	t.Parallel()

	store, err := file.New(file.Config{Path: filepath.Join(t.TempDir(), "history.txt")})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, store.Append(ctx, "649991"))
}
