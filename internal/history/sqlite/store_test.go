package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStoreAppendSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "history.db")

	store, err := New(ctx, path, zap.NewNop())
	require.NoError(t, err)

	set, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, set.Len())

	require.NoError(t, store.Append(ctx, "649991"))
	require.NoError(t, store.Append(ctx, "3xpuppies"))
	require.Error(t, store.Append(ctx, " "))
	require.NoError(t, store.Close())

	reopened, err := New(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck // test cleanup

	set, err = reopened.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	require.True(t, set.Has("649991"))
	require.True(t, set.Has("3xpuppies"))
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "", nil)
	require.Error(t, err)
}
