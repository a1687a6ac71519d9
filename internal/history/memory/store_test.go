package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreAppendAndLoad(t *testing.T) {
	t.Parallel()

	store := New("111111")
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "222222"))
	require.Error(t, store.Append(ctx, ""))

	set, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, set.Has("111111"))
	require.True(t, set.Has("222222"))
	require.Equal(t, []string{"111111", "222222"}, store.Keys())
}

func TestStoreLoadIsSnapshot(t *testing.T) {
	t.Parallel()

	store := New()
	set, err := store.Load(context.Background())
	require.NoError(t, err)
	set.Add("local-only")

	again, err := store.Load(context.Background())
	require.NoError(t, err)
	require.False(t, again.Has("local-only"))
}
