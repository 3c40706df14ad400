package memstore_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-course-portal/storage"
	"github.com/jrsteele09/go-course-portal/storage/memstore"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	require.NoError(t, s.Delete(ctx, "a", "b", "never-set"))
	require.Equal(t, 0, s.Len())
}

func TestWithPrefix(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	alice := storage.WithPrefix(backend, "alice:")
	bob := storage.WithPrefix(backend, "bob:")

	require.NoError(t, alice.Set(ctx, "k", "from-alice"))
	require.NoError(t, bob.Set(ctx, "k", "from-bob"))

	v, ok, err := backend.Get(ctx, "alice:k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "from-alice", v)

	require.NoError(t, alice.Delete(ctx, "k"))
	_, ok, _ = alice.Get(ctx, "k")
	require.False(t, ok)

	v, ok, _ = bob.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "from-bob", v)
}
