package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-course-portal/identity"
	perrors "github.com/jrsteele09/go-course-portal/internal/errors"
	"github.com/jrsteele09/go-course-portal/session"
	"github.com/jrsteele09/go-course-portal/storage/memstore"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	captured := time.UnixMilli(1709542800123)

	err := session.SaveSnapshot(ctx, store, session.Snapshot{
		Attributes: identity.Attributes{"profile": "instructor", "email": "a@b.c"},
		CapturedAt: captured,
	})
	require.NoError(t, err)

	raw, ok, err := store.Get(ctx, session.TimestampKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1709542800123", raw)

	snap, err := session.LoadSnapshot(ctx, store)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, "instructor", snap.Attributes["profile"])
	require.True(t, snap.CapturedAt.Equal(captured))
}

func TestSnapshot_LoadAbsent(t *testing.T) {
	snap, err := session.LoadSnapshot(context.Background(), memstore.New())
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestSnapshot_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name  string
		attrs string
		ts    string
	}{
		{name: "attributes only", attrs: `{"profile":"student"}`},
		{name: "timestamp only", ts: "1709542800123"},
		{name: "bad json", attrs: `{"profile":`, ts: "1709542800123"},
		{name: "json null", attrs: `null`, ts: "1709542800123"},
		{name: "bad timestamp", attrs: `{"profile":"student"}`, ts: "noon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memstore.New()
			if tt.attrs != "" {
				require.NoError(t, store.Set(ctx, session.AttributesKey, tt.attrs))
			}
			if tt.ts != "" {
				require.NoError(t, store.Set(ctx, session.TimestampKey, tt.ts))
			}

			snap, err := session.LoadSnapshot(ctx, store)
			require.Nil(t, snap)
			require.ErrorIs(t, err, perrors.ErrSnapshotCorrupt)
		})
	}
}

func TestSnapshot_Clear(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, session.SaveSnapshot(ctx, store, session.Snapshot{
		Attributes: identity.Attributes{"profile": "student"},
		CapturedAt: time.Now(),
	}))

	require.NoError(t, session.ClearSnapshot(ctx, store))
	require.Zero(t, store.Len())
}

func TestSnapshot_Fresh(t *testing.T) {
	captured := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	snap := session.Snapshot{CapturedAt: captured}
	window := 15 * time.Minute

	require.True(t, snap.Fresh(captured, window))
	require.True(t, snap.Fresh(captured.Add(14*time.Minute+59*time.Second), window))
	require.False(t, snap.Fresh(captured.Add(window), window))
	require.False(t, snap.Fresh(captured.Add(-time.Second), window), "captured in the future")
}
