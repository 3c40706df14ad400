package session

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	perrors "github.com/jrsteele09/go-course-portal/internal/errors"
	"github.com/jrsteele09/go-course-portal/identity"
	"github.com/jrsteele09/go-course-portal/storage"
)

// Storage keys of the persisted snapshot
const (
	AttributesKey = "portal.userAttributes"
	TimestampKey  = "portal.userAttributesTimestamp"
)

// Snapshot is the persisted copy of the user's attributes and when they were captured.
type Snapshot struct {
	Attributes identity.Attributes
	CapturedAt time.Time
}

// Fresh reports whether the snapshot may still be trusted at now.
func (s Snapshot) Fresh(now time.Time, window time.Duration) bool {
	age := now.Sub(s.CapturedAt)
	return age >= 0 && age < window
}

// LoadSnapshot returns nil when no snapshot is stored. A half-written or
// unparsable snapshot yields ErrSnapshotCorrupt.
func LoadSnapshot(ctx context.Context, store storage.Store) (*Snapshot, error) {
	rawAttrs, hasAttrs, err := store.Get(ctx, AttributesKey)
	if err != nil {
		return nil, perrors.Wrapf(err, "[LoadSnapshot] read attributes")
	}
	rawTS, hasTS, err := store.Get(ctx, TimestampKey)
	if err != nil {
		return nil, perrors.Wrapf(err, "[LoadSnapshot] read timestamp")
	}
	if !hasAttrs && !hasTS {
		return nil, nil
	}
	if !hasAttrs || !hasTS {
		return nil, perrors.Wrapf(perrors.ErrSnapshotCorrupt, "[LoadSnapshot] partial snapshot")
	}

	var attrs identity.Attributes
	if err := json.Unmarshal([]byte(rawAttrs), &attrs); err != nil || attrs == nil {
		return nil, perrors.Wrapf(perrors.ErrSnapshotCorrupt, "[LoadSnapshot] attributes")
	}
	millis, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return nil, perrors.Wrapf(perrors.ErrSnapshotCorrupt, "[LoadSnapshot] timestamp %q", rawTS)
	}

	return &Snapshot{
		Attributes: attrs,
		CapturedAt: time.UnixMilli(millis),
	}, nil
}

func SaveSnapshot(ctx context.Context, store storage.Store, snap Snapshot) error {
	raw, err := json.Marshal(snap.Attributes)
	if err != nil {
		return perrors.Wrapf(err, "[SaveSnapshot] encode attributes")
	}
	if err := store.Set(ctx, AttributesKey, string(raw)); err != nil {
		return perrors.Wrapf(err, "[SaveSnapshot] write attributes")
	}
	if err := store.Set(ctx, TimestampKey, strconv.FormatInt(snap.CapturedAt.UnixMilli(), 10)); err != nil {
		return perrors.Wrapf(err, "[SaveSnapshot] write timestamp")
	}
	return nil
}

func ClearSnapshot(ctx context.Context, store storage.Store) error {
	return store.Delete(ctx, AttributesKey, TimestampKey)
}
