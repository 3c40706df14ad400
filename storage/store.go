package storage

import (
	"context"
	"time"
)

// Store is the persisted key-value store the session snapshot lives in.
// It plays the part of browser session storage for one portal process.
type Store interface {
	// Get returns the value and whether the key was present
	Get(ctx context.Context, key string) (string, bool, error)

	// Set creates or replaces a value
	Set(ctx context.Context, key, value string) error

	// Delete removes keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
}

// Pruner is implemented by stores that outlive the process and need old
// keys removed explicitly.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type prefixed struct {
	store  Store
	prefix string
}

// WithPrefix scopes every key of store under prefix, giving each browser
// session its own slice of a shared backend.
func WithPrefix(store Store, prefix string) Store {
	return &prefixed{store: store, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.store.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.store.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = p.prefix + k
	}
	return p.store.Delete(ctx, scoped...)
}
