package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by tiers that have been closed.
var ErrClosed = errors.New("storage closed")

// Storage is a string key/value tier.
//
// GetItem reports found=false (and a nil error) when the key is absent.
// RemoveItem on a missing key succeeds.
type Storage interface {
	GetItem(ctx context.Context, key string) (value string, found bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}
