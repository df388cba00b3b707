// Package session persists per-chat conversation records.
//
// A Store is a plain blob store: values are opaque serialized records keyed
// by chat identity. There is no TTL and no compare-and-set; a Set fully
// replaces the previous value.
package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("session: not found")

// Store is the session blob store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}
