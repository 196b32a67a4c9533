// Package storage defines the durable key-value store the vault core is
// written against, plus one adapter per backend. The core never touches a
// database directly; everything goes through KV so the encryption and
// migration logic stays storage-agnostic.
package storage

import "context"

// KV is a flat key-value store with string keys and opaque byte values.
//
// Contract:
//   - Get returns (nil, nil) when the key does not exist.
//   - Set upserts.
//   - Delete is idempotent.
//   - ListKeys returns keys with the given prefix, in unspecified order.
//   - Update runs fn against a handle bound to a single backend batch or
//     transaction; if fn returns an error, none of its writes survive
//     (on backends that support it; the in-memory adapter is best-effort).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Update(ctx context.Context, fn func(ctx context.Context, kv KV) error) error
	Close() error
}
