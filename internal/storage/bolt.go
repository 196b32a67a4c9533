package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/agentvault/internal/common"
	"go.etcd.io/bbolt"
)

var vaultBucket = []byte("vault")

// BoltKV implements KV on a bbolt database with a single bucket. It is the
// plain key-value backend, the lighter of the two storage options.
type BoltKV struct {
	db *bbolt.DB
	tx *bbolt.Tx // non-nil when this handle is bound to a transaction
}

// OpenBolt opens (or creates) the bbolt database at path. The open timeout
// guards against a stale file lock held by another process.
func OpenBolt(path string) (*BoltKV, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(vaultBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	return &BoltKV{db: db}, nil
}

func (b *BoltKV) view(fn func(tx *bbolt.Tx) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	return b.db.View(fn)
}

func (b *BoltKV) update(fn func(tx *bbolt.Tx) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	return b.db.Update(fn)
}

func (b *BoltKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket(vaultBucket).Get([]byte(key))
		if v != nil {
			// the slice is only valid inside the transaction
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get vault[%s]: %w", key, err)
	}
	return value, nil
}

func (b *BoltKV) Set(ctx context.Context, key string, value []byte) error {
	err := b.update(func(tx *bbolt.Tx) error {
		return tx.Bucket(vaultBucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to set vault[%s]: %w", key, err)
	}
	return nil
}

func (b *BoltKV) Delete(ctx context.Context, key string) error {
	err := b.update(func(tx *bbolt.Tx) error {
		return tx.Bucket(vaultBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete vault[%s]: %w", key, err)
	}
	return nil
}

func (b *BoltKV) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.view(func(tx *bbolt.Tx) error {
		c := tx.Bucket(vaultBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list vault keys: %w", err)
	}
	return keys, nil
}

// Update runs fn inside a single bbolt read-write transaction. Nested calls
// reuse the already-open transaction.
func (b *BoltKV) Update(ctx context.Context, fn func(ctx context.Context, kv KV) error) error {
	if b.tx != nil {
		return fn(ctx, b)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return fn(ctx, &BoltKV{db: b.db, tx: tx})
	})
}

func (b *BoltKV) Close() error {
	if b.tx != nil {
		return nil
	}
	return b.db.Close()
}
