// Package bolt is the embedded single-file backend built on bbolt.
// Buckets are created lazily on first write; reads from a missing bucket behave as empty.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/kailas-cloud/tagrec/internal/db"
)

// ErrClosed is returned by Ping after Close.
var ErrClosed = errors.New("bolt: database closed")

// Item is a key/value pair for batched writes.
type Item struct {
	Key   []byte
	Value []byte
}

// Store wraps a bbolt database file.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the database file. timeout bounds the wait for the file lock.
func Open(path string, timeout time.Duration) (*Store, error) {
	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return &Store{db: bdb}, nil
}

// Ping verifies the database is still open and readable.
func (s *Store) Ping(_ context.Context) error {
	if s.db == nil {
		return ErrClosed
	}
	if err := s.db.View(func(*bbolt.Tx) error { return nil }); err != nil {
		if errors.Is(err, berrors.ErrDatabaseNotOpen) {
			return ErrClosed
		}
		return fmt.Errorf("bolt ping: %w", err)
	}
	return nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns a copy of the value at key, or db.ErrKeyNotFound.
func (s *Store) Get(_ context.Context, bucket string, key []byte) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return db.ErrKeyNotFound
		}
		v := b.Get(key)
		if v == nil {
			return db.ErrKeyNotFound
		}
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put stores value at key.
func (s *Store) Put(ctx context.Context, bucket string, key, value []byte) error {
	return s.PutMulti(ctx, bucket, []Item{{Key: key, Value: value}})
}

// PutMulti stores all items in one transaction.
func (s *Store) PutMulti(_ context.Context, bucket string, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		for _, it := range items {
			if err := b.Put(it.Key, it.Value); err != nil {
				return fmt.Errorf("put %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// Delete removes key. It reports whether the key existed.
func (s *Store) Delete(_ context.Context, bucket string, key []byte) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil || b.Get(key) == nil {
			return nil
		}
		existed = true
		return b.Delete(key)
	})
	return existed, err
}

// ForEach calls fn for each pair in key order. Slices passed to fn are only
// valid for the duration of the call.
func (s *Store) ForEach(ctx context.Context, bucket string, fn func(k, v []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(k, v)
		})
	})
}

// Count returns the number of keys in bucket.
func (s *Store) Count(_ context.Context, bucket string) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(bucket)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// DropBucket removes bucket and everything in it. Missing buckets are not an error.
func (s *Store) DropBucket(_ context.Context, bucket string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket([]byte(bucket))
		if errors.Is(err, berrors.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}
