package bolt

import "context"

// KV adapts one bucket to the string-keyed Get/Set shape used by the embedding cache.
type KV struct {
	store  *Store
	bucket string
}

// NewKV scopes s to bucket.
func NewKV(s *Store, bucket string) *KV {
	return &KV{store: s, bucket: bucket}
}

// Get returns the value at key or db.ErrKeyNotFound.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	return kv.store.Get(ctx, kv.bucket, []byte(key))
}

// Set stores value at key.
func (kv *KV) Set(ctx context.Context, key string, value []byte) error {
	return kv.store.Put(ctx, kv.bucket, []byte(key), value)
}
