package vectorindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/tagrec/internal/db"
	"github.com/kailas-cloud/tagrec/internal/db/bolt"
	"github.com/kailas-cloud/tagrec/internal/domain"
	"github.com/kailas-cloud/tagrec/internal/domain/vector"
)

var spaceKey = []byte("space")

// Bolt is an exact cosine index over a bbolt file.
type Bolt struct {
	store      *bolt.Store
	collection string
	space      domain.EmbeddingSpace
}

// NewBolt creates a Bolt-backed index for collection in the given embedding space.
func NewBolt(s *bolt.Store, collection string, space domain.EmbeddingSpace) *Bolt {
	return &Bolt{store: s, collection: collection, space: space}
}

func (b *Bolt) docsBucket() string { return b.collection + ":docs" }
func (b *Bolt) metaBucket() string { return b.collection + ":meta" }

// Info describes the index.
func (b *Bolt) Info() Info {
	return Info{Backend: "bolt", Collection: b.collection, Model: b.space.Model, Dimensions: b.space.Dimensions}
}

// Stale reports whether stored vectors belong to a different embedding space.
func (b *Bolt) Stale(ctx context.Context) (bool, error) {
	err := b.checkFresh(ctx)
	if errors.Is(err, domain.ErrIndexStale) {
		return true, nil
	}
	return false, err
}

// checkFresh returns ErrIndexStale on fingerprint mismatch. A missing
// fingerprint is fine only while the index is empty.
func (b *Bolt) checkFresh(ctx context.Context) error {
	data, err := b.store.Get(ctx, b.metaBucket(), spaceKey)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			return unavailable("read fingerprint", err)
		}
		n, err := b.store.Count(ctx, b.docsBucket())
		if err != nil {
			return unavailable("count", err)
		}
		if n > 0 {
			return staleError(domain.EmbeddingSpace{}, b.space)
		}
		return nil
	}
	stored, err := decodeSpace(data)
	if err != nil {
		return staleError(domain.EmbeddingSpace{}, b.space)
	}
	if !stored.Equal(b.space) {
		return staleError(stored, b.space)
	}
	return nil
}

func (b *Bolt) writeFingerprint(ctx context.Context) error {
	data, err := encodeSpace(b.space)
	if err != nil {
		return err
	}
	if err := b.store.Put(ctx, b.metaBucket(), spaceKey, data); err != nil {
		return unavailable("write fingerprint", err)
	}
	return nil
}

// Upsert inserts or replaces the entry for its record id.
func (b *Bolt) Upsert(ctx context.Context, e vector.Entry) error {
	return b.UpsertBatch(ctx, []vector.Entry{e})
}

// UpsertBatch validates every entry, then writes all of them in one transaction.
func (b *Bolt) UpsertBatch(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := checkEntries(b.space, entries); err != nil {
		return err
	}
	if err := b.checkFresh(ctx); err != nil {
		return err
	}

	items := make([]bolt.Item, len(entries))
	for i := range entries {
		val, err := encodeBoltDoc(&entries[i])
		if err != nil {
			return err
		}
		items[i] = bolt.Item{Key: boltKey(entries[i].RecordID), Value: val}
	}
	if err := b.writeFingerprint(ctx); err != nil {
		return err
	}
	if err := b.store.PutMulti(ctx, b.docsBucket(), items); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

// Query scans every entry and returns the k nearest by cosine distance.
func (b *Bolt) Query(ctx context.Context, v []float32, k int) ([]vector.Neighbor, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if err := checkDim(b.space, v); err != nil {
		return nil, err
	}
	if err := b.checkFresh(ctx); err != nil {
		return nil, err
	}

	var all []vector.Neighbor
	err := b.store.ForEach(ctx, b.docsBucket(), func(key, val []byte) error {
		doc, err := decodeBoltDoc(val)
		if err != nil {
			return fmt.Errorf("decode record %d: %w", int64(binary.BigEndian.Uint64(key)), err)
		}
		all = append(all, vector.Neighbor{
			RecordID: int64(binary.BigEndian.Uint64(key)),
			Distance: vector.CosineDistance(v, doc.vector),
			Text:     doc.Text,
			Tags:     doc.Tags,
			BatchID:  doc.BatchID,
		})
		return nil
	})
	if err != nil {
		return nil, unavailable("query", err)
	}

	vector.SortNeighbors(all)
	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}

// Delete removes the entry for id. Absent ids are not an error.
func (b *Bolt) Delete(ctx context.Context, id int64) error {
	if _, err := b.store.Delete(ctx, b.docsBucket(), boltKey(id)); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Clear drops all entries and adopts the current embedding space.
func (b *Bolt) Clear(ctx context.Context) error {
	if err := b.store.DropBucket(ctx, b.docsBucket()); err != nil {
		return unavailable("clear", err)
	}
	return b.writeFingerprint(ctx)
}

// Count returns the number of stored entries.
func (b *Bolt) Count(ctx context.Context) (int, error) {
	n, err := b.store.Count(ctx, b.docsBucket())
	if err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

// Ping checks the underlying file.
func (b *Bolt) Ping(ctx context.Context) error {
	return b.store.Ping(ctx)
}

// boltKey is big-endian so bucket order equals record id order.
func boltKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

type boltDoc struct {
	Text    string   `json:"text"`
	Tags    []string `json:"tags"`
	BatchID int64    `json:"batch_id,omitempty"`
	Vector  []byte   `json:"vector"`

	vector []float32
}

func encodeBoltDoc(e *vector.Entry) ([]byte, error) {
	data, err := json.Marshal(boltDoc{
		Text:    e.Text,
		Tags:    e.Tags,
		BatchID: e.BatchID,
		Vector:  db.EncodeVector(e.Vector),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal entry %d: %w", e.RecordID, err)
	}
	return data, nil
}

func decodeBoltDoc(data []byte) (boltDoc, error) {
	var d boltDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return boltDoc{}, err
	}
	v, err := db.DecodeVector(d.Vector)
	if err != nil {
		return boltDoc{}, err
	}
	d.vector = v
	return d, nil
}
