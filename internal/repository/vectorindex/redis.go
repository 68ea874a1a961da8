package vectorindex

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/tagrec/internal/db"
	"github.com/kailas-cloud/tagrec/internal/domain"
	"github.com/kailas-cloud/tagrec/internal/domain/vector"
)

const (
	fieldVector   = "__vector"
	fieldText     = "__text"
	fieldTags     = "__tags"
	fieldRecordID = "__record_id"
	fieldBatchID  = "__batch_id"

	tagSeparator = ","
)

var returnFields = []string{fieldText, fieldTags, fieldRecordID, fieldBatchID}

// store is the consumer interface for the redis backend (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	Ping(ctx context.Context) error
}

// RedisOptions tunes the FT vector field. M and EFConstruction only apply to HNSW.
type RedisOptions struct {
	KeyPrefix      string
	Algorithm      db.VectorAlgorithm
	M              int
	EFConstruction int
}

// Redis is a cosine FT index on Redis or Valkey.
type Redis struct {
	store      store
	collection string
	space      domain.EmbeddingSpace
	opts       RedisOptions
}

// NewRedis creates a redis-backed index. An empty KeyPrefix defaults to domain.KeyPrefix.
func NewRedis(s store, collection string, space domain.EmbeddingSpace, opts RedisOptions) *Redis {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = domain.KeyPrefix
	}
	if opts.Algorithm == "" {
		opts.Algorithm = db.VectorHNSW
	}
	return &Redis{store: s, collection: collection, space: space, opts: opts}
}

func (r *Redis) keyPrefix() string { return r.opts.KeyPrefix + r.collection + ":" }
func (r *Redis) indexName() string { return r.opts.KeyPrefix + r.collection + ":idx" }
func (r *Redis) spaceKey() string  { return r.opts.KeyPrefix + r.collection + ":space" }
func (r *Redis) docKey(id int64) string {
	return r.keyPrefix() + docID(id)
}

// Info describes the index.
func (r *Redis) Info() Info {
	return Info{Backend: "redis", Collection: r.collection, Model: r.space.Model, Dimensions: r.space.Dimensions}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Stale reports whether stored vectors belong to a different embedding space.
func (r *Redis) Stale(ctx context.Context) (bool, error) {
	err := r.checkFresh(ctx)
	if errors.Is(err, domain.ErrIndexStale) {
		return true, nil
	}
	return false, err
}

func (r *Redis) checkFresh(ctx context.Context) error {
	data, err := r.store.Get(ctx, r.spaceKey())
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			return unavailable("read fingerprint", err)
		}
		n, err := r.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return staleError(domain.EmbeddingSpace{}, r.space)
		}
		return nil
	}
	stored, err := decodeSpace(data)
	if err != nil || !stored.Equal(r.space) {
		return staleError(stored, r.space)
	}
	return nil
}

func (r *Redis) writeFingerprint(ctx context.Context) error {
	data, err := encodeSpace(r.space)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.spaceKey(), data); err != nil {
		return unavailable("write fingerprint", err)
	}
	return nil
}

func (r *Redis) definition() (*db.IndexDefinition, error) {
	return db.NewIndex(r.indexName()).
		Prefix(r.keyPrefix()).
		Tag(fieldTags, tagSeparator).
		Numeric(fieldRecordID).
		Vector(fieldVector, r.space.Dimensions, r.opts.Algorithm, r.opts.M, r.opts.EFConstruction).As("vector").
		Build()
}

func (r *Redis) ensureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return unavailable("index exists", err)
	}
	if exists {
		return nil
	}
	def, err := r.definition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return unavailable("create index", err)
	}
	return nil
}

// Upsert inserts or replaces the entry for its record id.
func (r *Redis) Upsert(ctx context.Context, e vector.Entry) error {
	return r.UpsertBatch(ctx, []vector.Entry{e})
}

// UpsertBatch validates every entry, then writes all hashes in one pipelined round-trip.
func (r *Redis) UpsertBatch(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := checkEntries(r.space, entries); err != nil {
		return err
	}
	if err := r.checkFresh(ctx); err != nil {
		return err
	}
	if err := r.ensureIndex(ctx); err != nil {
		return err
	}
	if err := r.writeFingerprint(ctx); err != nil {
		return err
	}

	items := make([]db.HashSetItem, len(entries))
	for i := range entries {
		items[i] = db.HashSetItem{Key: r.docKey(entries[i].RecordID), Fields: hashFields(&entries[i])}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

// Query returns the k nearest entries by cosine distance.
func (r *Redis) Query(ctx context.Context, v []float32, k int) ([]vector.Neighbor, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if err := checkDim(r.space, v); err != nil {
		return nil, err
	}
	if err := r.checkFresh(ctx); err != nil {
		return nil, err
	}
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return nil, unavailable("index exists", err)
	}
	if !exists {
		return nil, nil
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		Vector:       v,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, unavailable("search", err)
	}

	out := make([]vector.Neighbor, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, parseNeighbor(r.keyPrefix(), e))
	}
	vector.SortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Delete removes the entry for id. Absent ids are not an error.
func (r *Redis) Delete(ctx context.Context, id int64) error {
	if err := r.store.Del(ctx, r.docKey(id)); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Clear drops the FT index with its documents, recreates it and adopts the current space.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName(), true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return unavailable("drop index", err)
	}
	def, err := r.definition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return unavailable("create index", err)
	}
	return r.writeFingerprint(ctx)
}

// Count returns the number of indexed documents. A missing FT index counts as empty.
func (r *Redis) Count(ctx context.Context) (int, error) {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return 0, unavailable("index exists", err)
	}
	if !exists {
		return 0, nil
	}
	n, err := r.store.SearchCount(ctx, r.indexName(), "*")
	if err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

func hashFields(e *vector.Entry) map[string]string {
	return map[string]string{
		fieldVector:   rueidis.BinaryString(db.EncodeVector(e.Vector)),
		fieldText:     e.Text,
		fieldTags:     strings.Join(e.Tags, tagSeparator),
		fieldRecordID: strconv.FormatInt(e.RecordID, 10),
		fieldBatchID:  strconv.FormatInt(e.BatchID, 10),
	}
}

func parseNeighbor(keyPrefix string, e db.SearchEntry) vector.Neighbor {
	n := vector.Neighbor{Distance: e.Distance, Text: e.Fields[fieldText]}
	if id, err := strconv.ParseInt(e.Fields[fieldRecordID], 10, 64); err == nil {
		n.RecordID = id
	} else if id, err := strconv.ParseInt(strings.TrimPrefix(e.Key, keyPrefix+"conv_"), 10, 64); err == nil {
		n.RecordID = id
	}
	if raw := e.Fields[fieldTags]; raw != "" {
		n.Tags = strings.Split(raw, tagSeparator)
	}
	if b, err := strconv.ParseInt(e.Fields[fieldBatchID], 10, 64); err == nil {
		n.BatchID = b
	}
	return n
}
