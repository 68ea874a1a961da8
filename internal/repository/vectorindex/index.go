// Package vectorindex stores record vectors and answers nearest-neighbor queries.
// Two backends share one contract: Bolt (embedded, exact brute-force search) and
// Redis (FT.* HNSW or FLAT index on Redis 8+ or Valkey).
//
// Each index persists the EmbeddingSpace it was built with. When the running
// encoder reports a different space the index is stale: Query and Upsert fail
// with domain.ErrIndexStale until Clear resets it.
package vectorindex

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/tagrec/internal/domain"
	"github.com/kailas-cloud/tagrec/internal/domain/vector"
)

// Info describes an index instance.
type Info struct {
	Backend    string
	Collection string
	Model      string
	Dimensions int
}

func checkDim(space domain.EmbeddingSpace, v []float32) error {
	if len(v) != space.Dimensions {
		return domain.NewDimensionError(space.Dimensions, len(v))
	}
	return nil
}

func checkEntries(space domain.EmbeddingSpace, entries []vector.Entry) error {
	for i := range entries {
		if err := checkDim(space, entries[i].Vector); err != nil {
			return fmt.Errorf("entry for record %d: %w", entries[i].RecordID, err)
		}
	}
	return nil
}

func checkK(k int) error {
	if k <= 0 {
		return fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidArgument)
	}
	return nil
}

func encodeSpace(s domain.EmbeddingSpace) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding space: %w", err)
	}
	return data, nil
}

func decodeSpace(data []byte) (domain.EmbeddingSpace, error) {
	var s domain.EmbeddingSpace
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.EmbeddingSpace{}, fmt.Errorf("unmarshal embedding space: %w", err)
	}
	return s, nil
}

func staleError(stored, current domain.EmbeddingSpace) error {
	return fmt.Errorf("index space %s, encoder space %s: %w", stored, current, domain.ErrIndexStale)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrIndexUnavailable, err)
}

func docID(id int64) string {
	return "conv_" + strconv.FormatInt(id, 10)
}
