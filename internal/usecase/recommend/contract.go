package recommend

import (
	"context"

	"github.com/kailas-cloud/tagrec/internal/domain/vector"
)

// Index answers nearest-neighbor queries.
type Index interface {
	Query(ctx context.Context, v []float32, k int) ([]vector.Neighbor, error)
}
