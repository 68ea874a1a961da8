// Package vector defines index entries, neighbor results and the distance math shared by index backends.
package vector

import (
	"cmp"
	"math"
	"slices"
)

// Entry is one indexed record.
type Entry struct {
	RecordID int64
	Vector   []float32
	Text     string
	Tags     []string
	BatchID  int64
}

// Neighbor is a single query hit. Distance is cosine distance in [0, 2].
type Neighbor struct {
	RecordID int64
	Distance float64
	Text     string
	Tags     []string
	BatchID  int64
}

// Similarity maps cosine distance onto [0, 1], 1 meaning identical direction.
// Out-of-range distances are clamped.
func Similarity(distance float64) float64 {
	d := math.Min(2, math.Max(0, distance))
	return 1 - d/2
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are treated as orthogonal.
// Vectors must have equal length.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	cos = math.Min(1, math.Max(-1, cos))
	return 1 - cos
}

// IsZero reports whether v has no non-zero component. A zero vector has no
// direction, so it is close to nothing.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// SortNeighbors orders by ascending distance, ties by ascending record id.
func SortNeighbors(ns []Neighbor) {
	slices.SortStableFunc(ns, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.RecordID, b.RecordID)
	})
}
