package memory

import (
	"fmt"
	"sort"
)

// flatIndex is an exhaustive inner-product index. Vectors are expected to be
// unit length, so scores are cosine similarities.
type flatIndex struct {
	dim     int
	vectors [][]float32
}

func (ix *flatIndex) len() int { return len(ix.vectors) }

func (ix *flatIndex) add(vs [][]float32) error {
	dim := ix.dim
	for _, v := range vs {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim || dim == 0 {
			return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(v), dim)
		}
	}
	ix.dim = dim
	ix.vectors = append(ix.vectors, vs...)
	return nil
}

func (ix *flatIndex) truncate(n int) {
	if n < len(ix.vectors) {
		ix.vectors = ix.vectors[:n]
	}
	if len(ix.vectors) == 0 {
		ix.dim = 0
	}
}

type hit struct {
	seq   int
	score float64
}

// search returns the top k hits by descending score. Ties keep insertion order.
func (ix *flatIndex) search(q []float32, k int) ([]hit, error) {
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}
	if len(q) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(q), ix.dim)
	}
	if k > len(ix.vectors) {
		k = len(ix.vectors)
	}

	hits := make([]hit, len(ix.vectors))
	for i, v := range ix.vectors {
		var dot float64
		for j := range v {
			dot += float64(v[j]) * float64(q[j])
		}
		hits[i] = hit{seq: i, score: dot}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	return hits[:k], nil
}
