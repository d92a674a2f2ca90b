package ingest

import (
	"fmt"
	"math"
	"sort"
)

// DefaultNeighbors is the k used for the ingest-time locality annotation.
const DefaultNeighbors = 2

// NeighborIndex computes k-nearest-neighbor relationships among a batch of
// chunk embeddings. Implementations must be deterministic for fixed input;
// the annotation never affects storage correctness, so a brute-force
// implementation is fine at per-document batch sizes.
type NeighborIndex interface {
	KNeighbors(vectors [][]float32, k int) ([][]int, error)
}

// BruteForce is an exact cosine-distance NeighborIndex.
type BruteForce struct{}

// KNeighbors returns, for each vector, the indices of its k nearest
// neighbors under cosine distance, nearest first, with the vector itself
// included at distance zero. k is capped at the batch size; ties break on
// the lower index so output is deterministic.
func (BruteForce) KNeighbors(vectors [][]float32, k int) ([][]int, error) {
	n := len(vectors)
	if n == 0 {
		return nil, fmt.Errorf("cluster: no vectors")
	}
	if k < 1 {
		return nil, fmt.Errorf("cluster: k must be >= 1, got %d", k)
	}
	if k > n {
		k = n
	}

	out := make([][]int, n)
	for i := range vectors {
		type candidate struct {
			idx  int
			dist float64
		}
		candidates := make([]candidate, n)
		for j := range vectors {
			candidates[j] = candidate{idx: j, dist: cosineDistance(vectors[i], vectors[j])}
		}
		sort.Slice(candidates, func(a, b int) bool {
			if candidates[a].dist != candidates[b].dist {
				return candidates[a].dist < candidates[b].dist
			}
			return candidates[a].idx < candidates[b].idx
		})

		neighbors := make([]int, k)
		for j := 0; j < k; j++ {
			neighbors[j] = candidates[j].idx
		}
		out[i] = neighbors
	}
	return out, nil
}

func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
