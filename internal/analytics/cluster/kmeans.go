package cluster

import (
	"math"
	"math/rand"

	"edupulse/internal/errors"
)

// maxKMeansIterations caps the assign/update loop.
const maxKMeansIterations = 100

// kmeans partitions n points of dimension dim, stored row-major in a
// contiguous buffer, into k clusters. Returns per-point assignments and the
// final centroid buffer (k rows). The loop works entirely on the two
// buffers so no per-iteration allocation is needed.
func kmeans(points []float64, n, dim, k int, rng *rand.Rand) ([]int, []float64, error) {
	if n < k {
		return nil, nil, errors.InsufficientData("k-means needs at least as many points as clusters")
	}
	if len(points) != n*dim {
		return nil, nil, errors.InvalidInput("point buffer does not match n*dim")
	}

	// Seed centroids from k distinct points, sampled without replacement.
	centroids := make([]float64, k*dim)
	for c, idx := range rng.Perm(n)[:k] {
		copy(centroids[c*dim:(c+1)*dim], points[idx*dim:(idx+1)*dim])
	}

	assignments := make([]int, n)
	counts := make([]int, k)
	sums := make([]float64, k*dim)

	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false

		// Assignment: nearest centroid by Euclidean distance, first-found
		// minimum wins ties.
		for i := 0; i < n; i++ {
			best, bestDist := 0, math.Inf(1)
			for c := 0; c < k; c++ {
				dist := 0.0
				for d := 0; d < dim; d++ {
					diff := points[i*dim+d] - centroids[c*dim+d]
					dist += diff * diff
				}
				if dist < bestDist {
					best, bestDist = c, dist
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed && iter > 0 {
			break
		}

		// Update: mean of assigned points; empty centroids keep position.
		for c := range counts {
			counts[c] = 0
		}
		for i := range sums {
			sums[i] = 0
		}
		for i := 0; i < n; i++ {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c*dim+d] += points[i*dim+d]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c*dim+d] = sums[c*dim+d] / float64(counts[c])
			}
		}
	}

	return assignments, centroids, nil
}
