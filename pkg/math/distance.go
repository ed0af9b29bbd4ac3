// Package math holds the vector kernels used by clustering.
package math

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Distance computes the Euclidean (L2) distance between two vectors.
// Returns +Inf for mismatched or empty input so the pair is never chosen
// as nearest.
func Distance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2)
}

// Nearest returns the index of the centroid closest to vec and its
// distance. Centroids at a non-finite distance are skipped; if none is
// finite, index 0 and +Inf are returned.
func Nearest(vec []float64, centroids [][]float64) (int, float64) {
	minIdx := 0
	minDist := math.Inf(1)

	for i, c := range centroids {
		d := Distance(vec, c)
		if math.IsNaN(d) {
			continue
		}
		if d < minDist {
			minDist = d
			minIdx = i
		}
	}

	return minIdx, minDist
}
