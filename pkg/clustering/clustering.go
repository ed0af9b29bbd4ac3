// Package clustering materialises a cluster assignment from a set of
// centroids and scores it.
package clustering

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	vmath "github.com/Siddhant-K-code/swarmcluster/pkg/math"
	"github.com/Siddhant-K-code/swarmcluster/pkg/types"
)

// Clusterer is implemented by every strategy that can cluster a dataset.
type Clusterer interface {
	Cluster(ctx context.Context, ds types.Dataset) (*Clustering, error)
}

// Evaluator builds a Clustering for a dataset and a set of centroids.
type Evaluator func(ds types.Dataset, centroids types.Position) *Clustering

// Objective selects how the fitness score is derived. Every objective is
// lower-is-better.
type Objective string

const (
	// ObjectiveQuantization scores a clustering by its average intra-cluster
	// distance (the quantization error).
	ObjectiveQuantization Objective = "quantization"

	// ObjectiveRatio scores a clustering by intra / inter cluster distance.
	ObjectiveRatio Objective = "ratio"
)

// Valid reports whether o names a known objective. The empty string is
// accepted and means ObjectiveQuantization.
func (o Objective) Valid() bool {
	switch o {
	case "", ObjectiveQuantization, ObjectiveRatio:
		return true
	}
	return false
}

// NewEvaluator returns an Evaluator that scores with the given objective.
func NewEvaluator(objective Objective) Evaluator {
	return func(ds types.Dataset, centroids types.Position) *Clustering {
		return New(ds, centroids, objective)
	}
}

// Clustering maps every observation to its nearest centroid and caches the
// quality metrics of that assignment.
type Clustering struct {
	// Centroids are the cluster centres this clustering was built from.
	Centroids types.Position

	// Assignments holds the cluster index of each observation, in dataset order.
	Assignments []int

	objective Objective
	sizes     []int
	intra     float64
	inter     float64
	fitness   float64
	empty     []int
}

// New assigns every observation in ds to its nearest centroid (Euclidean)
// and computes fitness, intra- and inter-cluster distances.
//
// Clusters that attract no observation are excluded from both distance
// averages and reported by EmptyClusters. A clustering whose metrics are
// not finite gets a fitness of +Inf.
func New(ds types.Dataset, centroids types.Position, objective Objective) *Clustering {
	if objective == "" {
		objective = ObjectiveQuantization
	}

	k := centroids.K()
	c := &Clustering{
		Centroids:   centroids.Clone(),
		Assignments: make([]int, ds.Len()),
		objective:   objective,
		sizes:       make([]int, k),
	}

	// Per-cluster member distances to their centroid.
	dists := make([][]float64, k)
	ds.ForEach(func(i int, d types.Datum) {
		idx, dist := vmath.Nearest(d.Features, c.Centroids)
		c.Assignments[i] = idx
		if k > 0 {
			c.sizes[idx]++
			dists[idx] = append(dists[idx], dist)
		}
	})

	var clusterMeans []float64
	populated := make([]int, 0, k)
	for i := 0; i < k; i++ {
		if c.sizes[i] == 0 {
			c.empty = append(c.empty, i)
			continue
		}
		populated = append(populated, i)
		clusterMeans = append(clusterMeans, stat.Mean(dists[i], nil))
	}

	if len(clusterMeans) > 0 {
		c.intra = stat.Mean(clusterMeans, nil)
	}
	c.inter = meanPairwiseDistance(c.Centroids, populated)
	c.fitness = c.score(k, len(populated))

	return c
}

// meanPairwiseDistance averages the distance between every pair of the
// listed centroids. Returns 0 for fewer than two centroids.
func meanPairwiseDistance(centroids types.Position, idx []int) float64 {
	var sum float64
	pairs := 0
	for a := 0; a < len(idx); a++ {
		for b := a + 1; b < len(idx); b++ {
			sum += vmath.Distance(centroids[idx[a]], centroids[idx[b]])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

func (c *Clustering) score(k, populated int) float64 {
	var f float64
	switch c.objective {
	case ObjectiveRatio:
		switch {
		case k == 1:
			f = c.intra
		case populated < 2 || c.inter == 0:
			f = math.Inf(1)
		default:
			f = c.intra / c.inter
		}
	default:
		f = c.intra
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return math.Inf(1)
	}
	return f
}

// Fitness returns the clustering quality score. Lower is better.
func (c *Clustering) Fitness() float64 {
	return c.fitness
}

// IntraClusterDistance returns the average, over populated clusters, of the
// mean distance between members and their centroid.
func (c *Clustering) IntraClusterDistance() float64 {
	return c.intra
}

// InterClusterDistance returns the mean pairwise distance between the
// centroids of populated clusters.
func (c *Clustering) InterClusterDistance() float64 {
	return c.inter
}

// Objective returns the objective the fitness was computed with.
func (c *Clustering) Objective() Objective {
	return c.objective
}

// K returns the number of centroids.
func (c *Clustering) K() int {
	return c.Centroids.K()
}

// Sizes returns the number of observations assigned to each cluster.
func (c *Clustering) Sizes() []int {
	out := make([]int, len(c.sizes))
	copy(out, c.sizes)
	return out
}

// EmptyClusters returns the indices of clusters with no members.
func (c *Clustering) EmptyClusters() []int {
	out := make([]int, len(c.empty))
	copy(out, c.empty)
	return out
}

// Cluster is one cluster of a Clustering.
type Cluster struct {
	ID       int       `json:"id"`
	Centroid []float64 `json:"centroid"`
	Members  []int     `json:"members"`
	Size     int       `json:"size"`
}

// Clusters returns every cluster with its centroid and member indices,
// including empty ones.
func (c *Clustering) Clusters() []Cluster {
	out := make([]Cluster, len(c.Centroids))
	for i, centroid := range c.Centroids {
		cp := make([]float64, len(centroid))
		copy(cp, centroid)
		out[i] = Cluster{ID: i, Centroid: cp, Members: []int{}, Size: c.sizes[i]}
	}
	for idx, cl := range c.Assignments {
		if cl < len(out) {
			out[cl].Members = append(out[cl].Members, idx)
		}
	}
	return out
}

// Better reports whether fitness a is strictly better than b. NaN is never
// better than anything.
func Better(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}

// String renders a short human-readable summary.
func (c *Clustering) String() string {
	var b strings.Builder
	for i, centroid := range c.Centroids {
		fmt.Fprintf(&b, "cluster %d: size=%d centroid=%s\n", i, c.sizes[i], formatVector(centroid))
	}
	fmt.Fprintf(&b, "fitness=%.6g intra=%.6g inter=%.6g", c.fitness, c.intra, c.inter)
	return b.String()
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4g", x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
