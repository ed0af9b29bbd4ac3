package types

import (
	"fmt"
	"math"
)

// Datum is a single observation: a fixed-length vector of real-valued features.
type Datum struct {
	// ID identifies the observation in reports (optional).
	ID string

	// Features is the feature vector. Treated as read-only once the datum
	// is part of a Dataset.
	Features []float64

	// Label is an optional ground-truth label. It is carried through to
	// reports and never used by clustering.
	Label string
}

// NewDatum creates a Datum that owns a copy of features.
func NewDatum(id string, features []float64) Datum {
	f := make([]float64, len(features))
	copy(f, features)
	return Datum{ID: id, Features: f}
}

// Dimension returns the number of features.
func (d Datum) Dimension() int {
	return len(d.Features)
}

// Dataset is a read-only collection of observations sharing one
// feature dimensionality.
type Dataset interface {
	// FeatureSize returns the dimensionality shared by every Datum.
	FeatureSize() int

	// Len returns the number of observations.
	Len() int

	// ForEach calls fn for every observation in order.
	ForEach(fn func(i int, d Datum))
}

// Points is a slice-backed Dataset.
type Points []Datum

// FeatureSize returns the dimensionality of the first observation (0 if empty).
func (p Points) FeatureSize() int {
	if len(p) == 0 {
		return 0
	}
	return p[0].Dimension()
}

// Len returns the number of observations.
func (p Points) Len() int {
	return len(p)
}

// ForEach calls fn for every observation in order.
func (p Points) ForEach(fn func(i int, d Datum)) {
	for i := range p {
		fn(i, p[i])
	}
}

// Validate checks that every observation has the same, non-zero
// dimensionality and only finite feature values.
func (p Points) Validate() error {
	if len(p) == 0 {
		return nil
	}
	dim := p.FeatureSize()
	if dim == 0 {
		return fmt.Errorf("observation 0 has no features")
	}
	for i, d := range p {
		if d.Dimension() != dim {
			return fmt.Errorf("observation %d has %d features, expected %d", i, d.Dimension(), dim)
		}
		for j, v := range d.Features {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("observation %d feature %d is not finite", i, j)
			}
		}
	}
	return nil
}

// FeatureBounds computes the per-feature minimum and maximum across the
// dataset in a single scan. Both slices are nil for an empty dataset.
func FeatureBounds(ds Dataset) (min, max []float64) {
	if ds.Len() == 0 {
		return nil, nil
	}

	dim := ds.FeatureSize()
	min = make([]float64, dim)
	max = make([]float64, dim)
	for i := 0; i < dim; i++ {
		min[i] = math.Inf(1)
		max[i] = math.Inf(-1)
	}

	ds.ForEach(func(_ int, d Datum) {
		for i := 0; i < dim; i++ {
			v := d.Features[i]
			if v < min[i] {
				min[i] = v
			}
			if v > max[i] {
				max[i] = v
			}
		}
	})

	return min, max
}
