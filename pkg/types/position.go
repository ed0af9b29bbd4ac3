package types

// Position is an ordered set of k centroid vectors. It is the decision
// variable a particle moves through.
type Position [][]float64

// Velocity has the same shape as Position: one rate-of-change vector per centroid.
type Velocity = Position

// NewPosition allocates a zeroed k x dim position.
func NewPosition(k, dim int) Position {
	p := make(Position, k)
	for i := range p {
		p[i] = make([]float64, dim)
	}
	return p
}

// K returns the number of centroids.
func (p Position) K() int {
	return len(p)
}

// Dimension returns the feature dimensionality of the centroids.
func (p Position) Dimension() int {
	if len(p) == 0 {
		return 0
	}
	return len(p[0])
}

// Clone creates a deep copy of the position.
func (p Position) Clone() Position {
	if p == nil {
		return nil
	}
	c := make(Position, len(p))
	for i, v := range p {
		c[i] = make([]float64, len(v))
		copy(c[i], v)
	}
	return c
}

// SameShape reports whether p and o have the same k and dimensionality.
func (p Position) SameShape(o Position) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if len(p[i]) != len(o[i]) {
			return false
		}
	}
	return true
}
