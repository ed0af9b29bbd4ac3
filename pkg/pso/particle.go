package pso

import (
	"fmt"
	"math"

	"github.com/Siddhant-K-code/swarmcluster/pkg/clustering"
	"github.com/Siddhant-K-code/swarmcluster/pkg/types"
)

// Source supplies uniform random numbers in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Weights are the coefficients of the velocity update.
type Weights struct {
	Inertia   float64
	Cognitive float64
	Social    float64
}

// Particle is one candidate clustering: a set of centroids, their velocity
// and the best centroids this particle has held so far.
//
// A particle's state is only touched by the goroutine currently moving or
// evaluating it.
type Particle struct {
	id          int
	position    types.Position
	velocity    types.Velocity
	best        types.Position
	bestFitness float64
	fitness     float64
	weights     Weights
	rnd         Source
}

// NewParticle creates a particle at position with the given velocity.
// Both are copied. The personal best starts at position with fitness +Inf.
func NewParticle(id int, position types.Position, velocity types.Velocity, w Weights, rnd Source) (*Particle, error) {
	if position.K() == 0 {
		return nil, fmt.Errorf("particle %d: position has no centroids", id)
	}
	if position.Dimension() == 0 {
		return nil, fmt.Errorf("particle %d: centroids have no features", id)
	}
	if !position.SameShape(velocity) {
		return nil, fmt.Errorf("particle %d: velocity shape does not match position", id)
	}
	if rnd == nil {
		return nil, fmt.Errorf("particle %d: random source is nil", id)
	}

	return &Particle{
		id:          id,
		position:    position.Clone(),
		velocity:    velocity.Clone(),
		best:        position.Clone(),
		bestFitness: math.Inf(1),
		fitness:     math.Inf(1),
		weights:     w,
		rnd:         rnd,
	}, nil
}

// ID returns the particle's index in its swarm.
func (p *Particle) ID() int {
	return p.id
}

// Position returns a copy of the current centroids.
func (p *Particle) Position() types.Position {
	return p.position.Clone()
}

// Velocity returns a copy of the current velocity.
func (p *Particle) Velocity() types.Velocity {
	return p.velocity.Clone()
}

// Best returns a copy of the personal-best centroids and their fitness.
func (p *Particle) Best() (types.Position, float64) {
	return p.best.Clone(), p.bestFitness
}

// Fitness returns the fitness of the most recent evaluation.
func (p *Particle) Fitness() float64 {
	return p.fitness
}

// UpdatePosition advances every coordinate by its velocity. Positions are
// not clamped to the initial search box.
func (p *Particle) UpdatePosition() {
	for i, centroid := range p.position {
		v := p.velocity[i]
		for j := range centroid {
			centroid[j] += v[j]
		}
	}
}

// UpdateVelocity applies
//
//	v = w*v + c1*r1*(pbest - x) + c2*r2*(gbest - x)
//
// with r1 and r2 drawn fresh for every coordinate.
func (p *Particle) UpdateVelocity(globalBest types.Position) {
	w := p.weights
	for i, vel := range p.velocity {
		x := p.position[i]
		pb := p.best[i]
		gb := globalBest[i]
		for j := range vel {
			r1 := p.rnd.Float64()
			r2 := p.rnd.Float64()
			vel[j] = w.Inertia*vel[j] +
				w.Cognitive*r1*(pb[j]-x[j]) +
				w.Social*r2*(gb[j]-x[j])
		}
	}
}

// Move updates the position and then the velocity against globalBest.
func (p *Particle) Move(globalBest types.Position) {
	p.UpdatePosition()
	p.UpdateVelocity(globalBest)
}

// Evaluate scores the current position and replaces the personal best if
// the score is strictly better. Returns the current fitness.
func (p *Particle) Evaluate(ds types.Dataset, eval clustering.Evaluator) float64 {
	f := eval(ds, p.position).Fitness()
	p.fitness = f
	if clustering.Better(f, p.bestFitness) {
		p.best = p.position.Clone()
		p.bestFitness = f
	}
	return f
}

// BestClustering materialises the clustering of the personal-best centroids.
func (p *Particle) BestClustering(ds types.Dataset, eval clustering.Evaluator) *clustering.Clustering {
	return eval(ds, p.best)
}
