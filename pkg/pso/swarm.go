package pso

import (
	"context"
	"fmt"
	"math"

	"github.com/Siddhant-K-code/swarmcluster/pkg/clustering"
	"github.com/Siddhant-K-code/swarmcluster/pkg/parallel"
	"github.com/Siddhant-K-code/swarmcluster/pkg/types"
)

// State is the lifecycle stage of a swarm within one clustering run.
type State int

const (
	Uninitialized State = iota
	Seeded
	Evaluated
	Iterating
	Converged
	Exhausted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Seeded:
		return "seeded"
	case Evaluated:
		return "evaluated"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Converged || s == Exhausted
}

// Best is a snapshot of the swarm's global best. The Position is never
// mutated after the snapshot is taken, so it can be shared by every
// particle during a move phase.
type Best struct {
	Position types.Position
	Fitness  float64
	Particle int
}

// Swarm is a fixed-size population of particles plus the best position any
// of them has found.
type Swarm struct {
	capacity  int
	particles []*Particle
	best      Best
	state     State
	exec      parallel.Executor
	evaluate  clustering.Evaluator
}

// NewSwarm creates an empty swarm that will hold exactly capacity particles.
func NewSwarm(capacity int, eval clustering.Evaluator, exec parallel.Executor) *Swarm {
	return &Swarm{
		capacity:  capacity,
		particles: make([]*Particle, 0, capacity),
		best:      Best{Fitness: math.Inf(1), Particle: -1},
		exec:      exec,
		evaluate:  eval,
	}
}

// Add inserts a particle. Only allowed before the first evaluation and
// while the swarm is below capacity.
func (s *Swarm) Add(p *Particle) error {
	if s.state != Uninitialized && s.state != Seeded {
		return fmt.Errorf("%w: cannot add particle in state %s", ErrInvalidState, s.state)
	}
	if len(s.particles) >= s.capacity {
		return fmt.Errorf("%w: swarm is full (%d particles)", ErrInvalidState, s.capacity)
	}
	s.particles = append(s.particles, p)
	s.state = Seeded
	return nil
}

// Len returns the number of particles.
func (s *Swarm) Len() int {
	return len(s.particles)
}

// Particles returns the particles in insertion order.
func (s *Swarm) Particles() []*Particle {
	out := make([]*Particle, len(s.particles))
	copy(out, s.particles)
	return out
}

// State returns the current lifecycle state.
func (s *Swarm) State() State {
	return s.state
}

// GlobalBest returns a copy of the global-best snapshot.
func (s *Swarm) GlobalBest() Best {
	b := s.best
	b.Position = b.Position.Clone()
	return b
}

// Evaluate scores every particle in parallel, then updates the global best
// from the particles' personal bests. The update runs only after every
// particle has finished, on the calling goroutine.
func (s *Swarm) Evaluate(ctx context.Context, ds types.Dataset) error {
	switch s.state {
	case Seeded, Evaluated, Iterating:
	default:
		return fmt.Errorf("%w: cannot evaluate in state %s", ErrInvalidState, s.state)
	}

	err := s.exec.ForEach(ctx, len(s.particles), func(i int) error {
		s.particles[i].Evaluate(ds, s.evaluate)
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range s.particles {
		if s.best.Position == nil || clustering.Better(p.bestFitness, s.best.Fitness) {
			s.best = Best{
				Position: p.best.Clone(),
				Fitness:  p.bestFitness,
				Particle: p.id,
			}
		}
	}

	if s.state == Seeded {
		s.state = Evaluated
	}
	return nil
}

// Move advances every particle in parallel against the current global
// best. The snapshot is read once, before any particle moves.
func (s *Swarm) Move(ctx context.Context) error {
	if s.state != Evaluated && s.state != Iterating {
		return fmt.Errorf("%w: cannot move in state %s", ErrInvalidState, s.state)
	}

	snapshot := s.best.Position
	s.state = Iterating

	return s.exec.ForEach(ctx, len(s.particles), func(i int) error {
		s.particles[i].Move(snapshot)
		return nil
	})
}

// Finish moves the swarm into a terminal state.
func (s *Swarm) Finish(converged bool) error {
	if s.state != Evaluated && s.state != Iterating {
		return fmt.Errorf("%w: cannot finish in state %s", ErrInvalidState, s.state)
	}
	if converged {
		s.state = Converged
	} else {
		s.state = Exhausted
	}
	return nil
}

// BestClustering materialises the clustering of the global best.
func (s *Swarm) BestClustering(ds types.Dataset) (*clustering.Clustering, error) {
	if s.best.Position == nil {
		return nil, fmt.Errorf("%w: swarm has not been evaluated", ErrInvalidState)
	}
	return s.evaluate(ds, s.best.Position), nil
}
