package pso

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/Siddhant-K-code/swarmcluster/pkg/clustering"
)

// Default swarm coefficients. They come from Clerc's constriction factor for
// c1 = c2 = 2.05: the inertia equals the constriction coefficient and the
// cognitive/social weights are 2.05 multiplied by it.
const (
	DefaultInertia   = 0.7298437881283576
	DefaultCognitive = 1.496179765663133
	DefaultSocial    = 1.496179765663133
)

// BoundsPolicy decides what happens when a feature's maximum is negative,
// which leaves the initial velocity bound sqrt(max) undefined.
type BoundsPolicy string

const (
	// BoundsClamp clamps the velocity bound of such a feature to zero.
	BoundsClamp BoundsPolicy = "clamp"

	// BoundsReject fails the run with ErrDegenerateBounds.
	BoundsReject BoundsPolicy = "reject"
)

// Convergence configures the optional early-stop predicate. With Patience
// zero (the default) the loop always runs MaxIterations iterations.
type Convergence struct {
	// Patience is the number of consecutive iterations the global best may
	// improve by less than Tolerance before the run stops.
	Patience int

	// Tolerance is the minimum fitness improvement that resets Patience.
	Tolerance float64
}

// Config holds the clusterer's hyperparameters.
type Config struct {
	// Clusters is the number of centroids k.
	Clusters int

	// Particles is the swarm size n.
	Particles int

	// MaxIterations is the iteration cap T.
	MaxIterations int

	// Inertia is w, the weight of the previous velocity.
	Inertia float64

	// Cognitive is c1, the pull toward a particle's personal best.
	Cognitive float64

	// Social is c2, the pull toward the swarm's global best.
	Social float64

	// Workers is the number of goroutines evaluating particles. Default: NumCPU
	Workers int

	// Seed for reproducible runs. If 0, uses current time.
	Seed int64

	// Objective selects the fitness function. Default: quantization
	Objective clustering.Objective

	// Bounds selects the negative-maximum policy. Default: clamp
	Bounds BoundsPolicy

	// Convergence enables early stopping. Disabled by default.
	Convergence Convergence
}

// DefaultConfig returns sensible defaults for a small swarm.
func DefaultConfig() Config {
	return Config{
		Clusters:      2,
		Particles:     20,
		MaxIterations: 100,
		Inertia:       DefaultInertia,
		Cognitive:     DefaultCognitive,
		Social:        DefaultSocial,
		Workers:       runtime.NumCPU(),
		Objective:     clustering.ObjectiveQuantization,
		Bounds:        BoundsClamp,
	}
}

// Validate checks the dataset-independent parts of the configuration.
func (c Config) Validate() error {
	return joinErrors(c.problems())
}

func (c Config) problems() []string {
	var errs []string

	if c.Clusters <= 0 {
		errs = append(errs, fmt.Sprintf("clusters: must be positive, got %d", c.Clusters))
	}
	if c.Particles <= 0 {
		errs = append(errs, fmt.Sprintf("particles: must be positive, got %d", c.Particles))
	}
	if c.MaxIterations <= 0 {
		errs = append(errs, fmt.Sprintf("max_iterations: must be positive, got %d", c.MaxIterations))
	}
	weights := []struct {
		name  string
		value float64
	}{
		{"inertia", c.Inertia},
		{"cognitive", c.Cognitive},
		{"social", c.Social},
	}
	for _, w := range weights {
		if math.IsNaN(w.value) || math.IsInf(w.value, 0) {
			errs = append(errs, fmt.Sprintf("%s: must be finite", w.name))
		}
	}
	if !c.Objective.Valid() {
		errs = append(errs, fmt.Sprintf("objective: unsupported objective %q (supported: quantization, ratio)", c.Objective))
	}
	switch c.Bounds {
	case "", BoundsClamp, BoundsReject:
	default:
		errs = append(errs, fmt.Sprintf("bounds: unsupported policy %q (supported: clamp, reject)", c.Bounds))
	}
	if c.Convergence.Patience < 0 {
		errs = append(errs, "convergence.patience: must be non-negative")
	}
	if c.Convergence.Tolerance < 0 {
		errs = append(errs, "convergence.tolerance: must be non-negative")
	}

	return errs
}

// validateFor checks the configuration against a dataset of the given size
// and dimensionality.
func (c Config) validateFor(observations, dimension int) error {
	errs := c.problems()

	if observations == 0 {
		errs = append(errs, "dataset: must contain at least one observation")
	} else if c.Clusters > observations {
		errs = append(errs, fmt.Sprintf("clusters: %d exceeds the number of observations %d", c.Clusters, observations))
	}
	if observations > 0 && dimension < 1 {
		errs = append(errs, "dataset: feature size must be at least 1")
	}

	return joinErrors(errs)
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w:\n  - %s", ErrInvalidConfiguration, strings.Join(errs, "\n  - "))
}
