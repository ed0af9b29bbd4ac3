// Package pso clusters a dataset with particle swarm optimisation. Every
// particle is a candidate set of k centroids; the swarm moves the particles
// toward their own and the swarm's best clustering for a fixed number of
// iterations.
package pso

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/Siddhant-K-code/swarmcluster/pkg/clustering"
	"github.com/Siddhant-K-code/swarmcluster/pkg/parallel"
	"github.com/Siddhant-K-code/swarmcluster/pkg/telemetry"
	"github.com/Siddhant-K-code/swarmcluster/pkg/types"
)

// IterationReport describes the global best at the end of an iteration.
// Iteration 0 is the initial evaluation.
type IterationReport struct {
	Iteration     int
	MaxIterations int
	BestFitness   float64
	Particle      int

	// Best is the clustering of the global best. It is only materialised
	// when an observer is installed or debug logging is enabled.
	Best *clustering.Clustering
}

// Observer is called on the clustering goroutine once per iteration.
type Observer func(IterationReport)

// Recorder receives run statistics. *metrics.Metrics implements it.
type Recorder interface {
	RecordIteration(bestFitness float64, evaluations int)
	RecordEmptyClusters(n int)
	RecordRun(status string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordIteration(float64, int)    {}
func (nopRecorder) RecordEmptyClusters(int)         {}
func (nopRecorder) RecordRun(string, time.Duration) {}

// Option configures a Clusterer.
type Option func(*Clusterer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Clusterer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver installs a per-iteration callback.
func WithObserver(o Observer) Option {
	return func(c *Clusterer) {
		c.observer = o
	}
}

// WithRecorder sets where run statistics are recorded.
func WithRecorder(r Recorder) Option {
	return func(c *Clusterer) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTelemetry enables tracing spans for runs and iterations.
func WithTelemetry(p *telemetry.Provider) Option {
	return func(c *Clusterer) {
		if p != nil {
			c.tracer = p
		}
	}
}

// WithEvaluator replaces the objective-derived evaluator.
func WithEvaluator(e clustering.Evaluator) Option {
	return func(c *Clusterer) {
		if e != nil {
			c.evaluate = e
		}
	}
}

// Clusterer runs PSO clustering with a fixed configuration. It is safe to
// call Cluster from several goroutines; each call owns its swarm.
type Clusterer struct {
	cfg      Config
	seed     int64
	exec     parallel.Executor
	evaluate clustering.Evaluator
	logger   *slog.Logger
	observer Observer
	recorder Recorder
	tracer   *telemetry.Provider
}

var _ clustering.Clusterer = (*Clusterer)(nil)

// NewClusterer creates a clusterer. Zero-valued Objective and Bounds fall
// back to their defaults; a zero Seed is replaced by a time-based one.
func NewClusterer(cfg Config, opts ...Option) *Clusterer {
	if cfg.Objective == "" {
		cfg.Objective = clustering.ObjectiveQuantization
	}
	if cfg.Bounds == "" {
		cfg.Bounds = BoundsClamp
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	c := &Clusterer{
		cfg:      cfg,
		seed:     seed,
		exec:     parallel.NewExecutor(cfg.Workers),
		evaluate: clustering.NewEvaluator(cfg.Objective),
		logger:   slog.Default(),
		recorder: nopRecorder{},
		tracer:   telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the clusterer's configuration.
func (c *Clusterer) Config() Config {
	return c.cfg
}

// Seed returns the seed every run starts from.
func (c *Clusterer) Seed() int64 {
	return c.seed
}

func (c *Clusterer) String() string {
	return "Particle Swarm Optimization"
}

// Initialize validates the configuration against ds and returns a seeded
// swarm. Positions are drawn uniformly from each feature's [min, max] and
// velocities from [0, sqrt(max)].
func (c *Clusterer) Initialize(ctx context.Context, ds types.Dataset) (*Swarm, error) {
	dim := ds.FeatureSize()
	if err := c.cfg.validateFor(ds.Len(), dim); err != nil {
		return nil, err
	}

	_, span := c.tracer.StartSeed(ctx, c.cfg.Particles, dim)
	defer span.End()

	lo, hi := types.FeatureBounds(ds)
	vmax := make([]float64, dim)
	for j, m := range hi {
		if m >= 0 {
			vmax[j] = math.Sqrt(m)
			continue
		}
		if c.cfg.Bounds == BoundsReject {
			err := fmt.Errorf("feature %d has maximum %g: %w", j, m, ErrDegenerateBounds)
			telemetry.RecordError(span, err)
			return nil, err
		}
		c.logger.Warn("negative feature maximum, clamping velocity bound to zero",
			"feature", j, "max", m)
	}

	rng := rand.New(rand.NewSource(c.seed))
	w := Weights{Inertia: c.cfg.Inertia, Cognitive: c.cfg.Cognitive, Social: c.cfg.Social}
	k := c.cfg.Clusters

	s := NewSwarm(c.cfg.Particles, c.evaluate, c.exec)
	for i := 0; i < c.cfg.Particles; i++ {
		pos := types.NewPosition(k, dim)
		vel := types.NewPosition(k, dim)
		for ci := 0; ci < k; ci++ {
			for j := 0; j < dim; j++ {
				x := lo[j] + rng.Float64()*(hi[j]-lo[j])
				pos[ci][j] = math.Min(math.Max(x, lo[j]), hi[j])
				vel[ci][j] = rng.Float64() * vmax[j]
			}
		}

		p, err := NewParticle(i, pos, vel, w, rand.New(rand.NewSource(rng.Int63())))
		if err != nil {
			return nil, err
		}
		if err := s.Add(p); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Cluster runs the optimisation on ds and returns the clustering of the
// best centroids found.
func (c *Clusterer) Cluster(ctx context.Context, ds types.Dataset) (*clustering.Clustering, error) {
	start := time.Now()
	ctx, span := c.tracer.StartRun(ctx, ds.Len(), c.cfg.Clusters, c.cfg.Particles, c.cfg.MaxIterations)
	defer span.End()

	result, iterations, converged, err := c.run(ctx, ds)
	if err != nil {
		telemetry.RecordError(span, err)
		c.recorder.RecordRun("error", time.Since(start))
		return nil, err
	}

	if empty := result.EmptyClusters(); len(empty) > 0 {
		c.logger.Debug("final clustering has empty clusters", "clusters", empty)
		c.recorder.RecordEmptyClusters(len(empty))
	}

	status := "ok"
	if converged {
		status = "converged"
	}
	latency := time.Since(start)
	c.recorder.RecordRun(status, latency)
	telemetry.RecordResult(span, result.Fitness(), result.IntraClusterDistance(), result.InterClusterDistance(), iterations, latency)

	c.logger.Debug("clustering finished",
		"status", status,
		"iterations", iterations,
		"fitness", result.Fitness(),
		"duration", latency)

	return result, nil
}

func (c *Clusterer) run(ctx context.Context, ds types.Dataset) (*clustering.Clustering, int, bool, error) {
	s, err := c.Initialize(ctx, ds)
	if err != nil {
		return nil, 0, false, err
	}

	if err := c.evaluateSwarm(ctx, s, ds); err != nil {
		return nil, 0, false, err
	}
	c.report(ctx, s, ds, 0)

	stall := newStallDetector(c.cfg.Convergence)
	stall.observe(s.best.Fitness)

	iterations := 0
	converged := false
	for t := 1; t <= c.cfg.MaxIterations; t++ {
		if err := ctx.Err(); err != nil {
			return nil, iterations, false, err
		}

		iterCtx, span := c.tracer.StartIteration(ctx, t)
		if err := s.Move(iterCtx); err != nil {
			telemetry.RecordError(span, err)
			span.End()
			return nil, iterations, false, err
		}
		if err := c.evaluateSwarm(iterCtx, s, ds); err != nil {
			telemetry.RecordError(span, err)
			span.End()
			return nil, iterations, false, err
		}
		telemetry.RecordBest(span, s.best.Fitness)
		span.End()

		iterations = t
		c.report(ctx, s, ds, t)

		if stall.observe(s.best.Fitness) {
			converged = true
			break
		}
	}

	if err := s.Finish(converged); err != nil {
		return nil, iterations, false, err
	}
	result, err := s.BestClustering(ds)
	if err != nil {
		return nil, iterations, false, err
	}
	return result, iterations, converged, nil
}

func (c *Clusterer) evaluateSwarm(ctx context.Context, s *Swarm, ds types.Dataset) error {
	ctx, span := c.tracer.StartEvaluation(ctx, s.Len())
	defer span.End()

	if err := s.Evaluate(ctx, ds); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	c.recorder.RecordIteration(s.best.Fitness, s.Len())
	return nil
}

func (c *Clusterer) report(ctx context.Context, s *Swarm, ds types.Dataset, iteration int) {
	debug := c.logger.Enabled(ctx, slog.LevelDebug)
	if c.observer == nil && !debug {
		return
	}

	best := c.evaluate(ds, s.best.Position)
	if debug {
		c.logger.Debug("iteration",
			"iteration", iteration,
			"best_fitness", best.Fitness(),
			"intra", best.IntraClusterDistance(),
			"inter", best.InterClusterDistance(),
			"particle", s.best.Particle,
			"clustering", best.String())
	}
	if c.observer != nil {
		c.observer(IterationReport{
			Iteration:     iteration,
			MaxIterations: c.cfg.MaxIterations,
			BestFitness:   s.best.Fitness,
			Particle:      s.best.Particle,
			Best:          best,
		})
	}
}

// stallDetector reports convergence once the global best has improved by
// less than the tolerance for patience consecutive iterations.
type stallDetector struct {
	patience  int
	tolerance float64
	last      float64
	stalled   int
	primed    bool
}

func newStallDetector(cfg Convergence) *stallDetector {
	return &stallDetector{patience: cfg.Patience, tolerance: cfg.Tolerance}
}

func (d *stallDetector) observe(fitness float64) bool {
	if d.patience <= 0 {
		return false
	}
	if !d.primed {
		d.last = fitness
		d.primed = true
		return false
	}

	improved := false
	switch {
	case math.IsInf(d.last, 1) && !math.IsInf(fitness, 1):
		improved = true
	case d.last-fitness > d.tolerance:
		improved = true
	}

	// The global best is monotone, so the delta is never negative.
	d.last = fitness
	if improved {
		d.stalled = 0
		return false
	}
	d.stalled++
	return d.stalled >= d.patience
}
