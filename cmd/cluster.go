package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Siddhant-K-code/swarmcluster/pkg/config"
	"github.com/Siddhant-K-code/swarmcluster/pkg/pso"
	"github.com/Siddhant-K-code/swarmcluster/pkg/telemetry"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster a JSONL or CSV dataset with particle swarm optimization",
	Long: `Runs PSO clustering on a dataset file and reports the best clustering found.

Input formats:
  .jsonl  one object per line: {"id": "a", "features": [1.0, 2.0], "label": "x"}
  .csv    numeric columns; an optional header may name "id" and "label" columns

Example:
  swarmcluster cluster --file points.jsonl --clusters 3
  swarmcluster cluster --file iris.csv -k 3 --particles 30 --iterations 200 --seed 42 --json

Hyperparameters default to the values in .swarmcluster.yaml, then to the
constriction-factor defaults (w=0.7298, c1=c2=1.4962).`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindPSOFlags(cmd)
	},
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().StringP("file", "f", "", "path to .jsonl or .csv file containing points (required)")
	clusterCmd.Flags().Bool("json", false, "print the result as JSON")
	clusterCmd.Flags().Bool("no-progress", false, "disable the progress bar")
	addPSOFlags(clusterCmd)

	_ = clusterCmd.MarkFlagRequired("file")
}

// addPSOFlags registers the hyperparameter flags shared by every command
// that runs the clusterer.
func addPSOFlags(cmd *cobra.Command) {
	d := config.DefaultConfig().PSO
	cmd.Flags().IntP("clusters", "k", d.Clusters, "number of clusters")
	cmd.Flags().IntP("particles", "n", d.Particles, "swarm size")
	cmd.Flags().IntP("iterations", "T", d.MaxIterations, "maximum number of iterations")
	cmd.Flags().Float64("inertia", d.Inertia, "inertia weight w")
	cmd.Flags().Float64("cognitive", d.Cognitive, "cognitive weight c1")
	cmd.Flags().Float64("social", d.Social, "social weight c2")
	cmd.Flags().IntP("workers", "w", d.Workers, "number of parallel workers (0 = NumCPU)")
	cmd.Flags().Int64("seed", d.Seed, "random seed for reproducibility (0 = random)")
	cmd.Flags().String("objective", d.Objective, "fitness objective: quantization or ratio")
	cmd.Flags().String("bounds", d.Bounds, "negative feature maximum policy: clamp or reject")
	cmd.Flags().Int("patience", d.Patience, "stop after this many iterations without improvement (0 = never)")
	cmd.Flags().Float64("tolerance", d.Tolerance, "minimum improvement that resets patience")
}

// bindPSOFlags binds the hyperparameter flags of the running command to
// their config keys. Binding happens at run time because several commands
// share the same keys.
func bindPSOFlags(cmd *cobra.Command) error {
	keys := map[string]string{
		"clusters":   "pso.clusters",
		"particles":  "pso.particles",
		"iterations": "pso.max_iterations",
		"inertia":    "pso.inertia",
		"cognitive":  "pso.cognitive",
		"social":     "pso.social",
		"workers":    "pso.workers",
		"seed":       "pso.seed",
		"objective":  "pso.objective",
		"bounds":     "pso.bounds",
		"patience":   "pso.patience",
		"tolerance":  "pso.tolerance",
	}
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// initTelemetry starts tracing when enabled in cfg and returns a no-op
// provider otherwise.
func initTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Provider, error) {
	if !cfg.Telemetry.Tracing.Enabled {
		return telemetry.Noop(), nil
	}
	return telemetry.Init(ctx, cfg.Telemetry.Tracing.ToTelemetry())
}

func runCluster(cmd *cobra.Command, args []string) error {
	filePath, _ := cmd.Flags().GetString("file")
	asJSON, _ := cmd.Flags().GetBool("json")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	verbose := viper.GetBool("verbose")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, stopping after the current iteration...")
			cancel()
		case <-ctx.Done():
		}
	}()

	tracer, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	slog.Debug("loading points", "file", filePath)
	loadStart := time.Now()
	points, err := loadPointsFromFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to load points: %w", err)
	}

	if len(points) == 0 {
		fmt.Println("No points found in file.")
		return nil
	}
	slog.Debug("loaded points",
		"count", len(points),
		"dimension", points.FeatureSize(),
		"duration", time.Since(loadStart))

	psoCfg := cfg.PSO.ToPSO()

	var bar *progressbar.ProgressBar
	if !noProgress {
		bar = progressbar.NewOptions(
			psoCfg.MaxIterations,
			progressbar.OptionSetDescription("Optimizing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("iterations"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	iterations := 0
	observer := func(r pso.IterationReport) {
		iterations = r.Iteration
		if bar != nil && r.Iteration > 0 {
			bar.Describe(fmt.Sprintf("Optimizing (best %.4g)", r.BestFitness))
			_ = bar.Set(r.Iteration)
		}
	}

	clusterer := pso.NewClusterer(psoCfg,
		pso.WithLogger(slog.Default()),
		pso.WithObserver(observer),
		pso.WithTelemetry(tracer),
	)

	start := time.Now()
	result, err := clusterer.Cluster(ctx, points)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}

	stats := RunStats{
		Observations: len(points),
		Dimension:    points.FeatureSize(),
		Clusters:     psoCfg.Clusters,
		Particles:    psoCfg.Particles,
		Iterations:   iterations,
		Seed:         clusterer.Seed(),
		LatencyMs:    elapsedMs(start),
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Result ClusterResult `json:"result"`
			Stats  RunStats      `json:"stats"`
		}{buildResult(result, points), stats})
	}

	printClusterReport(result, points, stats, verbose)
	return nil
}
