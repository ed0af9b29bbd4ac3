package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Siddhant-K-code/swarmcluster/pkg/cache"
	"github.com/Siddhant-K-code/swarmcluster/pkg/clustering"
	"github.com/Siddhant-K-code/swarmcluster/pkg/config"
	"github.com/Siddhant-K-code/swarmcluster/pkg/metrics"
	"github.com/Siddhant-K-code/swarmcluster/pkg/pso"
	"github.com/Siddhant-K-code/swarmcluster/pkg/sse"
	"github.com/Siddhant-K-code/swarmcluster/pkg/telemetry"
	"github.com/Siddhant-K-code/swarmcluster/pkg/types"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the swarmcluster HTTP API server",
	Long: `Starts an HTTP API server that clusters points sent in the request body.

Example:
  swarmcluster api --port 8080

The server exposes:
  POST /v1/cluster          - Cluster points, JSON response
  POST /v1/cluster/stream   - Cluster points, SSE progress events
  GET  /health              - Health check
  GET  /metrics             - Prometheus metrics`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
		_ = viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
		return bindPSOFlags(cmd)
	},
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().IntP("port", "p", 8080, "HTTP server port")
	apiCmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	addPSOFlags(apiCmd)
}

// ClusterRequest is the JSON request body for /v1/cluster. Omitted
// hyperparameters fall back to the server's configuration.
type ClusterRequest struct {
	Points        []PointInput `json:"points"`
	Clusters      *int         `json:"clusters,omitempty"`
	Particles     *int         `json:"particles,omitempty"`
	MaxIterations *int         `json:"max_iterations,omitempty"`
	Inertia       *float64     `json:"inertia,omitempty"`
	Cognitive     *float64     `json:"cognitive,omitempty"`
	Social        *float64     `json:"social,omitempty"`
	Seed          int64        `json:"seed,omitempty"`
	Objective     string       `json:"objective,omitempty"`
}

// ClusterResponse is the JSON response for /v1/cluster.
type ClusterResponse struct {
	Result ClusterResult `json:"result"`
	Stats  RunStats      `json:"stats"`
}

// APIServer holds the API server state.
type APIServer struct {
	defaults     pso.Config
	maxPoints    int
	maxBodyBytes int64
	results      cache.Cache
	metrics      *metrics.Metrics
	tracer       *telemetry.Provider
	logger       *slog.Logger
}

// NewAPIServer creates a server whose runs start from cfg.
func NewAPIServer(cfg *config.Config, m *metrics.Metrics, tracer *telemetry.Provider, logger *slog.Logger) *APIServer {
	if tracer == nil {
		tracer = telemetry.Noop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &APIServer{
		defaults:     cfg.PSO.ToPSO(),
		maxPoints:    cfg.Server.MaxPoints,
		maxBodyBytes: cfg.Server.MaxBodyBytes,
		metrics:      m,
		tracer:       tracer,
		logger:       logger,
	}
	if cfg.Server.CacheSize > 0 {
		s.results = cache.NewMemoryCache(cache.Config{
			MaxSize:    int64(cfg.Server.CacheSize),
			DefaultTTL: cfg.Server.CacheTTL,
		})
	}
	return s
}

// Close releases the result cache.
func (s *APIServer) Close() error {
	if s.results == nil {
		return nil
	}
	return s.results.Close()
}

// Handler returns the server's routes wrapped in CORS handling.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/cluster", s.metrics.Middleware("/v1/cluster", s.handleCluster))
	mux.HandleFunc("/v1/cluster/stream", s.metrics.Middleware("/v1/cluster/stream", s.handleClusterStream))
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/", s.handleRoot)
	return corsMiddleware(mux)
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tracer, err := initTelemetry(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	server := NewAPIServer(cfg, metrics.New(), tracer, slog.Default())
	defer func() { _ = server.Close() }()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Fprintln(os.Stderr, "\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Server shutdown error: %v\n", err)
		}
		if err := tracer.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Telemetry shutdown error: %v\n", err)
		}
		close(done)
	}()

	// Start server
	fmt.Printf("swarmcluster API server starting on %s\n", addr)
	fmt.Printf("  Defaults: k=%d particles=%d iterations=%d objective=%s\n",
		server.defaults.Clusters, server.defaults.Particles, server.defaults.MaxIterations, server.defaults.Objective)
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Printf("  POST http://%s/v1/cluster\n", addr)
	fmt.Printf("  POST http://%s/v1/cluster/stream\n", addr)
	fmt.Printf("  GET  http://%s/health\n", addr)
	fmt.Printf("  GET  http://%s/metrics\n", addr)
	fmt.Println()

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	fmt.Println("Server stopped")
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"name":    "swarmcluster API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"cluster": "POST /v1/cluster",
			"stream":  "POST /v1/cluster/stream",
			"health":  "GET /health",
			"metrics": "GET /metrics",
		},
	})
}

// prepare decodes and validates a request. On failure it returns the HTTP
// status to answer with.
func (s *APIServer) prepare(w http.ResponseWriter, r *http.Request) (types.Points, pso.Config, int, error) {
	body := r.Body
	if s.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}

	var req ClusterRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pso.Config{}, http.StatusRequestEntityTooLarge,
				fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, pso.Config{}, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err)
	}

	if len(req.Points) == 0 {
		return nil, pso.Config{}, http.StatusBadRequest, errors.New("at least one point is required")
	}
	if s.maxPoints > 0 && len(req.Points) > s.maxPoints {
		return nil, pso.Config{}, http.StatusRequestEntityTooLarge,
			fmt.Errorf("too many points: %d (limit %d)", len(req.Points), s.maxPoints)
	}

	points, err := toPoints(req.Points)
	if err != nil {
		return nil, pso.Config{}, http.StatusBadRequest, err
	}

	cfg := s.defaults
	if req.Clusters != nil {
		cfg.Clusters = *req.Clusters
	}
	if req.Particles != nil {
		cfg.Particles = *req.Particles
	}
	if req.MaxIterations != nil {
		cfg.MaxIterations = *req.MaxIterations
	}
	if req.Inertia != nil {
		cfg.Inertia = *req.Inertia
	}
	if req.Cognitive != nil {
		cfg.Cognitive = *req.Cognitive
	}
	if req.Social != nil {
		cfg.Social = *req.Social
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	if req.Objective != "" {
		cfg.Objective = clustering.Objective(req.Objective)
	}
	if err := cfg.Validate(); err != nil {
		return nil, pso.Config{}, http.StatusBadRequest, err
	}

	return points, cfg, http.StatusOK, nil
}

// statusFor maps a clustering error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pso.ErrInvalidConfiguration), errors.Is(err, pso.ErrDegenerateBounds):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// runFingerprint lists every parameter that affects a run's result.
// Workers is left out since it never changes the numbers.
func runFingerprint(cfg pso.Config) string {
	return fmt.Sprintf("k=%d n=%d t=%d w=%v c1=%v c2=%v seed=%d objective=%s bounds=%s patience=%d tolerance=%v",
		cfg.Clusters, cfg.Particles, cfg.MaxIterations, cfg.Inertia, cfg.Cognitive, cfg.Social,
		cfg.Seed, cfg.Objective, cfg.Bounds, cfg.Convergence.Patience, cfg.Convergence.Tolerance)
}

// cacheKey returns the result cache key for a run, or "" when the run is
// not reproducible or caching is disabled.
func (s *APIServer) cacheKey(points types.Points, cfg pso.Config) string {
	if s.results == nil || cfg.Seed == 0 {
		return ""
	}
	return cache.KeyForRun("cluster", points, runFingerprint(cfg))
}

func (s *APIServer) newClusterer(cfg pso.Config, observer pso.Observer) *pso.Clusterer {
	return pso.NewClusterer(cfg,
		pso.WithLogger(s.logger),
		pso.WithObserver(observer),
		pso.WithRecorder(s.metrics),
		pso.WithTelemetry(s.tracer),
	)
}

func (s *APIServer) handleCluster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := s.tracer.StartRequest(r.Context(), "/v1/cluster")
	defer span.End()

	points, cfg, status, err := s.prepare(w, r)
	if err != nil {
		telemetry.RecordError(span, err)
		http.Error(w, err.Error(), status)
		return
	}

	key := s.cacheKey(points, cfg)
	if key != "" {
		if body, err := s.results.Get(ctx, key); err == nil {
			s.metrics.RecordCacheLookup(true)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			_, _ = w.Write(body)
			return
		}
		s.metrics.RecordCacheLookup(false)
	}

	iterations := 0
	clusterer := s.newClusterer(cfg, func(rep pso.IterationReport) { iterations = rep.Iteration })

	start := time.Now()
	result, err := clusterer.Cluster(ctx, points)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("clustering failed", "error", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	resp := ClusterResponse{
		Result: buildResult(result, points),
		Stats: RunStats{
			Observations: len(points),
			Dimension:    points.FeatureSize(),
			Clusters:     cfg.Clusters,
			Particles:    cfg.Particles,
			Iterations:   iterations,
			Seed:         clusterer.Seed(),
			LatencyMs:    elapsedMs(start),
		},
	}

	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if key != "" {
		if err := s.results.Set(ctx, key, body, 0); err != nil {
			s.logger.Debug("result not cached", "error", err)
		}
		w.Header().Set("X-Cache", "miss")
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *APIServer) handleClusterStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := s.tracer.StartRequest(r.Context(), "/v1/cluster/stream")
	defer span.End()

	// Validation errors are reported before the stream starts.
	points, cfg, status, err := s.prepare(w, r)
	if err != nil {
		telemetry.RecordError(span, err)
		http.Error(w, err.Error(), status)
		return
	}

	stream := sse.NewWriter(w)
	if stream == nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	timer := sse.NewRunTimer()
	iterations := 0
	observer := func(rep pso.IterationReport) {
		iterations = rep.Iteration
		evt := sse.IterationEvent{
			Iteration:     rep.Iteration,
			MaxIterations: rep.MaxIterations,
			BestFitness:   sse.Finite(rep.BestFitness),
		}
		if rep.Best != nil {
			evt.Intra = sse.Finite(rep.Best.IntraClusterDistance())
			evt.Inter = sse.Finite(rep.Best.InterClusterDistance())
			evt.EmptyClusters = len(rep.Best.EmptyClusters())
		}
		if err := stream.SendIteration(evt); err != nil {
			s.logger.Debug("stream write failed", "error", err)
		}
	}

	clusterer := s.newClusterer(cfg, observer)
	result, err := clusterer.Cluster(ctx, points)
	if err != nil {
		telemetry.RecordError(span, err)
		_ = stream.SendError(sse.PhaseIterating, err.Error())
		return
	}

	stats := RunStats{
		Observations: len(points),
		Dimension:    points.FeatureSize(),
		Clusters:     cfg.Clusters,
		Particles:    cfg.Particles,
		Iterations:   iterations,
		Seed:         clusterer.Seed(),
		LatencyMs:    timer.ElapsedMs(),
	}
	if err := stream.SendComplete(buildResult(result, points), stats); err != nil {
		_ = stream.SendError(sse.PhaseFinalizing, err.Error())
	}
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
