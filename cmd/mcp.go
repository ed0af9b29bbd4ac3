package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/Siddhant-K-code/swarmcluster/pkg/clustering"
	"github.com/Siddhant-K-code/swarmcluster/pkg/pso"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start swarmcluster as an MCP server",
	Long: `Starts swarmcluster as a Model Context Protocol (MCP) server so AI
assistants can cluster numeric data directly.

Transports:
  stdio (default) - For local desktop apps
  http            - For remote deployments

Tools exposed:
  cluster_points  - Cluster points with particle swarm optimization

Resources exposed:
  swarmcluster://config - Default hyperparameters

Example:
  swarmcluster mcp
  swarmcluster mcp --transport http --port 8081

Configure in an MCP client:
  {
    "mcpServers": {
      "swarmcluster": {
        "command": "swarmcluster",
        "args": ["mcp"]
      }
    }
  }`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindPSOFlags(cmd)
	},
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	// Transport settings
	mcpCmd.Flags().String("transport", "stdio", "Transport type: stdio or http")
	mcpCmd.Flags().Int("port", 8081, "HTTP server port (for http transport)")
	mcpCmd.Flags().String("host", "0.0.0.0", "HTTP server host (for http transport)")

	// Default clustering settings
	addPSOFlags(mcpCmd)
}

// MCPServer exposes the clusterer as MCP tools.
type MCPServer struct {
	defaults pso.Config
	logger   *slog.Logger
}

// NewMCPServer creates the MCP server and registers its tools and resources.
func NewMCPServer(defaults pso.Config, logger *slog.Logger) (*MCPServer, *server.MCPServer) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MCPServer{defaults: defaults, logger: logger}

	s := server.NewMCPServer(
		"swarmcluster",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	m.registerTools(s)
	m.registerResources(s)
	return m, s
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, s := NewMCPServer(cfg.PSO.ToPSO(), slog.Default())

	// Start server based on transport
	switch transport {
	case "stdio":
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}

	case "http":
		addr := fmt.Sprintf("%s:%d", host, port)
		fmt.Printf("swarmcluster MCP server starting on http://%s\n", addr)
		fmt.Printf("  Endpoint: http://%s/mcp\n", addr)
		fmt.Printf("  Health:   http://%s/health\n", addr)
		fmt.Println()

		mux := http.NewServeMux()

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok","server":"swarmcluster-mcp"}`))
		})

		// MCP endpoint with stateful sessions
		mcpHandler := server.NewStreamableHTTPServer(s, server.WithStateful(true))
		mux.Handle("/mcp", mcpHandler)

		httpServer := &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		if err := httpServer.ListenAndServe(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}

	default:
		return fmt.Errorf("unsupported transport: %s (use 'stdio' or 'http')", transport)
	}

	return nil
}

func (m *MCPServer) registerTools(s *server.MCPServer) {
	clusterTool := mcp.NewTool("cluster_points",
		mcp.WithDescription(`Partition numeric points into k clusters with particle swarm optimization.

INPUT: Array of points. Each point is either an array of numbers or an object
with 'features' (array of numbers) and optional 'id' and 'label'.
OUTPUT: Cluster centroids, member IDs, per-point assignments and quality metrics
(intra-cluster distance, inter-cluster distance, fitness; lower fitness is better).`),
		mcp.WithArray("points",
			mcp.Required(),
			mcp.Description("Points to cluster. All points must have the same number of features."),
		),
		mcp.WithNumber("clusters",
			mcp.Description(fmt.Sprintf("Number of clusters k (default: %d)", m.defaults.Clusters)),
		),
		mcp.WithNumber("particles",
			mcp.Description(fmt.Sprintf("Swarm size (default: %d)", m.defaults.Particles)),
		),
		mcp.WithNumber("max_iterations",
			mcp.Description(fmt.Sprintf("Iteration count (default: %d)", m.defaults.MaxIterations)),
		),
		mcp.WithNumber("seed",
			mcp.Description("Random seed for a reproducible result (default: random)"),
		),
		mcp.WithString("objective",
			mcp.Description("Fitness objective: quantization or ratio (default: quantization)"),
		),
	)

	s.AddTool(clusterTool, m.handleClusterPoints)
}

func (m *MCPServer) registerResources(s *server.MCPServer) {
	configResource := mcp.NewResource(
		"swarmcluster://config",
		"swarmcluster Configuration",
		mcp.WithResourceDescription("Default PSO hyperparameters used by cluster_points"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(configResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "swarmcluster://config",
				MIMEType: "application/json",
				Text:     m.configJSON(),
			},
		}, nil
	})
}

func (m *MCPServer) configJSON() string {
	d := m.defaults
	cfg := map[string]interface{}{
		"defaults": map[string]interface{}{
			"clusters":       d.Clusters,
			"particles":      d.Particles,
			"max_iterations": d.MaxIterations,
			"inertia":        d.Inertia,
			"cognitive":      d.Cognitive,
			"social":         d.Social,
			"objective":      d.Objective,
			"bounds":         d.Bounds,
		},
		"objectives": []string{string(clustering.ObjectiveQuantization), string(clustering.ObjectiveRatio)},
	}
	configJSON, _ := json.MarshalIndent(cfg, "", "  ")
	return string(configJSON)
}

// parsePointsArg accepts either [[1,2],[3,4]] or [{"features":[1,2]}].
func parsePointsArg(raw interface{}) ([]PointInput, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid points format: %w", err)
	}

	var objects []PointInput
	if err := json.Unmarshal(data, &objects); err == nil {
		return objects, nil
	}

	var arrays [][]float64
	if err := json.Unmarshal(data, &arrays); err != nil {
		return nil, fmt.Errorf("failed to parse points: %w", err)
	}
	inputs := make([]PointInput, len(arrays))
	for i, a := range arrays {
		inputs[i] = PointInput{Features: a}
	}
	return inputs, nil
}

// integerArg reads an optional whole-number argument. JSON numbers arrive
// as float64, so fractional values are rejected rather than truncated.
func integerArg(args map[string]interface{}, name string) (int64, bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false, fmt.Errorf("%s: must be a whole number, got %v", name, v)
		}
		if math.Abs(v) > 1<<53 {
			return 0, false, fmt.Errorf("%s: %v is out of range", name, v)
		}
		return int64(v), true, nil
	default:
		return 0, false, fmt.Errorf("%s: must be a number, got %T", name, raw)
	}
}

func (m *MCPServer) handleClusterPoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, ok := args["points"]
	if !ok {
		return mcp.NewToolResultError("points parameter is required"), nil
	}

	inputs, err := parsePointsArg(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(inputs) == 0 {
		return mcp.NewToolResultError("points array is empty"), nil
	}

	points, err := toPoints(inputs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid points: %v", err)), nil
	}

	// Get optional parameters. Anything given replaces the default and is
	// validated as is.
	cfg := m.defaults
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"clusters", &cfg.Clusters},
		{"particles", &cfg.Particles},
		{"max_iterations", &cfg.MaxIterations},
	} {
		v, ok, err := integerArg(args, p.name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if ok {
			*p.dst = int(v)
		}
	}
	seed, ok, err := integerArg(args, "seed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ok && seed != 0 {
		cfg.Seed = seed
	}
	if obj := request.GetString("objective", ""); obj != "" {
		cfg.Objective = clustering.Objective(obj)
	}
	if err := cfg.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	iterations := 0
	clusterer := pso.NewClusterer(cfg,
		pso.WithLogger(m.logger),
		pso.WithObserver(func(r pso.IterationReport) { iterations = r.Iteration }),
	)

	result, err := clusterer.Cluster(ctx, points)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("clustering failed: %v", err)), nil
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
		},
	}

	resultJSON, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}
