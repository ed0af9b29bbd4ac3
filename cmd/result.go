package cmd

import (
	"fmt"
	"time"

	"github.com/Siddhant-K-code/swarmcluster/pkg/clustering"
	"github.com/Siddhant-K-code/swarmcluster/pkg/sse"
	"github.com/Siddhant-K-code/swarmcluster/pkg/types"
)

// ClusterResult is the JSON form of a clustering, shared by the CLI, the
// HTTP API and the MCP tool. Non-finite metrics are omitted.
type ClusterResult struct {
	Clusters      []ClusterSummary `json:"clusters"`
	Assignments   []int            `json:"assignments"`
	Fitness       *float64         `json:"fitness,omitempty"`
	IntraDistance *float64         `json:"intra_distance,omitempty"`
	InterDistance *float64         `json:"inter_distance,omitempty"`
	Objective     string           `json:"objective"`
	EmptyClusters []int            `json:"empty_clusters"`
}

// ClusterSummary describes one cluster by its centroid and member IDs.
type ClusterSummary struct {
	ID       int       `json:"id"`
	Centroid []float64 `json:"centroid"`
	Size     int       `json:"size"`
	Members  []string  `json:"members"`
}

// RunStats describes how a result was produced.
type RunStats struct {
	Observations int   `json:"observations"`
	Dimension    int   `json:"dimension"`
	Clusters     int   `json:"clusters"`
	Particles    int   `json:"particles"`
	Iterations   int   `json:"iterations"`
	Seed         int64 `json:"seed"`
	LatencyMs    int64 `json:"latency_ms"`
}

func buildResult(c *clustering.Clustering, points types.Points) ClusterResult {
	clusters := c.Clusters()
	summaries := make([]ClusterSummary, len(clusters))
	for i, cl := range clusters {
		members := make([]string, len(cl.Members))
		for j, idx := range cl.Members {
			members[j] = points[idx].ID
		}
		summaries[i] = ClusterSummary{
			ID:       cl.ID,
			Centroid: cl.Centroid,
			Size:     cl.Size,
			Members:  members,
		}
	}

	empty := c.EmptyClusters()
	if empty == nil {
		empty = []int{}
	}

	return ClusterResult{
		Clusters:      summaries,
		Assignments:   c.Assignments,
		Fitness:       sse.Finite(c.Fitness()),
		IntraDistance: sse.Finite(c.IntraClusterDistance()),
		InterDistance: sse.Finite(c.InterClusterDistance()),
		Objective:     string(c.Objective()),
		EmptyClusters: empty,
	}
}

func printClusterReport(c *clustering.Clustering, points types.Points, stats RunStats, verbose bool) {
	fmt.Println()
	fmt.Println("=== Particle Swarm Optimization Clustering ===")
	fmt.Println()
	fmt.Printf("Observations:            %d\n", stats.Observations)
	fmt.Printf("Features:                %d\n", stats.Dimension)
	fmt.Printf("Clusters:                %d\n", stats.Clusters)
	fmt.Printf("Particles:               %d\n", stats.Particles)
	fmt.Printf("Iterations:              %d\n", stats.Iterations)
	fmt.Printf("Seed:                    %d\n", stats.Seed)
	fmt.Println()
	fmt.Printf("Objective:               %s\n", c.Objective())
	fmt.Printf("Fitness:                 %.6g\n", c.Fitness())
	fmt.Printf("Intra-cluster distance:  %.6g\n", c.IntraClusterDistance())
	fmt.Printf("Inter-cluster distance:  %.6g\n", c.InterClusterDistance())
	fmt.Printf("Processing time:         %dms\n", stats.LatencyMs)
	fmt.Println()

	for _, cl := range c.Clusters() {
		fmt.Printf("Cluster %d: %d points, centroid %v\n", cl.ID, cl.Size, formatCentroid(cl.Centroid))
		if verbose {
			for _, idx := range cl.Members {
				p := points[idx]
				if p.Label != "" {
					fmt.Printf("  %s (%s)\n", p.ID, p.Label)
				} else {
					fmt.Printf("  %s\n", p.ID)
				}
			}
		}
	}

	if empty := c.EmptyClusters(); len(empty) > 0 {
		fmt.Println()
		fmt.Printf("Warning: %d empty cluster(s): %v. Try fewer clusters or more iterations.\n", len(empty), empty)
	}
}

func formatCentroid(v []float64) string {
	s := "["
	for i, x := range v {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%.4g", x)
	}
	return s + "]"
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
