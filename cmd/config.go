package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Siddhant-K-code/swarmcluster/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage swarmcluster configuration",
	Long:  `Commands for creating, validating and inspecting .swarmcluster.yaml configuration files.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a .swarmcluster.yaml template",
	Long: `Creates a .swarmcluster.yaml configuration file with all available options
and their default values.

Example:
  swarmcluster config init
  swarmcluster config init --output /etc/swarmcluster/.swarmcluster.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a .swarmcluster.yaml configuration file",
	Long: `Reads and validates a configuration file, reporting any errors.

Example:
  swarmcluster config validate
  swarmcluster config validate .swarmcluster.yaml
  swarmcluster config validate --config /etc/swarmcluster/.swarmcluster.yaml`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Prints the configuration after merging defaults, the config file and
SWARMCLUSTER_* environment variables.`,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().StringP("output", "o", ".swarmcluster.yaml", "output file path")
	configInitCmd.Flags().Bool("stdout", false, "print to stdout instead of file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	toStdout, _ := cmd.Flags().GetBool("stdout")
	output, _ := cmd.Flags().GetString("output")

	template := config.GenerateTemplate()

	if toStdout {
		fmt.Print(template)
		return nil
	}

	// Check if file already exists
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("file %s already exists (use --stdout to print to stdout)", output)
	}

	if err := os.WriteFile(output, []byte(template), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Created %s\n", output)
	return nil
}

// findConfigFile returns the first existing default config location.
func findConfigFile() string {
	candidates := []string{
		".swarmcluster.yaml",
		"swarmcluster.yaml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".swarmcluster.yaml"),
			filepath.Join(home, "swarmcluster.yaml"),
		)
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	var cfgPath string

	switch {
	case len(args) > 0:
		cfgPath = args[0]
	case cfgFile != "":
		cfgPath = cfgFile
	default:
		cfgPath = findConfigFile()
	}

	if cfgPath == "" {
		return fmt.Errorf("no config file found (try: swarmcluster config validate <file>)")
	}

	if _, err := config.LoadFromFile(cfgPath); err != nil {
		return fmt.Errorf("validation failed for %s:\n%w", cfgPath, err)
	}

	fmt.Fprintf(os.Stderr, "Config file %s is valid\n", cfgPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p := cfg.PSO
	fmt.Println("PSO:")
	fmt.Printf("  Clusters:       %d\n", p.Clusters)
	fmt.Printf("  Particles:      %d\n", p.Particles)
	fmt.Printf("  Max iterations: %d\n", p.MaxIterations)
	fmt.Printf("  Inertia:        %g\n", p.Inertia)
	fmt.Printf("  Cognitive:      %g\n", p.Cognitive)
	fmt.Printf("  Social:         %g\n", p.Social)
	fmt.Printf("  Workers:        %d\n", p.Workers)
	fmt.Printf("  Seed:           %d\n", p.Seed)
	fmt.Printf("  Objective:      %s\n", p.Objective)
	fmt.Printf("  Bounds:         %s\n", p.Bounds)
	fmt.Printf("  Patience:       %d\n", p.Patience)
	fmt.Printf("  Tolerance:      %g\n", p.Tolerance)
	fmt.Println()
	fmt.Println("Server:")
	fmt.Printf("  Address:        %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Max points:     %d\n", cfg.Server.MaxPoints)
	fmt.Printf("  Max body bytes: %d\n", cfg.Server.MaxBodyBytes)
	fmt.Printf("  Result cache:   %d entries, ttl %v\n", cfg.Server.CacheSize, cfg.Server.CacheTTL)
	fmt.Println()
	fmt.Println("Telemetry:")
	fmt.Printf("  Tracing:        %v (%s)\n", cfg.Telemetry.Tracing.Enabled, cfg.Telemetry.Tracing.Exporter)
	fmt.Println()
	fmt.Println("Log:")
	fmt.Printf("  Level:          %s\n", cfg.Log.Level)
	fmt.Printf("  Format:         %s\n", cfg.Log.Format)
	return nil
}
