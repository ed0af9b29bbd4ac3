package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Siddhant-K-code/swarmcluster/pkg/config"
	"github.com/Siddhant-K-code/swarmcluster/pkg/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swarmcluster",
	Short: "swarmcluster - Particle swarm optimization for data clustering",
	Long: `swarmcluster partitions numeric datasets into k clusters with particle
swarm optimization. Every particle is a candidate set of k centroids; the
swarm moves toward the best clustering any particle has found.

Features:
  - Deterministic runs with a fixed seed
  - Parallel particle evaluation
  - Quantization or intra/inter ratio objective
  - CLI, HTTP API with streaming progress, and MCP server

Environment Variables:
  SWARMCLUSTER_*      Override any config key (e.g. SWARMCLUSTER_PSO_CLUSTERS=4)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.swarmcluster.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output (debug logging)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	// Bind to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".swarmcluster")
	}

	config.SetDefaults(viper.GetViper())

	// Read environment variables
	viper.SetEnvPrefix("SWARMCLUSTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file if it exists
	readErr := viper.ReadInConfig()

	setupLogging()

	if readErr == nil {
		slog.Debug("using config file", "path", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		slog.Warn("failed to read config file", "path", cfgFile, "error", readErr)
	}
}

// setupLogging installs the default slog logger on stderr.
func setupLogging() {
	level := viper.GetString("log.level")
	if viper.GetBool("verbose") {
		level = "debug"
	}

	logger, err := logging.New(level, viper.GetString("log.format"), os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	slog.SetDefault(logger)
}

// loadConfig resolves the effective configuration from defaults, the config
// file, environment variables and bound flags.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}
