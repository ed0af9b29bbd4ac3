// Package config provides configuration file support for swarmcluster.
// It handles loading, validation, and environment variable interpolation
// for .swarmcluster.yaml configuration files.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Siddhant-K-code/swarmcluster/pkg/clustering"
	"github.com/Siddhant-K-code/swarmcluster/pkg/pso"
	"github.com/Siddhant-K-code/swarmcluster/pkg/telemetry"
)

// Config represents the full swarmcluster configuration.
type Config struct {
	PSO       PSOConfig       `mapstructure:"pso"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// PSOConfig holds the clusterer's hyperparameters.
type PSOConfig struct {
	Clusters      int     `mapstructure:"clusters"`
	Particles     int     `mapstructure:"particles"`
	MaxIterations int     `mapstructure:"max_iterations"`
	Inertia       float64 `mapstructure:"inertia"`
	Cognitive     float64 `mapstructure:"cognitive"`
	Social        float64 `mapstructure:"social"`
	Workers       int     `mapstructure:"workers"`
	Seed          int64   `mapstructure:"seed"`
	Objective     string  `mapstructure:"objective"`
	Bounds        string  `mapstructure:"bounds"`
	Patience      int     `mapstructure:"patience"`
	Tolerance     float64 `mapstructure:"tolerance"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxPoints    int           `mapstructure:"max_points"`

	// MaxBodyBytes caps the size of a request body. 0 means no limit.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`

	// CacheSize bounds the number of seeded results kept in memory.
	// 0 disables result caching.
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Insecure   bool    `mapstructure:"insecure"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	d := pso.DefaultConfig()
	return &Config{
		PSO: PSOConfig{
			Clusters:      d.Clusters,
			Particles:     d.Particles,
			MaxIterations: d.MaxIterations,
			Inertia:       d.Inertia,
			Cognitive:     d.Cognitive,
			Social:        d.Social,
			Workers:       0,
			Objective:     string(d.Objective),
			Bounds:        string(d.Bounds),
		},
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			MaxPoints:    100000,
			MaxBodyBytes: 32 << 20,
			CacheSize:    256,
			CacheTTL:     time.Hour,
		},
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "otlp",
				Endpoint:   "localhost:4317",
				SampleRate: 1.0,
				Insecure:   true,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the given viper instance and returns
// a validated Config. Environment variables in string values are
// interpolated using ${VAR} syntax.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	interpolateConfig(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SetDefaults registers every configuration key with its default value so
// that environment variables can override keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("pso.clusters", d.PSO.Clusters)
	v.SetDefault("pso.particles", d.PSO.Particles)
	v.SetDefault("pso.max_iterations", d.PSO.MaxIterations)
	v.SetDefault("pso.inertia", d.PSO.Inertia)
	v.SetDefault("pso.cognitive", d.PSO.Cognitive)
	v.SetDefault("pso.social", d.PSO.Social)
	v.SetDefault("pso.workers", d.PSO.Workers)
	v.SetDefault("pso.seed", d.PSO.Seed)
	v.SetDefault("pso.objective", d.PSO.Objective)
	v.SetDefault("pso.bounds", d.PSO.Bounds)
	v.SetDefault("pso.patience", d.PSO.Patience)
	v.SetDefault("pso.tolerance", d.PSO.Tolerance)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_points", d.Server.MaxPoints)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.cache_size", d.Server.CacheSize)
	v.SetDefault("server.cache_ttl", d.Server.CacheTTL)

	v.SetDefault("telemetry.tracing.enabled", d.Telemetry.Tracing.Enabled)
	v.SetDefault("telemetry.tracing.exporter", d.Telemetry.Tracing.Exporter)
	v.SetDefault("telemetry.tracing.endpoint", d.Telemetry.Tracing.Endpoint)
	v.SetDefault("telemetry.tracing.sample_rate", d.Telemetry.Tracing.SampleRate)
	v.SetDefault("telemetry.tracing.insecure", d.Telemetry.Tracing.Insecure)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// LoadFromFile reads a specific config file and returns a validated Config.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Load(v)
}

// Validate checks the configuration for errors and returns a descriptive
// error if any field is invalid.
func Validate(cfg *Config) error {
	var errs []string

	// PSO validation
	if cfg.PSO.Clusters <= 0 {
		errs = append(errs, fmt.Sprintf("pso.clusters: must be positive, got %d", cfg.PSO.Clusters))
	}
	if cfg.PSO.Particles <= 0 {
		errs = append(errs, fmt.Sprintf("pso.particles: must be positive, got %d", cfg.PSO.Particles))
	}
	if cfg.PSO.MaxIterations <= 0 {
		errs = append(errs, fmt.Sprintf("pso.max_iterations: must be positive, got %d", cfg.PSO.MaxIterations))
	}
	if cfg.PSO.Workers < 0 {
		errs = append(errs, "pso.workers: must be non-negative")
	}
	if !clustering.Objective(cfg.PSO.Objective).Valid() {
		errs = append(errs, fmt.Sprintf("pso.objective: unsupported objective %q (supported: quantization, ratio)", cfg.PSO.Objective))
	}
	validBounds := map[string]bool{"clamp": true, "reject": true, "": true}
	if !validBounds[cfg.PSO.Bounds] {
		errs = append(errs, fmt.Sprintf("pso.bounds: unsupported policy %q (supported: clamp, reject)", cfg.PSO.Bounds))
	}
	if cfg.PSO.Patience < 0 {
		errs = append(errs, "pso.patience: must be non-negative")
	}
	if cfg.PSO.Tolerance < 0 {
		errs = append(errs, "pso.tolerance: must be non-negative")
	}

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: must be between 0 and 65535, got %d", cfg.Server.Port))
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout: must be non-negative")
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout: must be non-negative")
	}
	if cfg.Server.MaxPoints < 0 {
		errs = append(errs, "server.max_points: must be non-negative")
	}
	if cfg.Server.MaxBodyBytes < 0 {
		errs = append(errs, "server.max_body_bytes: must be non-negative")
	}
	if cfg.Server.CacheSize < 0 {
		errs = append(errs, "server.cache_size: must be non-negative")
	}
	if cfg.Server.CacheTTL < 0 {
		errs = append(errs, "server.cache_ttl: must be non-negative")
	}

	// Telemetry validation
	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true, "": true}
	if !validExporters[cfg.Telemetry.Tracing.Exporter] {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.exporter: unsupported exporter %q (supported: otlp, stdout, none)", cfg.Telemetry.Tracing.Exporter))
	}
	if cfg.Telemetry.Tracing.SampleRate < 0 || cfg.Telemetry.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.sample_rate: must be between 0 and 1, got %f", cfg.Telemetry.Tracing.SampleRate))
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level: unsupported level %q (supported: debug, info, warn, error)", cfg.Log.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true, "": true}
	if !validFormats[cfg.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format: unsupported format %q (supported: text, json)", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ToPSO converts the file representation into a pso.Config.
func (c PSOConfig) ToPSO() pso.Config {
	return pso.Config{
		Clusters:      c.Clusters,
		Particles:     c.Particles,
		MaxIterations: c.MaxIterations,
		Inertia:       c.Inertia,
		Cognitive:     c.Cognitive,
		Social:        c.Social,
		Workers:       c.Workers,
		Seed:          c.Seed,
		Objective:     clustering.Objective(c.Objective),
		Bounds:        pso.BoundsPolicy(c.Bounds),
		Convergence: pso.Convergence{
			Patience:  c.Patience,
			Tolerance: c.Tolerance,
		},
	}
}

// ToTelemetry converts the tracing section into a telemetry.Config.
func (c TracingConfig) ToTelemetry() telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.Enabled = c.Enabled
	tc.Exporter = c.Exporter
	tc.Endpoint = c.Endpoint
	tc.SampleRate = c.SampleRate
	tc.Insecure = c.Insecure
	return tc
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnv replaces ${VAR} and ${VAR:-default} patterns in a string
// with the corresponding environment variable values.
func InterpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		if defaultVal != "" {
			return defaultVal
		}
		return match
	})
}

// interpolateConfig applies environment variable interpolation to all
// string fields in the config.
func interpolateConfig(cfg *Config) {
	cfg.PSO.Objective = InterpolateEnv(cfg.PSO.Objective)
	cfg.PSO.Bounds = InterpolateEnv(cfg.PSO.Bounds)
	cfg.Server.Host = InterpolateEnv(cfg.Server.Host)
	cfg.Telemetry.Tracing.Exporter = InterpolateEnv(cfg.Telemetry.Tracing.Exporter)
	cfg.Telemetry.Tracing.Endpoint = InterpolateEnv(cfg.Telemetry.Tracing.Endpoint)
	cfg.Log.Level = InterpolateEnv(cfg.Log.Level)
	cfg.Log.Format = InterpolateEnv(cfg.Log.Format)
}

// GenerateTemplate returns a YAML template string with all available
// configuration options and their defaults, suitable for writing to
// a .swarmcluster.yaml file.
func GenerateTemplate() string {
	return `# swarmcluster configuration
# See: https://github.com/Siddhant-K-code/swarmcluster

pso:
  clusters: 2
  particles: 20
  max_iterations: 100
  inertia: 0.7298437881283576
  cognitive: 1.496179765663133
  social: 1.496179765663133
  workers: 0            # 0 = number of CPUs
  seed: 0               # 0 = time-based
  objective: quantization  # quantization or ratio
  bounds: clamp         # clamp or reject
  patience: 0           # 0 = always run max_iterations
  tolerance: 0

server:
  port: 8080
  host: 0.0.0.0
  read_timeout: 30s
  write_timeout: 5m
  max_points: 100000
  max_body_bytes: 33554432  # 32 MiB, 0 = unlimited
  cache_size: 256       # seeded results kept in memory, 0 = disabled
  cache_ttl: 1h

telemetry:
  tracing:
    enabled: false
    exporter: otlp       # otlp, stdout, or none
    endpoint: localhost:4317
    sample_rate: 1.0     # 0.0 to 1.0
    insecure: true

log:
  level: info            # debug, info, warn, error
  format: text           # text or json
`
}
