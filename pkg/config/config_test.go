package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Siddhant-K-code/swarmcluster/pkg/clustering"
	"github.com/Siddhant-K-code/swarmcluster/pkg/pso"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".swarmcluster.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes != 32<<20 {
		t.Errorf("expected default body limit 32 MiB, got %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.PSO.Clusters != 2 {
		t.Errorf("expected default clusters 2, got %d", cfg.PSO.Clusters)
	}
	if cfg.PSO.Inertia != pso.DefaultInertia {
		t.Errorf("expected default inertia %v, got %v", pso.DefaultInertia, cfg.PSO.Inertia)
	}
	if cfg.PSO.Objective != "quantization" {
		t.Errorf("expected default objective quantization, got %s", cfg.PSO.Objective)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Log.Level)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"cache size", func(c *Config) { c.Server.CacheSize = -1 }, "server.cache_size"},
		{"body limit", func(c *Config) { c.Server.MaxBodyBytes = -1 }, "server.max_body_bytes"},
		{"clusters", func(c *Config) { c.PSO.Clusters = 0 }, "pso.clusters"},
		{"particles", func(c *Config) { c.PSO.Particles = -3 }, "pso.particles"},
		{"iterations", func(c *Config) { c.PSO.MaxIterations = 0 }, "pso.max_iterations"},
		{"workers", func(c *Config) { c.PSO.Workers = -1 }, "pso.workers"},
		{"objective", func(c *Config) { c.PSO.Objective = "silhouette" }, "pso.objective"},
		{"bounds", func(c *Config) { c.PSO.Bounds = "wrap" }, "pso.bounds"},
		{"patience", func(c *Config) { c.PSO.Patience = -1 }, "pso.patience"},
		{"exporter", func(c *Config) { c.Telemetry.Tracing.Exporter = "zipkin" }, "telemetry.tracing.exporter"},
		{"sample rate", func(c *Config) { c.Telemetry.Tracing.SampleRate = 1.5 }, "telemetry.tracing.sample_rate"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = -1
	cfg.PSO.Clusters = 0
	cfg.Log.Format = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}
	if got := strings.Count(err.Error(), "\n  - "); got != 3 {
		t.Errorf("expected 3 listed errors, got %d: %v", got, err)
	}
}

func TestInterpolateEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "hello")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
		{"${NONEXISTENT_VAR:-fallback}", "fallback"},
		{"${NONEXISTENT_VAR}", "${NONEXISTENT_VAR}"},
		{"no-vars-here", "no-vars-here"},
		{"${TEST_VAR:-default}", "hello"},
	}

	for _, tt := range tests {
		result := InterpolateEnv(tt.input)
		if result != tt.expected {
			t.Errorf("InterpolateEnv(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
pso:
  clusters: 4
  particles: 30
  max_iterations: 250
  inertia: 0.5
  cognitive: 1.5
  social: 1.7
  seed: 99
  objective: ratio
  bounds: reject
  patience: 10
  tolerance: 0.001

server:
  port: 9090
  host: 127.0.0.1

log:
  level: debug
  format: json
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.PSO.Clusters != 4 || cfg.PSO.Particles != 30 || cfg.PSO.MaxIterations != 250 {
		t.Errorf("unexpected pso sizes: %+v", cfg.PSO)
	}
	if cfg.PSO.Social != 1.7 {
		t.Errorf("expected social 1.7, got %f", cfg.PSO.Social)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected log format json, got %s", cfg.Log.Format)
	}

	pc := cfg.PSO.ToPSO()
	if pc.Objective != clustering.ObjectiveRatio {
		t.Errorf("expected ratio objective, got %s", pc.Objective)
	}
	if pc.Bounds != pso.BoundsReject {
		t.Errorf("expected reject bounds, got %s", pc.Bounds)
	}
	if pc.Seed != 99 {
		t.Errorf("expected seed 99, got %d", pc.Seed)
	}
	if pc.Convergence.Patience != 10 || pc.Convergence.Tolerance != 0.001 {
		t.Errorf("unexpected convergence: %+v", pc.Convergence)
	}
	if err := pc.Validate(); err != nil {
		t.Errorf("converted config should be valid: %v", err)
	}
}

func TestLoadFromFile_WithEnvInterpolation(t *testing.T) {
	t.Setenv("TEST_OBJECTIVE", "ratio")

	path := writeConfig(t, `
pso:
  objective: ${TEST_OBJECTIVE}
server:
  host: ${TEST_HOST:-localhost}
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.PSO.Objective != "ratio" {
		t.Errorf("expected interpolated objective, got %s", cfg.PSO.Objective)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host, got %s", cfg.Server.Host)
	}
}

func TestLoadFromFile_InvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/.swarmcluster.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{invalid yaml")

	_, err := LoadFromFile(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromFile_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 99999
pso:
  clusters: -2
`)

	_, err := LoadFromFile(path)
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadFromFile_DefaultsPreserved(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 3000
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.PSO.Particles != 20 {
		t.Errorf("expected default particles 20, got %d", cfg.PSO.Particles)
	}
	if cfg.PSO.Cognitive != pso.DefaultCognitive {
		t.Errorf("expected default cognitive, got %f", cfg.PSO.Cognitive)
	}
	if cfg.Server.CacheTTL != time.Hour {
		t.Errorf("expected default cache ttl 1h, got %v", cfg.Server.CacheTTL)
	}
}

func TestToTelemetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telemetry.Tracing.Enabled = true
	cfg.Telemetry.Tracing.Exporter = "stdout"

	tc := cfg.Telemetry.Tracing.ToTelemetry()
	if !tc.Enabled || tc.Exporter != "stdout" {
		t.Errorf("unexpected telemetry config: %+v", tc)
	}
	if tc.ServiceName != "swarmcluster" {
		t.Errorf("expected service name swarmcluster, got %s", tc.ServiceName)
	}
}

func TestGenerateTemplate(t *testing.T) {
	tmpl := GenerateTemplate()

	required := []string{
		"pso:", "clusters:", "particles:", "max_iterations:",
		"inertia:", "cognitive:", "social:", "objective:", "bounds:",
		"server:", "port:", "host:", "max_body_bytes:", "cache_size:", "cache_ttl:",
		"telemetry:", "tracing:",
		"log:", "level:", "format:",
	}

	for _, s := range required {
		if !strings.Contains(tmpl, s) {
			t.Errorf("template missing %q", s)
		}
	}
}

func TestGenerateTemplate_Loads(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, GenerateTemplate()))
	if err != nil {
		t.Fatalf("template should load: %v", err)
	}
	if cfg.PSO.Inertia != pso.DefaultInertia {
		t.Errorf("template inertia %v differs from default", cfg.PSO.Inertia)
	}
}

func TestSetDefaults_EnvOverride(t *testing.T) {
	t.Setenv("SCTEST_PSO_CLUSTERS", "5")
	t.Setenv("SCTEST_LOG_FORMAT", "json")

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("SCTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PSO.Clusters != 5 {
		t.Errorf("expected clusters 5 from env, got %d", cfg.PSO.Clusters)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected log format json from env, got %s", cfg.Log.Format)
	}
	if cfg.PSO.Particles != 20 {
		t.Errorf("expected default particles 20, got %d", cfg.PSO.Particles)
	}
	if cfg.Server.WriteTimeout != DefaultConfig().Server.WriteTimeout {
		t.Errorf("unexpected write timeout %v", cfg.Server.WriteTimeout)
	}
}
