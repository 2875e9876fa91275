package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "primecheck.yaml"

// Config holds all primecheck configuration.
type Config struct {
	// Numeric engine
	Engine EngineConfig `yaml:"engine"`

	// HTTP service
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Query tracing
	Tracing TracingConfig `yaml:"tracing"`

	// Interactive UI
	UI UIConfig `yaml:"ui"`
}

// EngineConfig bounds the parser and tunes the primality stages.
type EngineConfig struct {
	// Largest n for which n! is evaluated.
	FactorialCeiling uint64 `yaml:"factorial_ceiling"`

	// Trial division uses the primes below this limit.
	TrialLimit uint32 `yaml:"trial_limit"`

	// Values that pass trial division and have at most this many bits are prime.
	SmallBits int `yaml:"small_bits"`

	// Random Miller-Rabin bases tried after base 2.
	MillerRabinRounds int `yaml:"miller_rabin_rounds"`

	// Seed for the per-query base generator.
	Seed uint64 `yaml:"seed"`

	// Longest accepted input in bytes (0 = unlimited).
	MaxInputLength int `yaml:"max_input_length"`

	// Stages running longer than this log a warning ("" = never).
	SlowStageWarning string `yaml:"slow_stage_warning"`
}

// ServerConfig configures `primecheck serve`.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	MaxConnections  int    `yaml:"max_connections"` // 0 = unlimited
	QueryTimeout    string `yaml:"query_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	WatchConfig     bool   `yaml:"watch_config"` // reload engine settings when the file changes
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			FactorialCeiling:  1000,
			TrialLimit:        1000,
			SmallBits:         16,
			MillerRabinRounds: 0,
			Seed:              0,
			MaxInputLength:    1 << 20,
			SlowStageWarning:  "5s",
		},

		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			MaxConnections:  64,
			QueryTimeout:    "30s",
			ShutdownTimeout: "10s",
			WatchConfig:     true,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},

		Tracing: DefaultTracingConfig(),

		UI: *DefaultUIConfig(),
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies PRIMECHECK_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if addr := os.Getenv("PRIMECHECK_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("PRIMECHECK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if file := os.Getenv("PRIMECHECK_LOG_FILE"); file != "" {
		c.Logging.File = file
	}
	if theme := os.Getenv("PRIMECHECK_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if exp := os.Getenv("PRIMECHECK_TRACE_EXPORTER"); exp != "" {
		c.Tracing.Exporter = exp
	}

	if v := os.Getenv("PRIMECHECK_MILLER_RABIN_ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PRIMECHECK_MILLER_RABIN_ROUNDS: %w", err)
		}
		c.Engine.MillerRabinRounds = n
	}
	if v := os.Getenv("PRIMECHECK_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PRIMECHECK_SEED: %w", err)
		}
		c.Engine.Seed = n
	}
	if v := os.Getenv("PRIMECHECK_FACTORIAL_CEILING"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PRIMECHECK_FACTORIAL_CEILING: %w", err)
		}
		c.Engine.FactorialCeiling = n
	}
	return nil
}

// GetQueryTimeout returns the per-request query timeout as a duration.
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetShutdownTimeout returns the graceful shutdown timeout as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetSlowStageWarning returns the slow stage threshold, or 0 when unset.
func (e EngineConfig) GetSlowStageWarning() time.Duration {
	d, err := time.ParseDuration(e.SlowStageWarning)
	if err != nil {
		return 0
	}
	return d
}

// maxSmallBits keeps 1<<SmallBits inside uint64 arithmetic.
const maxSmallBits = 62

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.UI.Validate(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server: max_connections must not be negative, got %d", c.Server.MaxConnections)
	}
	for name, v := range map[string]string{
		"query_timeout":    c.Server.QueryTimeout,
		"shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("server: invalid %s %q: %w", name, v, err)
		}
	}
	return nil
}

// Validate checks the engine limits. The small-number fast path is only sound
// when every composite below 2^small_bits has a factor below trial_limit, i.e.
// 2^small_bits <= trial_limit^2.
func (e EngineConfig) Validate() error {
	if e.TrialLimit < 3 {
		return fmt.Errorf("trial_limit must be at least 3, got %d", e.TrialLimit)
	}
	if e.SmallBits < 0 || e.SmallBits > maxSmallBits {
		return fmt.Errorf("small_bits must be in [0, %d], got %d", maxSmallBits, e.SmallBits)
	}
	if limit := uint64(e.TrialLimit); uint64(1)<<e.SmallBits > limit*limit {
		return fmt.Errorf("small_bits %d too large for trial_limit %d (need 2^small_bits <= trial_limit^2)", e.SmallBits, e.TrialLimit)
	}
	if e.MillerRabinRounds < 0 {
		return fmt.Errorf("miller_rabin_rounds must not be negative, got %d", e.MillerRabinRounds)
	}
	if e.MaxInputLength < 0 {
		return fmt.Errorf("max_input_length must not be negative, got %d", e.MaxInputLength)
	}
	if e.SlowStageWarning != "" {
		if _, err := time.ParseDuration(e.SlowStageWarning); err != nil {
			return fmt.Errorf("invalid slow_stage_warning %q: %w", e.SlowStageWarning, err)
		}
	}
	return nil
}
