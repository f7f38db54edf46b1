// Package config loads the rankindex configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/viniciusth/rankindex"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// IndexConfig holds the build options of the index.
type IndexConfig struct {
	Sentinel        int    `yaml:"sentinel"`
	Wildcard        string `yaml:"wildcard"`
	CaseInsensitive bool   `yaml:"caseInsensitive"`
	Normalize       bool   `yaml:"normalize"`
	UseLCP          bool   `yaml:"useLCP"`
}

// Alphabet returns the reserved symbols. Call Validate first.
func (c IndexConfig) Alphabet() rankindex.Alphabet {
	return rankindex.Alphabet{Sentinel: byte(c.Sentinel), Wildcard: c.Wildcard[0]}
}

// Builder applies the options to a builder for text.
func (c IndexConfig) Builder(text []byte) *rankindex.Builder {
	b := rankindex.NewBuilder(text).WithAlphabet(c.Alphabet())
	if c.CaseInsensitive {
		b = b.CaseInsensitive()
	}
	if c.Normalize {
		b = b.Normalize()
	}
	if c.UseLCP {
		b = b.UseLCP()
	}
	return b
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// RedisConfig holds the query cache connection. The cache is off unless
// Enabled is set.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles the Prometheus collectors and /metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Sentinel: rankindex.DefaultSentinel,
			Wildcard: string(rune(rankindex.DefaultWildcard)),
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c *Config) Validate() error {
	if c.Index.Sentinel < 0 || c.Index.Sentinel > 255 {
		return fmt.Errorf("index.sentinel %d is not a byte", c.Index.Sentinel)
	}
	if len(c.Index.Wildcard) != 1 {
		return fmt.Errorf("index.wildcard %q must be a single byte", c.Index.Wildcard)
	}
	if err := c.Index.Builder(nil).Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if c.Redis.Enabled && c.Redis.CacheTTL <= 0 {
		return fmt.Errorf("redis.cacheTTL must be positive, got %s", c.Redis.CacheTTL)
	}
	return nil
}

// applyEnvOverrides reads RANKINDEX_* environment variables and overrides
// the corresponding config fields. Unparsable values are logged and leave the
// field as it was.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RANKINDEX_INDEX_SENTINEL"); v != "" {
		if n, err := strconv.ParseInt(v, 0, 0); err == nil {
			cfg.Index.Sentinel = int(n)
		} else {
			warnEnv("RANKINDEX_INDEX_SENTINEL", v, err)
		}
	}
	if v := os.Getenv("RANKINDEX_INDEX_WILDCARD"); v != "" {
		cfg.Index.Wildcard = v
	}
	envBool("RANKINDEX_INDEX_CASE_INSENSITIVE", &cfg.Index.CaseInsensitive)
	envBool("RANKINDEX_INDEX_NORMALIZE", &cfg.Index.Normalize)
	envBool("RANKINDEX_INDEX_USE_LCP", &cfg.Index.UseLCP)
	if v := os.Getenv("RANKINDEX_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	envBool("RANKINDEX_REDIS_ENABLED", &cfg.Redis.Enabled)
	if v := os.Getenv("RANKINDEX_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RANKINDEX_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RANKINDEX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RANKINDEX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	envBool("RANKINDEX_METRICS_ENABLED", &cfg.Metrics.Enabled)
}

func envBool(name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		warnEnv(name, v, err)
		return
	}
	*dst = b
}

func warnEnv(name, value string, err error) {
	slog.Warn("ignoring invalid environment override", "var", name, "value", value, "error", err)
}
