// Package config loads runtime configuration for labelcheck.
//
// Values are resolved in order: built-in defaults, an optional YAML file,
// LABELCHECK_* environment variables (plus GOOGLE_CLOUD_LOCATION), then command-line flags (applied by
// the CLI). Every field has a default so the binary runs with no setup.
// Credentials are never read here; adapters look them up themselves.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/backend/genai"
	"github.com/roach88/labelcheck/internal/backend/vertex"
	"github.com/roach88/labelcheck/internal/logging"
)

// Environment variable names.
const (
	EnvTimeout      = "LABELCHECK_TIMEOUT"
	EnvConcurrency  = "LABELCHECK_CONCURRENCY"
	EnvRetries      = "LABELCHECK_RETRIES"
	EnvStore        = "LABELCHECK_STORE"
	EnvLogLevel     = "LABELCHECK_LOG_LEVEL"
	EnvLogFormat    = "LABELCHECK_LOG_FORMAT"
	EnvVertexModel  = "LABELCHECK_VERTEX_MODEL"
	EnvGenAIModel   = "LABELCHECK_GENAI_MODEL"
	EnvGenAIBaseURL = "LABELCHECK_GENAI_BASE_URL"
)

// Defaults.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 2
)

// Config is the resolved runtime configuration.
type Config struct {
	// Timeout bounds each backend invoke.
	Timeout time.Duration `yaml:"timeout"`

	// Concurrency is the number of backends dispatched at once.
	Concurrency int `yaml:"concurrency"`

	// Retries is the number of extra attempts for transient failures.
	// Zero disables retrying.
	Retries int `yaml:"retries"`

	// Store is the SQLite path for run history. Empty disables it.
	Store string `yaml:"store"`

	Log    logging.Config `yaml:"log"`
	Vertex VertexConfig   `yaml:"vertex"`
	GenAI  GenAIConfig    `yaml:"genai"`
}

// VertexConfig holds vertex adapter settings.
type VertexConfig struct {
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
}

// GenAIConfig holds genai adapter settings.
type GenAIConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		Log: logging.Config{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		Vertex: VertexConfig{
			Location: vertex.DefaultLocation,
			Model:    vertex.DefaultModel,
		},
		GenAI: GenAIConfig{
			Model:   genai.DefaultModel,
			BaseURL: genai.DefaultBaseURL,
		},
	}
}

// Load resolves configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment read through lookup. A nil
// lookup reads the process environment.
func Load(path string, lookup backend.LookupFunc) (Config, error) {
	cfg := Default()
	if lookup == nil {
		lookup = backend.EnvLookup
	}

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.mergeEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(lookup backend.LookupFunc) error {
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := env(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v, ok := env(EnvConcurrency); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConcurrency, err)
		}
		c.Concurrency = n
	}
	if v, ok := env(EnvRetries); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRetries, err)
		}
		c.Retries = n
	}
	if v, ok := env(EnvStore); ok {
		c.Store = v
	}
	if v, ok := env(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := env(EnvLogFormat); ok {
		c.Log.Format = v
	}
	if v, ok := env(vertex.EnvLocation); ok {
		c.Vertex.Location = v
	}
	if v, ok := env(EnvVertexModel); ok {
		c.Vertex.Model = v
	}
	if v, ok := env(EnvGenAIModel); ok {
		c.GenAI.Model = v
	}
	if v, ok := env(EnvGenAIBaseURL); ok {
		c.GenAI.BaseURL = v
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %s", c.Timeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must be non-negative, got %d", c.Retries)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q: must be console or json", c.Log.Format)
	}
	return nil
}
