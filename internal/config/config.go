package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the content API.
type Config struct {
	Port         int      `env:"PORT"                 envDefault:"8080"`
	LogLevel     string   `env:"LOG_LEVEL"            envDefault:"info"`
	DocsPath     string   `env:"DOCS_PATH"            envDefault:"/api-docs"`
	MaxBodyBytes int64    `env:"MAX_BODY_BYTES"       envDefault:"1048576"`
	CORSOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"         envSeparator:","`

	Server  ServerConfig
	Metrics MetricsConfig
	Tracing TracingConfig
}

// ServerConfig holds http.Server timeouts.
type ServerConfig struct {
	ReadTimeout       time.Duration `env:"SERVER_READ_TIMEOUT"        envDefault:"5s"`
	ReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" envDefault:"2s"`
	WriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT"       envDefault:"10s"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT"        envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT"    envDefault:"10s"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"METRICS_PATH"    envDefault:"/metrics"`
}

// TracingConfig controls the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool   `env:"TRACING_ENABLED"             envDefault:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME"           envDefault:"content-api"`
	Protocol    string `env:"OTEL_EXPORTER_OTLP_PROTOCOL" envDefault:"grpc"`
	Sampler     string `env:"OTEL_TRACES_SAMPLER"         envDefault:"parentbased_traceidratio"`
	SamplerArg  string `env:"OTEL_TRACES_SAMPLER_ARG"     envDefault:"1.0"`
}

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var validProtocols = map[string]struct{}{
	"grpc":          {},
	"http/protobuf": {},
}

// Load reads an optional .env file and then parses the environment.
// Variables already present in the environment take precedence over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if _, ok := validLogLevels[c.LogLevel]; !ok {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if !strings.HasPrefix(c.DocsPath, "/") {
		return fmt.Errorf("docs path must start with '/': %q", c.DocsPath)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/': %q", c.Metrics.Path)
	}
	if _, ok := validProtocols[c.Tracing.Protocol]; !ok {
		return fmt.Errorf("unsupported OTLP protocol: %s", c.Tracing.Protocol)
	}
	return nil
}

// Addr returns the listen address for http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
