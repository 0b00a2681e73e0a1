package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all configuration for the analytics server
type Config struct {
	// Clicky credentials
	SiteID  string `envconfig:"CLICKY_SITE_ID"`
	SiteKey string `envconfig:"CLICKY_SITE_KEY"`
	BaseURL string `envconfig:"CLICKY_BASE_URL" default:"https://api.clicky.com/api/stats/4"`

	// Transport: stdio or http
	Transport string `envconfig:"MCP_TRANSPORT" default:"stdio"`

	// Server settings (http transport)
	Port            int           `envconfig:"PORT" default:"8080"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// WebSocket settings
	WSReadBufferSize  int           `envconfig:"WS_READ_BUFFER_SIZE" default:"1024"`
	WSWriteBufferSize int           `envconfig:"WS_WRITE_BUFFER_SIZE" default:"1024"`
	WSPingInterval    time.Duration `envconfig:"WS_PING_INTERVAL" default:"30s"`
	WSPongWait        time.Duration `envconfig:"WS_PONG_WAIT" default:"60s"`
	WSWriteWait       time.Duration `envconfig:"WS_WRITE_WAIT" default:"10s"`

	// Calls and sessions
	MaxConcurrentCalls int           `envconfig:"MAX_CONCURRENT_CALLS" default:"8"`
	MaxSessions        int           `envconfig:"MAX_SESSIONS" default:"100"`
	SessionTimeout     time.Duration `envconfig:"SESSION_TIMEOUT" default:"1h"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"` // json or console

	// Health check
	HealthCheckPath string `envconfig:"HEALTH_CHECK_PATH" default:"/health"`

	// CORS
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// Metrics
	MetricsEnabled  bool   `envconfig:"OTEL_METRICS_ENABLED" default:"false"`
	MetricsEndpoint string `envconfig:"OTEL_METRICS_ENDPOINT"`
	MetricsInsecure bool   `envconfig:"OTEL_METRICS_INSECURE" default:"false"`
}

// Load reads configuration from environment variables. A .env file in the
// working directory, when present, fills in variables that are not already set.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Override replaces values with non-empty command-line flags
func (c *Config) Override(siteID, siteKey, transport string) {
	if siteID != "" {
		c.SiteID = siteID
	}
	if siteKey != "" {
		c.SiteKey = siteKey
	}
	if transport != "" {
		c.Transport = transport
	}
}

// SetAddress overrides Host and Port from a host:port string
func (c *Config) SetAddress(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("invalid port in address %q", addr)
	}
	c.Host = host
	c.Port = p
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.SiteID == "" || c.SiteKey == "" {
		return fmt.Errorf("Clicky site ID and site key are required. Provide them via " +
			"--site-id/--site-key flags, CLICKY_SITE_ID/CLICKY_SITE_KEY environment variables, " +
			"or a .env file")
	}
	if c.Transport != TransportStdio && c.Transport != TransportHTTP {
		return fmt.Errorf("MCP_TRANSPORT must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Transport)
	}
	if c.MaxConcurrentCalls <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_CALLS must be positive")
	}
	if c.Transport == TransportHTTP && c.MaxSessions <= 0 {
		return fmt.Errorf("MAX_SESSIONS must be positive")
	}
	if c.MetricsEnabled && c.MetricsEndpoint == "" {
		return fmt.Errorf("OTEL_METRICS_ENDPOINT is required when OTEL_METRICS_ENABLED is set")
	}
	return nil
}
