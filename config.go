package arc

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Version is the client version reported in the User-Agent header.
const Version = "0.1.0"

// Config defines the configuration for the client.
type Config struct {
	// Host is the Arc server hostname. Defaults to "localhost".
	Host string
	// Port is the Arc server port. Defaults to 8000.
	Port int
	// Token is the API token sent as a bearer credential. Empty disables
	// authentication headers.
	Token string
	// Database is the default target database. Defaults to "default".
	Database string
	// Timeout bounds each HTTP request. Defaults to 30 seconds.
	Timeout time.Duration
	// DisableCompression turns off gzip compression of write payloads.
	// Compression is on by default.
	DisableCompression bool
	// TLS switches the client to HTTPS.
	TLS bool
	// InsecureSkipVerify disables server certificate verification. Only
	// meaningful together with TLS.
	InsecureSkipVerify bool
	// UserAgent overrides the User-Agent header.
	UserAgent string
	// Logger receives debug-level request and flush events. Nil disables
	// logging.
	Logger *zerolog.Logger
}

// withDefaults returns a copy of the config with zero values replaced by
// defaults. The original config is never mutated.
func (c *Config) withDefaults() *Config {
	cfg := Config{}
	if c != nil {
		cfg = *c
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "arc-client-go/" + Version
	}
	return &cfg
}

// baseURL returns the scheme://host:port prefix for every request.
func (c *Config) baseURL() string {
	scheme := "http"
	if c.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// logger returns the configured logger or a disabled one.
func (c *Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return zerolog.Nop()
}
