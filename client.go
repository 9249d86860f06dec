package arc

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// Client is the entry point for interacting with an Arc server. It is safe
// for concurrent use.
type Client struct {
	config *Config
	http   *httpClient
	logger zerolog.Logger

	write     *WriteClient
	query     *QueryClient
	auth      *AuthClient
	retention *RetentionClient
	cq        *ContinuousQueryClient
	deletes   *DeleteClient
}

// NewClient creates a client from the given configuration. A nil config
// uses the defaults (http://localhost:8000, database "default").
func NewClient(config *Config) *Client {
	cfg := config.withDefaults()
	logger := cfg.logger()
	hc := newHTTPClient(cfg, logger)

	c := &Client{
		config: cfg,
		http:   hc,
		logger: logger,
	}
	c.write = newWriteClient(hc, cfg, logger)
	c.query = newQueryClient(hc, logger)
	c.auth = &AuthClient{http: hc}
	c.retention = &RetentionClient{http: hc}
	c.cq = &ContinuousQueryClient{http: hc}
	c.deletes = &DeleteClient{http: hc}
	return c
}

// Config returns the effective client configuration.
func (c *Client) Config() *Config {
	return c.config
}

// Write returns the client for data ingestion.
func (c *Client) Write() *WriteClient {
	return c.write
}

// Query returns the client for SQL queries.
func (c *Client) Query() *QueryClient {
	return c.query
}

// Auth returns the client for API token management.
func (c *Client) Auth() *AuthClient {
	return c.auth
}

// Retention returns the client for retention policy management.
func (c *Client) Retention() *RetentionClient {
	return c.retention
}

// ContinuousQueries returns the client for continuous query management.
func (c *Client) ContinuousQueries() *ContinuousQueryClient {
	return c.cq
}

// Deletes returns the client for data deletion.
func (c *Client) Deletes() *DeleteClient {
	return c.deletes
}

// HealthResponse is the response from the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	data, err := c.http.getBody(ctx, "/health", nil)
	if err != nil {
		return nil, err
	}
	var health HealthResponse
	if err := decodeJSON(data, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Ready reports whether the server is ready to accept requests. Errors are
// treated as not ready.
func (c *Client) Ready(ctx context.Context) bool {
	resp, err := c.http.do(ctx, http.MethodGet, "/ready", nil, nil)
	if err != nil {
		return false
	}
	defer sneakyBodyClose(resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections held by the client.
//
// You don't typically need to call this as the garbage collector will
// release the resources when the client is no longer referenced, but it can
// be useful to release them immediately.
func (c *Client) Close() {
	c.http.client.CloseIdleConnections()
}
