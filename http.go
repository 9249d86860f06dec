/*
 * Copyright 2025 Basekick Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package arc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// httpClient wraps net/http with the headers and error mapping every Arc
// endpoint shares.
type httpClient struct {
	config *Config
	client *http.Client
	logger zerolog.Logger
}

func newHTTPClient(config *Config, logger zerolog.Logger) *httpClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.TLS && config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &httpClient{
		config: config,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		logger: logger.With().Str("component", "http").Logger(),
	}
}

// requestOptions carries per-request adjustments on top of the shared
// header set.
type requestOptions struct {
	contentType string
	headers     http.Header
	query       url.Values
}

// do sends one request. Every request carries the user agent, a generated
// request id, bearer auth when a token is configured, and the default
// database header; opts may override or extend these.
func (c *httpClient) do(ctx context.Context, method, path string, body []byte, opts *requestOptions) (*http.Response, error) {
	target := c.config.baseURL() + path
	if opts != nil && len(opts.query) > 0 {
		target += "?" + opts.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-Id", requestID)
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	if c.config.Database != "" {
		req.Header.Set("x-arc-database", c.config.Database)
	}
	if opts != nil {
		if opts.contentType != "" {
			req.Header.Set("Content-Type", opts.contentType)
		}
		for key, values := range opts.headers {
			for _, value := range values {
				req.Header.Set(key, value)
			}
		}
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("body_bytes", len(body)).
		Msg("sending request")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arc: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// getBody sends a GET request and returns the body of a 200 response.
func (c *httpClient) getBody(ctx context.Context, path string, query url.Values) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, &requestOptions{query: query})
	if err != nil {
		return nil, err
	}
	defer sneakyBodyClose(resp.Body)
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// sendBody marshals payload as JSON (nil means no body), sends it with the
// given method, and returns the response body on success.
func (c *httpClient) sendBody(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("arc: encode request: %w", err)
		}
	}
	resp, err := c.do(ctx, method, path, body, &requestOptions{contentType: "application/json"})
	if err != nil {
		return nil, err
	}
	defer sneakyBodyClose(resp.Body)
	if err := checkStatus(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// decodeJSON unmarshals a response body, wrapping decode failures.
func decodeJSON(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("arc: decode response: %w", err)
	}
	return nil
}
