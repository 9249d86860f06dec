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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/rs/zerolog"
)

// QueryOption adjusts a single query call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	database string
}

// WithQueryDatabase targets a database other than the client default.
func WithQueryDatabase(database string) QueryOption {
	return func(o *queryOptions) {
		o.database = database
	}
}

// QueryResponse is the JSON result of a SQL query: column names plus
// row-major data.
type QueryResponse struct {
	Success         bool     `json:"success"`
	Columns         []string `json:"columns"`
	Data            [][]any  `json:"data"`
	RowCount        int      `json:"row_count"`
	ExecutionTimeMs float64  `json:"execution_time_ms"`
	Timestamp       string   `json:"timestamp,omitempty"`
	ErrorMessage    string   `json:"error,omitempty"`
}

// Rows yields each row as a column-name-keyed map. Convenience for small
// result sets; large ones are better consumed columnar via QueryArrow.
func (r *QueryResponse) Rows() []map[string]any {
	rows := make([]map[string]any, 0, len(r.Data))
	for _, values := range r.Data {
		row := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// EstimateResponse reports the estimated cost of a query before running it.
// WarningLevel is one of none, low, medium, high, or error.
type EstimateResponse struct {
	Success         bool    `json:"success"`
	EstimatedRows   int64   `json:"estimated_rows"`
	WarningLevel    string  `json:"warning_level"`
	WarningMessage  string  `json:"warning_message,omitempty"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
	ErrorMessage    string  `json:"error,omitempty"`
}

// MeasurementInfo describes one measurement's storage footprint.
type MeasurementInfo struct {
	Database    string  `json:"database"`
	Measurement string  `json:"measurement"`
	FileCount   int     `json:"file_count"`
	TotalSizeMB float64 `json:"total_size_mb"`
	StoragePath string  `json:"storage_path,omitempty"`
}

// QueryClient executes SQL queries against the server. It is safe for
// concurrent use.
type QueryClient struct {
	http   *httpClient
	logger zerolog.Logger
}

func newQueryClient(hc *httpClient, logger zerolog.Logger) *QueryClient {
	return &QueryClient{
		http:   hc,
		logger: logger.With().Str("component", "query").Logger(),
	}
}

// Query executes sql and returns the result as JSON rows. For large result
// sets prefer QueryArrow.
func (q *QueryClient) Query(ctx context.Context, sql string, opts ...QueryOption) (*QueryResponse, error) {
	o := q.options(opts)
	resp, err := q.post(ctx, "/api/v1/query", sql, o, "")
	if err != nil {
		return nil, err
	}
	defer sneakyBodyClose(resp.Body)

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("arc: read response: %w", err)
	}
	var result QueryResponse
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, apiError(result.ErrorMessage, "query failed")
	}
	return &result, nil
}

// QueryArrow executes sql and returns the result as Arrow records decoded
// from the server's IPC stream. The caller owns the records and must
// Release each one.
func (q *QueryClient) QueryArrow(ctx context.Context, sql string, opts ...QueryOption) ([]arrow.Record, error) {
	o := q.options(opts)
	resp, err := q.post(ctx, "/api/v1/query/arrow", sql, o, "application/vnd.apache.arrow.stream")
	if err != nil {
		return nil, err
	}
	defer sneakyBodyClose(resp.Body)

	// The server answers query errors with a JSON body even on this
	// endpoint, so sniff the content type before decoding.
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return nil, checkStatus(resp)
	}
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	reader, err := ipc.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("arc: decode arrow stream: %w", err)
	}
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := reader.Err(); err != nil {
		for _, rec := range records {
			rec.Release()
		}
		return nil, fmt.Errorf("arc: decode arrow stream: %w", err)
	}
	return records, nil
}

// Estimate reports the expected row count of sql without executing it.
func (q *QueryClient) Estimate(ctx context.Context, sql string, opts ...QueryOption) (*EstimateResponse, error) {
	o := q.options(opts)
	resp, err := q.post(ctx, "/api/v1/query/estimate", sql, o, "")
	if err != nil {
		return nil, err
	}
	defer sneakyBodyClose(resp.Body)

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("arc: read response: %w", err)
	}
	var result EstimateResponse
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, apiError(result.ErrorMessage, "estimate failed")
	}
	return &result, nil
}

// ListMeasurements lists measurements, optionally restricted to database.
func (q *QueryClient) ListMeasurements(ctx context.Context, database string) ([]MeasurementInfo, error) {
	query := url.Values{}
	if database != "" {
		query.Set("database", database)
	}
	body, err := q.http.getBody(ctx, "/api/v1/measurements", query)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success      bool              `json:"success"`
		Measurements []MeasurementInfo `json:"measurements"`
		ErrorMessage string            `json:"error,omitempty"`
	}
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, apiError(result.ErrorMessage, "failed to list measurements")
	}
	return result.Measurements, nil
}

// ListDatabases lists database names via SHOW DATABASES.
func (q *QueryClient) ListDatabases(ctx context.Context) ([]string, error) {
	result, err := q.Query(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Data))
	for _, row := range result.Data {
		if len(row) == 0 {
			continue
		}
		if name, ok := row[0].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// ShowTables lists the tables of database, or of "default" when empty.
func (q *QueryClient) ShowTables(ctx context.Context, database string) (*QueryResponse, error) {
	if database == "" {
		database = "default"
	}
	return q.Query(ctx, "SHOW TABLES FROM "+database)
}

func (q *QueryClient) options(opts []QueryOption) queryOptions {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (q *QueryClient) post(ctx context.Context, path, sql string, o queryOptions, accept string) (*http.Response, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, fmt.Errorf("%w: sql cannot be empty", ErrInvalidArgument)
	}

	payload, err := json.Marshal(map[string]string{"sql": sql})
	if err != nil {
		return nil, fmt.Errorf("arc: encode request: %w", err)
	}

	headers := http.Header{}
	if accept != "" {
		headers.Set("Accept", accept)
	}
	if o.database != "" {
		headers.Set("x-arc-database", o.database)
	}

	q.logger.Debug().Str("path", path).Str("sql", sql).Msg("executing query")
	return q.http.do(ctx, http.MethodPost, path, payload, &requestOptions{
		contentType: "application/json",
		headers:     headers,
	})
}
