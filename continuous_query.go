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
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ContinuousQuery is a server-side query that periodically aggregates a
// source measurement into a destination measurement.
type ContinuousQuery struct {
	ID                     int    `json:"id"`
	Name                   string `json:"name"`
	Description            string `json:"description,omitempty"`
	Database               string `json:"database"`
	SourceMeasurement      string `json:"source_measurement"`
	DestinationMeasurement string `json:"destination_measurement"`
	Query                  string `json:"query"`
	Interval               string `json:"interval"`
	RetentionDays          int    `json:"retention_days,omitempty"`
	DeleteSourceAfterDays  int    `json:"delete_source_after_days,omitempty"`
	IsActive               bool   `json:"is_active"`
	LastExecutionTime      string `json:"last_execution_time,omitempty"`
	LastExecutionStatus    string `json:"last_execution_status,omitempty"`
	LastProcessedTime      string `json:"last_processed_time,omitempty"`
	LastRecordsWritten     int    `json:"last_records_written,omitempty"`
	CreatedAt              string `json:"created_at,omitempty"`
	UpdatedAt              string `json:"updated_at,omitempty"`
}

// CreateContinuousQueryRequest describes a continuous query to create.
// Interval is a schedule string such as "1h"; Query is the aggregation SQL
// run on each tick. Disabled creates the query inactive.
type CreateContinuousQueryRequest struct {
	Name                   string
	Database               string
	SourceMeasurement      string
	DestinationMeasurement string
	Query                  string
	Interval               string
	Description            string
	RetentionDays          int
	DeleteSourceAfterDays  int
	Disabled               bool
}

// UpdateContinuousQueryRequest carries fields to change; nil fields are
// left untouched.
type UpdateContinuousQueryRequest struct {
	Name                  *string `json:"name,omitempty"`
	Description           *string `json:"description,omitempty"`
	Query                 *string `json:"query,omitempty"`
	Interval              *string `json:"interval,omitempty"`
	RetentionDays         *int    `json:"retention_days,omitempty"`
	DeleteSourceAfterDays *int    `json:"delete_source_after_days,omitempty"`
	IsActive              *bool   `json:"is_active,omitempty"`
}

// ExecuteCQResponse reports the outcome of one manual execution.
type ExecuteCQResponse struct {
	QueryID                int     `json:"query_id"`
	QueryName              string  `json:"query_name"`
	ExecutionID            string  `json:"execution_id"`
	Status                 string  `json:"status"`
	StartTime              string  `json:"start_time"`
	EndTime                string  `json:"end_time"`
	RecordsRead            int     `json:"records_read,omitempty"`
	RecordsWritten         int     `json:"records_written"`
	ExecutionTimeSeconds   float64 `json:"execution_time_seconds"`
	DestinationMeasurement string  `json:"destination_measurement"`
	DryRun                 bool    `json:"dry_run"`
	ExecutedAt             string  `json:"executed_at,omitempty"`
	ExecutedQuery          string  `json:"executed_query,omitempty"`
	Error                  string  `json:"error,omitempty"`
}

// CQExecution is one entry of a continuous query's execution history.
type CQExecution struct {
	ID                       int     `json:"id"`
	QueryID                  int     `json:"query_id"`
	ExecutionID              string  `json:"execution_id"`
	ExecutionTime            string  `json:"execution_time"`
	Status                   string  `json:"status"`
	StartTime                string  `json:"start_time"`
	EndTime                  string  `json:"end_time"`
	RecordsRead              int     `json:"records_read,omitempty"`
	RecordsWritten           int     `json:"records_written"`
	ExecutionDurationSeconds float64 `json:"execution_duration_seconds"`
	ErrorMessage             string  `json:"error_message,omitempty"`
}

// ContinuousQueryClient manages continuous queries.
type ContinuousQueryClient struct {
	http *httpClient
}

// Create registers a new continuous query.
func (c *ContinuousQueryClient) Create(ctx context.Context, req CreateContinuousQueryRequest) (*ContinuousQuery, error) {
	switch {
	case req.Name == "" || req.Database == "":
		return nil, fmt.Errorf("%w: query name and database are required", ErrInvalidArgument)
	case req.SourceMeasurement == "" || req.DestinationMeasurement == "":
		return nil, fmt.Errorf("%w: source and destination measurements are required", ErrInvalidArgument)
	case req.Query == "" || req.Interval == "":
		return nil, fmt.Errorf("%w: query and interval are required", ErrInvalidArgument)
	}

	payload := map[string]any{
		"name":                    req.Name,
		"database":                req.Database,
		"source_measurement":      req.SourceMeasurement,
		"destination_measurement": req.DestinationMeasurement,
		"query":                   req.Query,
		"interval":                req.Interval,
		"is_active":               !req.Disabled,
	}
	if req.Description != "" {
		payload["description"] = req.Description
	}
	if req.RetentionDays > 0 {
		payload["retention_days"] = req.RetentionDays
	}
	if req.DeleteSourceAfterDays > 0 {
		payload["delete_source_after_days"] = req.DeleteSourceAfterDays
	}

	body, err := c.http.sendBody(ctx, http.MethodPost, "/api/v1/continuous_queries", payload)
	if err != nil {
		return nil, err
	}
	return decodeCQ(body, "failed to create continuous query")
}

// List returns continuous queries, optionally filtered by database and
// active state (nil means both).
func (c *ContinuousQueryClient) List(ctx context.Context, database string, isActive *bool) ([]ContinuousQuery, error) {
	query := url.Values{}
	if database != "" {
		query.Set("database", database)
	}
	if isActive != nil {
		query.Set("is_active", strconv.FormatBool(*isActive))
	}
	body, err := c.http.getBody(ctx, "/api/v1/continuous_queries", query)
	if err != nil {
		return nil, err
	}

	var result struct {
		Queries []ContinuousQuery `json:"queries"`
	}
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	return result.Queries, nil
}

// Get fetches one continuous query by ID.
func (c *ContinuousQueryClient) Get(ctx context.Context, id int) (*ContinuousQuery, error) {
	body, err := c.http.getBody(ctx, fmt.Sprintf("/api/v1/continuous_queries/%d", id), nil)
	if err != nil {
		return nil, err
	}
	return decodeCQ(body, fmt.Sprintf("continuous query %d not found", id))
}

// Update changes the fields set in req on query id.
func (c *ContinuousQueryClient) Update(ctx context.Context, id int, req UpdateContinuousQueryRequest) (*ContinuousQuery, error) {
	body, err := c.http.sendBody(ctx, http.MethodPut, fmt.Sprintf("/api/v1/continuous_queries/%d", id), req)
	if err != nil {
		return nil, err
	}
	return decodeCQ(body, fmt.Sprintf("failed to update continuous query %d", id))
}

// Delete removes query id. Data already written to the destination
// measurement is untouched.
func (c *ContinuousQueryClient) Delete(ctx context.Context, id int) error {
	body, err := c.http.sendBody(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/continuous_queries/%d", id), nil)
	if err != nil {
		return err
	}
	return checkEnvelope(body, fmt.Sprintf("failed to delete continuous query %d", id))
}

// Execute runs query id now over [start, end). Zero times use the query's
// normal window; dryRun reports without writing.
func (c *ContinuousQueryClient) Execute(ctx context.Context, id int, start, end time.Time, dryRun bool) (*ExecuteCQResponse, error) {
	payload := map[string]any{"dry_run": dryRun}
	if !start.IsZero() {
		payload["start_time"] = start.Format(time.RFC3339)
	}
	if !end.IsZero() {
		payload["end_time"] = end.Format(time.RFC3339)
	}

	body, err := c.http.sendBody(ctx, http.MethodPost, fmt.Sprintf("/api/v1/continuous_queries/%d/execute", id), payload)
	if err != nil {
		return nil, err
	}

	var result ExecuteCQResponse
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Executions returns up to limit entries of query id's execution history,
// newest first. A limit of 0 uses the server default of 50.
func (c *ContinuousQueryClient) Executions(ctx context.Context, id int, limit int) ([]CQExecution, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.http.getBody(ctx, fmt.Sprintf("/api/v1/continuous_queries/%d/executions", id), query)
	if err != nil {
		return nil, err
	}

	var result struct {
		Executions []CQExecution `json:"executions"`
	}
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	return result.Executions, nil
}

func decodeCQ(body []byte, fallback string) (*ContinuousQuery, error) {
	// The "query" key is the nested definition object in the envelope form,
	// but the SQL string when the server returns the definition at the top
	// level, so it has to be decoded lazily.
	var result struct {
		Success *bool           `json:"success"`
		Query   json.RawMessage `json:"query"`
		Error   string          `json:"error,omitempty"`
	}
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	if result.Success != nil && !*result.Success {
		return nil, apiError(result.Error, fallback)
	}

	var cq ContinuousQuery
	if len(result.Query) > 0 && result.Query[0] == '{' {
		if err := decodeJSON(result.Query, &cq); err != nil {
			return nil, err
		}
		return &cq, nil
	}
	if err := decodeJSON(body, &cq); err != nil {
		return nil, err
	}
	return &cq, nil
}
