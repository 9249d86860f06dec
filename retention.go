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
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// RetentionPolicy defines how long a database or measurement keeps data.
// BufferDays extends the cutoff so recently late-arriving data survives.
type RetentionPolicy struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	Database            string `json:"database"`
	Measurement         string `json:"measurement,omitempty"`
	RetentionDays       int    `json:"retention_days"`
	BufferDays          int    `json:"buffer_days"`
	IsActive            bool   `json:"is_active"`
	LastExecutionTime   string `json:"last_execution_time,omitempty"`
	LastExecutionStatus string `json:"last_execution_status,omitempty"`
	LastDeletedCount    int    `json:"last_deleted_count,omitempty"`
	CreatedAt           string `json:"created_at,omitempty"`
	UpdatedAt           string `json:"updated_at,omitempty"`
}

// CreateRetentionRequest describes a retention policy to create. An empty
// Measurement applies the policy to the whole database. BufferDays defaults
// to 7; Disabled creates the policy inactive.
type CreateRetentionRequest struct {
	Name          string
	Database      string
	Measurement   string
	RetentionDays int
	BufferDays    int
	Disabled      bool
}

// UpdateRetentionRequest carries policy fields to change; nil fields are
// left untouched.
type UpdateRetentionRequest struct {
	Name          *string `json:"name,omitempty"`
	RetentionDays *int    `json:"retention_days,omitempty"`
	Measurement   *string `json:"measurement,omitempty"`
	BufferDays    *int    `json:"buffer_days,omitempty"`
	IsActive      *bool   `json:"is_active,omitempty"`
}

// ExecuteRetentionResponse reports the outcome of one policy execution.
type ExecuteRetentionResponse struct {
	PolicyID             int      `json:"policy_id"`
	PolicyName           string   `json:"policy_name"`
	DeletedCount         int      `json:"deleted_count"`
	FilesDeleted         int      `json:"files_deleted"`
	ExecutionTimeMs      float64  `json:"execution_time_ms"`
	DryRun               bool     `json:"dry_run"`
	CutoffDate           string   `json:"cutoff_date,omitempty"`
	AffectedMeasurements []string `json:"affected_measurements,omitempty"`
	Error                string   `json:"error,omitempty"`
}

// RetentionExecution is one entry of a policy's execution history.
type RetentionExecution struct {
	ID                  int     `json:"id"`
	PolicyID            int     `json:"policy_id"`
	ExecutionTime       string  `json:"execution_time"`
	Status              string  `json:"status"`
	DeletedCount        int     `json:"deleted_count"`
	CutoffDate          string  `json:"cutoff_date,omitempty"`
	ExecutionDurationMs float64 `json:"execution_duration_ms"`
	ErrorMessage        string  `json:"error_message,omitempty"`
}

// RetentionClient manages retention policies.
type RetentionClient struct {
	http *httpClient
}

// Create registers a new retention policy.
func (r *RetentionClient) Create(ctx context.Context, req CreateRetentionRequest) (*RetentionPolicy, error) {
	if req.Name == "" || req.Database == "" {
		return nil, fmt.Errorf("%w: policy name and database are required", ErrInvalidArgument)
	}
	if req.RetentionDays <= 0 {
		return nil, fmt.Errorf("%w: retention_days must be positive", ErrInvalidArgument)
	}
	bufferDays := req.BufferDays
	if bufferDays == 0 {
		bufferDays = 7
	}

	payload := map[string]any{
		"name":           req.Name,
		"database":       req.Database,
		"retention_days": req.RetentionDays,
		"buffer_days":    bufferDays,
		"is_active":      !req.Disabled,
	}
	if req.Measurement != "" {
		payload["measurement"] = req.Measurement
	}

	body, err := r.http.sendBody(ctx, http.MethodPost, "/api/v1/retention", payload)
	if err != nil {
		return nil, err
	}
	return decodePolicy(body, "failed to create retention policy")
}

// List returns all retention policies.
func (r *RetentionClient) List(ctx context.Context) ([]RetentionPolicy, error) {
	body, err := r.http.getBody(ctx, "/api/v1/retention", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Policies []RetentionPolicy `json:"policies"`
	}
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	return result.Policies, nil
}

// Get fetches one policy by ID.
func (r *RetentionClient) Get(ctx context.Context, id int) (*RetentionPolicy, error) {
	body, err := r.http.getBody(ctx, fmt.Sprintf("/api/v1/retention/%d", id), nil)
	if err != nil {
		return nil, err
	}
	return decodePolicy(body, fmt.Sprintf("retention policy %d not found", id))
}

// Update changes the fields set in req on policy id.
func (r *RetentionClient) Update(ctx context.Context, id int, req UpdateRetentionRequest) (*RetentionPolicy, error) {
	body, err := r.http.sendBody(ctx, http.MethodPut, fmt.Sprintf("/api/v1/retention/%d", id), req)
	if err != nil {
		return nil, err
	}
	return decodePolicy(body, fmt.Sprintf("failed to update retention policy %d", id))
}

// Delete removes policy id. The data the policy governed is untouched.
func (r *RetentionClient) Delete(ctx context.Context, id int) error {
	body, err := r.http.sendBody(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/retention/%d", id), nil)
	if err != nil {
		return err
	}
	return checkEnvelope(body, fmt.Sprintf("failed to delete retention policy %d", id))
}

// Execute runs policy id now. With dryRun the server only reports what
// would be deleted; an actual deletion requires confirm.
func (r *RetentionClient) Execute(ctx context.Context, id int, dryRun, confirm bool) (*ExecuteRetentionResponse, error) {
	payload := map[string]bool{"dry_run": dryRun, "confirm": confirm}
	body, err := r.http.sendBody(ctx, http.MethodPost, fmt.Sprintf("/api/v1/retention/%d/execute", id), payload)
	if err != nil {
		return nil, err
	}

	var result ExecuteRetentionResponse
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Executions returns up to limit entries of policy id's execution history,
// newest first. A limit of 0 uses the server default of 50.
func (r *RetentionClient) Executions(ctx context.Context, id int, limit int) ([]RetentionExecution, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	body, err := r.http.getBody(ctx, fmt.Sprintf("/api/v1/retention/%d/executions", id), query)
	if err != nil {
		return nil, err
	}

	var result struct {
		Executions []RetentionExecution `json:"executions"`
	}
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	return result.Executions, nil
}

func decodePolicy(body []byte, fallback string) (*RetentionPolicy, error) {
	var result struct {
		Success *bool            `json:"success"`
		Policy  *RetentionPolicy `json:"policy"`
		Error   string           `json:"error,omitempty"`
		RetentionPolicy
	}
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	if result.Success != nil && !*result.Success {
		return nil, apiError(result.Error, fallback)
	}
	if result.Policy != nil {
		return result.Policy, nil
	}
	// Some endpoints return the policy at the top level.
	policy := result.RetentionPolicy
	return &policy, nil
}
