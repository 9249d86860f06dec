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
	"strings"
)

// DeleteRequest describes rows to delete from a measurement. Where is a SQL
// predicate; it is required, use "1=1" with Confirm to delete everything.
// DryRun previews the deletion without touching data.
type DeleteRequest struct {
	Database    string `json:"database"`
	Measurement string `json:"measurement"`
	Where       string `json:"where"`
	DryRun      bool   `json:"dry_run"`
	Confirm     bool   `json:"confirm"`
}

// DeleteResponse reports the outcome of a delete operation.
type DeleteResponse struct {
	Success         bool     `json:"success"`
	DeletedCount    int64    `json:"deleted_count"`
	AffectedFiles   int      `json:"affected_files"`
	RewrittenFiles  int      `json:"rewritten_files"`
	ExecutionTimeMs float64  `json:"execution_time_ms"`
	DryRun          bool     `json:"dry_run"`
	FilesProcessed  []string `json:"files_processed,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// DeleteConfigResponse describes the server's delete settings.
type DeleteConfigResponse struct {
	Enabled               bool              `json:"enabled"`
	ConfirmationThreshold int64             `json:"confirmation_threshold"`
	MaxRowsPerDelete      int64             `json:"max_rows_per_delete"`
	Implementation        string            `json:"implementation"`
	PerformanceImpact     map[string]string `json:"performance_impact,omitempty"`
}

// DeleteClient removes rows from measurements. Deletion rewrites the
// underlying files, which is expensive; always preview with DryRun first.
type DeleteClient struct {
	http *httpClient
}

// Delete removes rows matching req.Where from req.Measurement.
func (d *DeleteClient) Delete(ctx context.Context, req DeleteRequest) (*DeleteResponse, error) {
	switch {
	case req.Database == "":
		return nil, fmt.Errorf("%w: database is required", ErrInvalidArgument)
	case req.Measurement == "":
		return nil, fmt.Errorf("%w: measurement is required", ErrInvalidArgument)
	case strings.TrimSpace(req.Where) == "":
		return nil, fmt.Errorf("%w: where clause is required, use \"1=1\" with confirm for a full delete",
			ErrInvalidArgument)
	}

	body, err := d.http.sendBody(ctx, http.MethodPost, "/api/v1/delete", req)
	if err != nil {
		return nil, err
	}

	var result DeleteResponse
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, apiError(result.Error, "delete operation failed")
	}
	return &result, nil
}

// Config fetches the server's delete settings.
func (d *DeleteClient) Config(ctx context.Context) (*DeleteConfigResponse, error) {
	body, err := d.http.getBody(ctx, "/api/v1/delete/config", nil)
	if err != nil {
		return nil, err
	}

	var result DeleteConfigResponse
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
