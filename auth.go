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
	"io"
	"net/http"
	"time"
)

// TokenInfo describes an API token. Permissions are read, write, delete,
// and admin.
type TokenInfo struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Permissions []string   `json:"permissions"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	Enabled     bool       `json:"enabled"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// VerifyResponse is the result of checking the configured token.
type VerifyResponse struct {
	Valid       bool       `json:"valid"`
	TokenInfo   *TokenInfo `json:"token_info,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// CreateTokenRequest describes a token to create. Only Name is required;
// ExpiresIn is a duration string such as "30d".
type CreateTokenRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	ExpiresIn   string   `json:"expires_in,omitempty"`
}

// UpdateTokenRequest carries token fields to change; nil fields are left
// untouched.
type UpdateTokenRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Permissions *[]string `json:"permissions,omitempty"`
	ExpiresIn   *string   `json:"expires_in,omitempty"`
}

// AuthClient manages API tokens. All operations except Verify require a
// token with admin permission.
type AuthClient struct {
	http *httpClient
}

// Verify checks the configured token against the server. An invalid token
// is reported through the response's Valid field, not an error.
func (a *AuthClient) Verify(ctx context.Context) (*VerifyResponse, error) {
	if a.http.config.Token == "" {
		return &VerifyResponse{Valid: false, Error: "no token configured"}, nil
	}

	resp, err := a.http.do(ctx, http.MethodGet, "/api/v1/auth/verify", nil, nil)
	if err != nil {
		return nil, err
	}
	defer sneakyBodyClose(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &VerifyResponse{Valid: false, Error: "invalid or expired token"}, nil
	}
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("arc: read response: %w", err)
	}
	var result VerifyResponse
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateToken creates a new token and returns its value. The value is only
// shown once; store it.
func (a *AuthClient) CreateToken(ctx context.Context, req CreateTokenRequest) (string, error) {
	if req.Name == "" {
		return "", fmt.Errorf("%w: token name cannot be empty", ErrInvalidArgument)
	}

	body, err := a.http.sendBody(ctx, http.MethodPost, "/api/v1/auth/tokens", req)
	if err != nil {
		return "", err
	}

	var result struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		Error   string `json:"error,omitempty"`
	}
	if err := decodeJSON(body, &result); err != nil {
		return "", err
	}
	if !result.Success {
		return "", apiError(result.Error, "failed to create token")
	}
	return result.Token, nil
}

// ListTokens lists all tokens.
func (a *AuthClient) ListTokens(ctx context.Context) ([]TokenInfo, error) {
	body, err := a.http.getBody(ctx, "/api/v1/auth/tokens", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool        `json:"success"`
		Tokens  []TokenInfo `json:"tokens"`
		Error   string      `json:"error,omitempty"`
	}
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, apiError(result.Error, "failed to list tokens")
	}
	return result.Tokens, nil
}

// GetToken fetches one token by ID.
func (a *AuthClient) GetToken(ctx context.Context, id int) (*TokenInfo, error) {
	body, err := a.http.getBody(ctx, fmt.Sprintf("/api/v1/auth/tokens/%d", id), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool       `json:"success"`
		Token   *TokenInfo `json:"token"`
		Error   string     `json:"error,omitempty"`
	}
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	if !result.Success || result.Token == nil {
		return nil, apiError(result.Error, fmt.Sprintf("token %d not found", id))
	}
	return result.Token, nil
}

// UpdateToken changes the fields set in req on token id.
func (a *AuthClient) UpdateToken(ctx context.Context, id int, req UpdateTokenRequest) error {
	body, err := a.http.sendBody(ctx, http.MethodPatch, fmt.Sprintf("/api/v1/auth/tokens/%d", id), req)
	if err != nil {
		return err
	}
	return checkEnvelope(body, fmt.Sprintf("failed to update token %d", id))
}

// DeleteToken permanently deletes token id.
func (a *AuthClient) DeleteToken(ctx context.Context, id int) error {
	body, err := a.http.sendBody(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/auth/tokens/%d", id), nil)
	if err != nil {
		return err
	}
	return checkEnvelope(body, fmt.Sprintf("failed to delete token %d", id))
}

// RotateToken replaces token id's value and returns the new one. The old
// value stops working immediately.
func (a *AuthClient) RotateToken(ctx context.Context, id int) (string, error) {
	body, err := a.http.sendBody(ctx, http.MethodPost, fmt.Sprintf("/api/v1/auth/tokens/%d/rotate", id), nil)
	if err != nil {
		return "", err
	}

	var result struct {
		Success  bool   `json:"success"`
		NewToken string `json:"new_token"`
		Error    string `json:"error,omitempty"`
	}
	if err := decodeJSON(body, &result); err != nil {
		return "", err
	}
	if !result.Success {
		return "", apiError(result.Error, fmt.Sprintf("failed to rotate token %d", id))
	}
	if result.NewToken == "" {
		return "", apiError("", "no new token returned")
	}
	return result.NewToken, nil
}

// RevokeToken disables token id without deleting it.
func (a *AuthClient) RevokeToken(ctx context.Context, id int) error {
	body, err := a.http.sendBody(ctx, http.MethodPost, fmt.Sprintf("/api/v1/auth/tokens/%d/revoke", id), nil)
	if err != nil {
		return err
	}
	return checkEnvelope(body, fmt.Sprintf("failed to revoke token %d", id))
}

// checkEnvelope decodes the server's {"success": ..., "error": ...} reply
// and converts a logical failure into an error.
func checkEnvelope(body []byte, fallback string) error {
	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
	if err := decodeJSON(body, &result); err != nil {
		return err
	}
	if !result.Success {
		return apiError(result.Error, fallback)
	}
	return nil
}
