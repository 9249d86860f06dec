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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrInvalidArgument reports a record, value, or request argument
	// rejected on the client side, before anything was buffered or sent.
	ErrInvalidArgument = errors.New("arc: invalid argument")

	// ErrClosed reports an operation on a writer that has already been
	// closed.
	ErrClosed = errors.New("arc: writer is closed")
)

// Error represents an error response from the Arc server.
type Error struct {
	// StatusCode is the HTTP status of the failed request. It is zero when
	// the server reported a logical failure inside a 200 response body.
	StatusCode int
	// Message is the error message from the response body.
	Message string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("arc: %s", e.Message)
	}
	return fmt.Sprintf("arc: server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a server error for a missing resource.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

// IsAuthError reports whether err is an authentication or permission error.
func IsAuthError(err error) bool {
	var e *Error
	return errors.As(err, &e) &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// IsRateLimited reports whether err is a rate-limit rejection.
func IsRateLimited(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusTooManyRequests
}

// checkStatus returns nil if the response status is one of expected, and
// otherwise maps the response to a *Error, decoding the JSON error body the
// server emits ({"error": ...} or {"message": ...}).
func checkStatus(resp *http.Response, expected ...int) error {
	for _, code := range expected {
		if resp.StatusCode == code {
			return nil
		}
	}

	data, _ := io.ReadAll(resp.Body)
	msg := strings.TrimSpace(string(data))
	var body struct {
		ErrorMsg string `json:"error"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.ErrorMsg != "" {
			msg = body.ErrorMsg
		} else if body.Message != "" {
			msg = body.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{StatusCode: resp.StatusCode, Message: msg}
}

// apiError converts a logical failure reported inside a successful response
// body. The server signals missing resources through the error text.
func apiError(msg, fallback string) error {
	if msg == "" {
		msg = fallback
	}
	if strings.Contains(strings.ToLower(msg), "not found") {
		return &Error{StatusCode: http.StatusNotFound, Message: msg}
	}
	return &Error{Message: msg}
}

// sneakyBodyClose closes the body and ignores the error.
// This is useful to close the HTTP response body when we don't care about the error.
func sneakyBodyClose(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}
