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
	"fmt"
	"time"
)

// Columns is a columnar batch: one ordered value slice per column. All
// slices submitted in a single batch are expected to share the same length;
// that is the producer's responsibility and the buffering layer does not
// re-validate it across columns.
//
// Column values are restricted to a closed set of scalar kinds: nil,
// booleans, strings, integers, and floats. The restriction is enforced at
// the encoding boundary, see checkScalar.
type Columns map[string][]any

// Record is a single row offered to the ingestion API.
type Record struct {
	// Measurement is the target stream (table) name. Required.
	Measurement string
	// Timestamp is microseconds since epoch. Zero means "now", stamped at
	// the moment the record is buffered or encoded, not at flush time.
	Timestamp int64
	// Fields maps field names to scalar values. Required, non-empty.
	Fields map[string]any
	// Tags maps tag keys to tag values. Optional.
	Tags map[string]string
}

// validate checks the constraints shared by every ingestion path.
func (r *Record) validate() error {
	if r.Measurement == "" {
		return fmt.Errorf("%w: record must have a measurement", ErrInvalidArgument)
	}
	if len(r.Fields) == 0 {
		return fmt.Errorf("%w: record must have at least one field", ErrInvalidArgument)
	}
	return nil
}

// columns converts the record into a one-row columnar batch, stamping the
// timestamp if the record carries none. Tag values overwrite fields of the
// same name, matching the wire format's column namespace.
func (r *Record) columns() (Columns, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	ts := r.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMicro()
	}

	columns := make(Columns, len(r.Fields)+len(r.Tags)+1)
	columns["time"] = []any{ts}
	for name, value := range r.Fields {
		columns[name] = []any{value}
	}
	for name, value := range r.Tags {
		columns[name] = []any{value}
	}
	return columns, nil
}

// checkScalar restricts column values to the scalar kinds the server
// understands. Anything else would serialize but fail ingestion server-side,
// so it is rejected here instead.
func checkScalar(v any) error {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return nil
	}
	return fmt.Errorf("%w: unsupported column value type %T", ErrInvalidArgument, v)
}

// toInt64 coerces a numeric column value to int64. Timestamp columns may
// arrive as any integer or float kind depending on how the caller built them.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("%w: timestamp value has non-numeric type %T", ErrInvalidArgument, v)
}
