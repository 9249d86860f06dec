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

	"github.com/vmihailenco/msgpack/v5"
)

// Wire payloads for the server's binary write endpoint. The columnar shape
// is the preferred format; the row shape is kept for compatibility with
// older tooling.
//
//	columnar: {"m": "cpu", "columns": {"time": [...], "usage": [...]}}
//	row:      {"m": "cpu", "t": 1633024800000000, "fields": {...}, "tags": {...}}
type columnarPayload struct {
	Measurement string           `msgpack:"m"`
	Columns     map[string][]any `msgpack:"columns"`
}

type rowPayload struct {
	Measurement string            `msgpack:"m"`
	Timestamp   int64             `msgpack:"t"`
	Fields      map[string]any    `msgpack:"fields"`
	Tags        map[string]string `msgpack:"tags"`
}

// encodeColumnar serializes one measurement's columnar batch. All columns
// must share the same length. A missing time column is generated from the
// current clock, one microsecond apart per row; timestamps in other units
// are normalized to microseconds.
func encodeColumnar(measurement string, columns Columns, unit TimeUnit) ([]byte, error) {
	if measurement == "" {
		return nil, fmt.Errorf("%w: measurement name cannot be empty", ErrInvalidArgument)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: columns cannot be empty", ErrInvalidArgument)
	}

	rows := -1
	for name, values := range columns {
		if rows < 0 {
			rows = len(values)
		} else if len(values) != rows {
			return nil, fmt.Errorf("%w: column %q has %d values, want %d",
				ErrInvalidArgument, name, len(values), rows)
		}
		for _, v := range values {
			if err := checkScalar(v); err != nil {
				return nil, err
			}
		}
	}

	if _, ok := columns["time"]; !ok {
		withTime := make(Columns, len(columns)+1)
		for name, values := range columns {
			withTime[name] = values
		}
		now := time.Now().UnixMicro()
		times := make([]any, rows)
		for i := range times {
			times[i] = now + int64(i)
		}
		withTime["time"] = times
		columns = withTime
	}

	normalized, err := normalizeTimestamps(columns, unit)
	if err != nil {
		return nil, err
	}

	return msgpack.Marshal(&columnarPayload{
		Measurement: measurement,
		Columns:     normalized,
	})
}

// encodeRecords serializes row-format records as a MessagePack array.
// Records missing a timestamp are stamped with the current time in
// microseconds.
func encodeRecords(records []Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: records cannot be empty", ErrInvalidArgument)
	}

	payload := make([]rowPayload, 0, len(records))
	for i := range records {
		r := &records[i]
		if err := r.validate(); err != nil {
			return nil, err
		}
		for _, v := range r.Fields {
			if err := checkScalar(v); err != nil {
				return nil, err
			}
		}
		ts := r.Timestamp
		if ts == 0 {
			ts = time.Now().UnixMicro()
		}
		tags := r.Tags
		if tags == nil {
			tags = map[string]string{}
		}
		payload = append(payload, rowPayload{
			Measurement: r.Measurement,
			Timestamp:   ts,
			Fields:      r.Fields,
			Tags:        tags,
		})
	}
	return msgpack.Marshal(payload)
}

// normalizeTimestamps converts the time column to microseconds. The input
// columns are not mutated; a conversion copies the time column.
func normalizeTimestamps(columns Columns, unit TimeUnit) (map[string][]any, error) {
	var multiplier int64
	switch unit {
	case TimeUnitSeconds:
		multiplier = 1_000_000
	case TimeUnitMilliseconds:
		multiplier = 1_000
	case TimeUnitMicroseconds, "":
		multiplier = 1
	default:
		return nil, fmt.Errorf("%w: invalid time unit %q, must be s, ms, or us",
			ErrInvalidArgument, unit)
	}
	if multiplier == 1 {
		return columns, nil
	}

	times := columns["time"]
	converted := make([]any, len(times))
	for i, v := range times {
		ts, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		converted[i] = ts * multiplier
	}

	normalized := make(Columns, len(columns))
	for name, values := range columns {
		normalized[name] = values
	}
	normalized["time"] = converted
	return normalized, nil
}
