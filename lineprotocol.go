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
	"sort"
	"strconv"
	"strings"
)

// formatLineProtocol renders one point in the text write format:
//
//	measurement[,tag=value...] field=value[,field=value...] [timestamp]
//
// Tags and fields are emitted in sorted key order for deterministic output.
// The timestamp is rendered in nanoseconds, converted from unit; zero means
// no timestamp, letting the server assign one.
func formatLineProtocol(measurement string, fields map[string]any, tags map[string]string, timestamp int64, unit TimeUnit) (string, error) {
	if measurement == "" {
		return "", fmt.Errorf("%w: measurement name cannot be empty", ErrInvalidArgument)
	}
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: fields cannot be empty", ErrInvalidArgument)
	}

	var b strings.Builder
	b.WriteString(escapeMeasurement(measurement))

	for _, key := range sortedTagKeys(tags) {
		value := tags[key]
		if value == "" {
			continue
		}
		b.WriteByte(',')
		b.WriteString(escapeTagPart(key))
		b.WriteByte('=')
		b.WriteString(escapeTagPart(value))
	}

	b.WriteByte(' ')
	for i, key := range sortedFieldKeys(fields) {
		formatted, err := formatFieldValue(fields[key])
		if err != nil {
			return "", fmt.Errorf("field %q: %w", key, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeTagPart(key))
		b.WriteByte('=')
		b.WriteString(formatted)
	}

	if timestamp != 0 {
		ns, err := toNanoseconds(timestamp, unit)
		if err != nil {
			return "", err
		}
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(ns, 10))
	}

	return b.String(), nil
}

func sortedTagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedFieldKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// escapeMeasurement escapes commas and spaces in a measurement name.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, ",", `\,`)
	return strings.ReplaceAll(s, " ", `\ `)
}

// escapeTagPart escapes commas, equals signs, and spaces in tag keys, tag
// values, and field keys.
func escapeTagPart(s string) string {
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "=", `\=`)
	return strings.ReplaceAll(s, " ", `\ `)
}

// formatFieldValue renders a field value:
//
//	float   1.5          (no suffix)
//	integer 1i           (i suffix)
//	boolean true/false
//	string  "value"      (quoted, backslashes and quotes escaped)
func formatFieldValue(v any) (string, error) {
	switch value := v.(type) {
	case bool:
		if value {
			return "true", nil
		}
		return "false", nil
	case int:
		return strconv.FormatInt(int64(value), 10) + "i", nil
	case int8:
		return strconv.FormatInt(int64(value), 10) + "i", nil
	case int16:
		return strconv.FormatInt(int64(value), 10) + "i", nil
	case int32:
		return strconv.FormatInt(int64(value), 10) + "i", nil
	case int64:
		return strconv.FormatInt(value, 10) + "i", nil
	case uint:
		return strconv.FormatUint(uint64(value), 10) + "i", nil
	case uint8:
		return strconv.FormatUint(uint64(value), 10) + "i", nil
	case uint16:
		return strconv.FormatUint(uint64(value), 10) + "i", nil
	case uint32:
		return strconv.FormatUint(uint64(value), 10) + "i", nil
	case uint64:
		return strconv.FormatUint(value, 10) + "i", nil
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), nil
	case string:
		escaped := strings.ReplaceAll(value, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`, nil
	}
	return "", fmt.Errorf("%w: unsupported field value type %T", ErrInvalidArgument, v)
}

// toNanoseconds converts a timestamp from unit to nanoseconds, the unit the
// line protocol endpoint expects.
func toNanoseconds(timestamp int64, unit TimeUnit) (int64, error) {
	switch unit {
	case TimeUnitSeconds:
		return timestamp * 1_000_000_000, nil
	case TimeUnitMilliseconds:
		return timestamp * 1_000_000, nil
	case TimeUnitMicroseconds, "":
		return timestamp * 1_000, nil
	case TimeUnitNanoseconds:
		return timestamp, nil
	}
	return 0, fmt.Errorf("%w: invalid time unit %q, must be s, ms, us, or ns",
		ErrInvalidArgument, unit)
}
