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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValidate(t *testing.T) {
	r := Record{Measurement: "cpu", Fields: map[string]any{"usage": 1.0}}
	require.NoError(t, r.validate())

	r = Record{Fields: map[string]any{"usage": 1.0}}
	assert.ErrorIs(t, r.validate(), ErrInvalidArgument)

	r = Record{Measurement: "cpu"}
	assert.ErrorIs(t, r.validate(), ErrInvalidArgument)
}

func TestRecordColumns(t *testing.T) {
	r := Record{
		Measurement: "cpu",
		Timestamp:   12345,
		Fields:      map[string]any{"usage": 55.2, "cores": 8},
		Tags:        map[string]string{"host": "web-01"},
	}
	columns, err := r.columns()
	require.NoError(t, err)

	assert.Equal(t, []any{int64(12345)}, columns["time"])
	assert.Equal(t, []any{55.2}, columns["usage"])
	assert.Equal(t, []any{8}, columns["cores"])
	assert.Equal(t, []any{"web-01"}, columns["host"])
}

func TestRecordColumnsStampsZeroTimestamp(t *testing.T) {
	before := time.Now().UnixMicro()
	r := Record{
		Measurement: "cpu",
		Fields:      map[string]any{"usage": 1.0},
	}
	columns, err := r.columns()
	require.NoError(t, err)
	after := time.Now().UnixMicro()

	ts, ok := columns["time"][0].(int64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, ts, before)
	assert.LessOrEqual(t, ts, after)
}

func TestRecordColumnsTagOverwritesField(t *testing.T) {
	r := Record{
		Measurement: "cpu",
		Timestamp:   1,
		Fields:      map[string]any{"host": 42},
		Tags:        map[string]string{"host": "web-01"},
	}
	columns, err := r.columns()
	require.NoError(t, err)
	assert.Equal(t, []any{"web-01"}, columns["host"])
}

func TestCheckScalar(t *testing.T) {
	for _, v := range []any{nil, true, "s", 1, int8(1), int16(1), int32(1), int64(1),
		uint(1), uint8(1), uint16(1), uint32(1), uint64(1), float32(1.5), 1.5} {
		assert.NoError(t, checkScalar(v))
	}

	assert.ErrorIs(t, checkScalar([]int{1}), ErrInvalidArgument)
	assert.ErrorIs(t, checkScalar(map[string]any{}), ErrInvalidArgument)
	assert.ErrorIs(t, checkScalar(struct{}{}), ErrInvalidArgument)
	assert.ErrorIs(t, checkScalar(time.Now()), ErrInvalidArgument)
}

func TestToInt64(t *testing.T) {
	for _, v := range []any{1, int8(1), int16(1), int32(1), int64(1),
		uint(1), uint8(1), uint16(1), uint32(1), uint64(1), float32(1), float64(1)} {
		n, err := toInt64(v)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}

	_, err := toInt64("1")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
