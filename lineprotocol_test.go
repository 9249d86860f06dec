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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLineProtocol(t *testing.T) {
	line, err := formatLineProtocol("cpu",
		map[string]any{"usage": 55.2, "cores": 8, "idle": true, "state": "ok"},
		map[string]string{"host": "web-01", "region": "us-east-1"},
		1_700_000_000_000_000, "")
	require.NoError(t, err)
	assert.Equal(t,
		`cpu,host=web-01,region=us-east-1 cores=8i,idle=true,state="ok",usage=55.2 1700000000000000000`,
		line)
}

func TestFormatLineProtocolNoTimestamp(t *testing.T) {
	line, err := formatLineProtocol("cpu", map[string]any{"usage": 1.5}, nil, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "cpu usage=1.5", line)
}

func TestFormatLineProtocolEscaping(t *testing.T) {
	line, err := formatLineProtocol("my measurement",
		map[string]any{"field key": `va"lue\`},
		map[string]string{"tag,key": "a=b c"},
		0, "")
	require.NoError(t, err)
	assert.Equal(t, `my\ measurement,tag\,key=a\=b\ c field\ key="va\"lue\\"`, line)
}

func TestFormatLineProtocolSkipsEmptyTagValues(t *testing.T) {
	line, err := formatLineProtocol("cpu",
		map[string]any{"usage": 1.5},
		map[string]string{"host": "web-01", "rack": ""},
		0, "")
	require.NoError(t, err)
	assert.Equal(t, "cpu,host=web-01 usage=1.5", line)
}

func TestFormatLineProtocolTimeUnits(t *testing.T) {
	cases := []struct {
		unit TimeUnit
		want string
	}{
		{TimeUnitSeconds, "cpu usage=1i 5000000000"},
		{TimeUnitMilliseconds, "cpu usage=1i 5000000"},
		{TimeUnitMicroseconds, "cpu usage=1i 5000"},
		{"", "cpu usage=1i 5000"},
		{TimeUnitNanoseconds, "cpu usage=1i 5"},
	}
	for _, tc := range cases {
		line, err := formatLineProtocol("cpu", map[string]any{"usage": 1}, nil, 5, tc.unit)
		require.NoError(t, err)
		assert.Equal(t, tc.want, line, "unit %q", tc.unit)
	}

	_, err := formatLineProtocol("cpu", map[string]any{"usage": 1}, nil, 5, TimeUnit("weeks"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFormatLineProtocolRejectsBadInput(t *testing.T) {
	_, err := formatLineProtocol("", map[string]any{"usage": 1.5}, nil, 0, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = formatLineProtocol("cpu", nil, nil, 0, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = formatLineProtocol("cpu", map[string]any{"bad": []int{1}}, nil, 0, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFormatFieldValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{true, "true"},
		{false, "false"},
		{42, "42i"},
		{int64(-7), "-7i"},
		{uint8(255), "255i"},
		{1.5, "1.5"},
		{float32(2), "2"},
		{"plain", `"plain"`},
	}
	for _, tc := range cases {
		got, err := formatFieldValue(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
