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
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressGzip(t *testing.T) {
	data := bytes.Repeat([]byte("arc time series "), 1024)

	compressed, err := compressGzip(data)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data))

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	defer zr.Close()

	decompressed, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestCompressGzipConcurrent(t *testing.T) {
	// The writer pool must hand each goroutine an isolated encoder.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(seed byte) {
			defer wg.Done()
			data := bytes.Repeat([]byte{seed, seed + 1, seed + 2}, 4096)

			compressed, err := compressGzip(data)
			require.NoError(t, err)

			zr, err := gzip.NewReader(bytes.NewReader(compressed))
			require.NoError(t, err)
			defer zr.Close()

			decompressed, err := io.ReadAll(zr)
			require.NoError(t, err)
			require.Equal(t, data, decompressed)
		}(byte(i))
	}
	wg.Wait()
}
