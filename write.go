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
	"net/http"

	"github.com/rs/zerolog"
)

// TimeUnit is the unit of timestamps supplied by the caller.
type TimeUnit string

const (
	TimeUnitSeconds      TimeUnit = "s"
	TimeUnitMilliseconds TimeUnit = "ms"
	TimeUnitMicroseconds TimeUnit = "us"
	// TimeUnitNanoseconds is accepted by the line protocol path only; the
	// binary write format always carries microseconds.
	TimeUnitNanoseconds TimeUnit = "ns"
)

// WriteOption adjusts a single write call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	database string
	compress *bool
	timeUnit TimeUnit
}

// WithDatabase targets a database other than the client default.
func WithDatabase(database string) WriteOption {
	return func(o *writeOptions) {
		o.database = database
	}
}

// WithCompression overrides the client's compression setting for this call.
func WithCompression(enabled bool) WriteOption {
	return func(o *writeOptions) {
		o.compress = &enabled
	}
}

// WithTimeUnit declares the unit of the timestamps in this call. The
// default is microseconds.
func WithTimeUnit(unit TimeUnit) WriteOption {
	return func(o *writeOptions) {
		o.timeUnit = unit
	}
}

// WriteClient ingests time-series data using the MessagePack binary format
// (preferred) or the text line protocol. It is safe for concurrent use.
type WriteClient struct {
	http   *httpClient
	config *Config
	logger zerolog.Logger
}

func newWriteClient(hc *httpClient, config *Config, logger zerolog.Logger) *WriteClient {
	return &WriteClient{
		http:   hc,
		config: config,
		logger: logger.With().Str("component", "write").Logger(),
	}
}

func (w *WriteClient) options(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WriteColumnar writes one measurement's columnar batch. This is the
// highest-throughput ingestion path: the payload is encoded once and passed
// through server-side without row pivoting.
//
// The columns must all share the same length and must include a "time"
// column of microsecond timestamps (other units via WithTimeUnit); a
// missing time column is generated from the current clock.
func (w *WriteClient) WriteColumnar(ctx context.Context, measurement string, columns Columns, opts ...WriteOption) error {
	o := w.options(opts)
	data, err := encodeColumnar(measurement, columns, o.timeUnit)
	if err != nil {
		return err
	}
	return w.writeMsgPack(ctx, data, o)
}

// WriteRecords writes row-format records. For better throughput use
// WriteColumnar.
func (w *WriteClient) WriteRecords(ctx context.Context, records []Record, opts ...WriteOption) error {
	o := w.options(opts)
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}
	return w.writeMsgPack(ctx, data, o)
}

// WriteLineProtocol writes data in the text line protocol format; lines is
// one or more newline-separated points. Kept for compatibility with
// existing tooling; prefer WriteColumnar.
func (w *WriteClient) WriteLineProtocol(ctx context.Context, lines string, opts ...WriteOption) error {
	return w.writeLineProtocol(ctx, []byte(lines), w.options(opts))
}

// WritePoint writes a single point through the line protocol. A zero
// timestamp lets the server assign one.
func (w *WriteClient) WritePoint(ctx context.Context, measurement string, fields map[string]any, tags map[string]string, timestamp int64, opts ...WriteOption) error {
	o := w.options(opts)
	line, err := formatLineProtocol(measurement, fields, tags, timestamp, o.timeUnit)
	if err != nil {
		return err
	}
	return w.writeLineProtocol(ctx, []byte(line), o)
}

// Buffered creates a buffered writer that batches records on top of this
// client. See BufferedWriter for the batching discipline.
func (w *WriteClient) Buffered(opts ...BufferOption) *BufferedWriter {
	opts = append([]BufferOption{withBufferLogger(w.logger)}, opts...)
	return NewBufferedWriter(w, opts...)
}

// Cable creates a channel-based buffered writer on top of this client. See
// WriteCable.
func (w *WriteClient) Cable(opts ...BufferOption) *WriteCable {
	opts = append([]BufferOption{withBufferLogger(w.logger)}, opts...)
	return NewWriteCable(w, opts...)
}

func (w *WriteClient) writeMsgPack(ctx context.Context, data []byte, o writeOptions) error {
	return w.post(ctx, "/api/v1/write/msgpack", "application/msgpack", data, o)
}

func (w *WriteClient) writeLineProtocol(ctx context.Context, data []byte, o writeOptions) error {
	return w.post(ctx, "/api/v1/write/line-protocol", "text/plain; charset=utf-8", data, o)
}

func (w *WriteClient) post(ctx context.Context, path, contentType string, data []byte, o writeOptions) error {
	compress := !w.config.DisableCompression
	if o.compress != nil {
		compress = *o.compress
	}

	headers := http.Header{}
	if compress {
		var err error
		data, err = compressGzip(data)
		if err != nil {
			return err
		}
		headers.Set("Content-Encoding", "gzip")
	}
	if o.database != "" {
		headers.Set("x-arc-database", o.database)
	}

	resp, err := w.http.do(ctx, http.MethodPost, path, data, &requestOptions{
		contentType: contentType,
		headers:     headers,
	})
	if err != nil {
		return err
	}
	defer sneakyBodyClose(resp.Body)

	// The server replies 204 No Content on success.
	return checkStatus(resp, http.StatusOK, http.StatusNoContent)
}
