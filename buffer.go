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
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBatchSize is the per-measurement row count that triggers a
	// flush of that measurement.
	DefaultBatchSize = 10000

	// DefaultFlushInterval is how long buffered rows may sit before a
	// write flushes every measurement.
	DefaultFlushInterval = 5 * time.Second
)

// ColumnarSink receives flushed batches. WriteClient implements it; a sink
// must be safe for concurrent use when shared with a WriteCable.
type ColumnarSink interface {
	WriteColumnar(ctx context.Context, measurement string, columns Columns, opts ...WriteOption) error
}

// BufferOption configures a BufferedWriter or WriteCable.
type BufferOption func(*bufferOptions)

type bufferOptions struct {
	batchSize     int
	flushInterval time.Duration
	logger        zerolog.Logger
	writeOpts     []WriteOption
}

func newBufferOptions(opts []BufferOption) bufferOptions {
	o := bufferOptions{
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.batchSize <= 0 {
		o.batchSize = DefaultBatchSize
	}
	return o
}

// WithBatchSize sets the per-measurement row count that triggers a flush.
func WithBatchSize(n int) BufferOption {
	return func(o *bufferOptions) {
		o.batchSize = n
	}
}

// WithFlushInterval sets the maximum age of buffered rows before a write
// flushes all measurements. A non-positive interval makes every write flush
// everything buffered.
func WithFlushInterval(d time.Duration) BufferOption {
	return func(o *bufferOptions) {
		o.flushInterval = d
	}
}

// WithWriteOptions sets write options forwarded to every flush, for example
// WithDatabase to buffer into a non-default database.
func WithWriteOptions(opts ...WriteOption) BufferOption {
	return func(o *bufferOptions) {
		o.writeOpts = opts
	}
}

func withBufferLogger(logger zerolog.Logger) BufferOption {
	return func(o *bufferOptions) {
		o.logger = logger
	}
}

// BufferedWriter accumulates rows per measurement and flushes them as
// columnar batches. A measurement is flushed when its buffered row count
// reaches the batch size; independently, any write that finds the buffer
// older than the flush interval flushes every measurement. A non-positive
// interval means every write flushes everything. Flushing happens on the
// caller's goroutine; there is no background timer.
//
// The writer is safe for concurrent use. The lock is not held while a batch
// is in flight, so other goroutines keep buffering during a flush.
//
// A failed flush is reported to the caller and the batch is dropped; the
// writer does not retry and does not re-buffer failed rows. Callers that
// need delivery guarantees should keep their own copy until the write
// returns nil.
type BufferedWriter struct {
	sink   ColumnarSink
	opts   bufferOptions
	logger zerolog.Logger

	mu        sync.Mutex
	pending   map[string][]Columns
	counts    map[string]int
	lastFlush time.Time
	closed    bool
}

// NewBufferedWriter creates a buffered writer on top of sink.
func NewBufferedWriter(sink ColumnarSink, opts ...BufferOption) *BufferedWriter {
	o := newBufferOptions(opts)
	return &BufferedWriter{
		sink:      sink,
		opts:      o,
		logger:    o.logger.With().Str("component", "buffer").Logger(),
		pending:   make(map[string][]Columns),
		counts:    make(map[string]int),
		lastFlush: time.Now(),
	}
}

// Write buffers a single record. The returned error is nil when the record
// was buffered or flushed successfully; a flush error means the batch
// containing this record was dropped.
func (w *BufferedWriter) Write(ctx context.Context, record Record) error {
	columns, err := record.columns()
	if err != nil {
		return err
	}
	return w.WriteColumnar(ctx, record.Measurement, columns)
}

// WriteColumnar buffers a columnar batch for measurement. An empty column
// map is a no-op. Batches buffered for the same measurement may have
// different column sets; a batch missing a column contributes no values for
// it in the merged flush, so mixed column sets yield ragged output.
func (w *BufferedWriter) WriteColumnar(ctx context.Context, measurement string, columns Columns) error {
	n := columnRows(columns)
	if n == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	w.pending[measurement] = append(w.pending[measurement], columns)
	w.counts[measurement] += n

	// Size trigger first, then the time trigger; both may fire from the
	// same write, so a size flush of one measurement does not skip an
	// overdue flush of the rest.
	var firstErr error
	if w.counts[measurement] >= w.opts.batchSize {
		firstErr = w.flushMeasurementLocked(ctx, measurement)
	}
	if time.Since(w.lastFlush) >= w.opts.flushInterval {
		if err := w.flushAllLocked(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Flush writes out everything currently buffered. It returns the first
// flush error encountered; measurements after a failed one are still
// attempted.
func (w *BufferedWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.flushAllLocked(ctx)
}

// PendingCount reports the number of buffered rows across all measurements.
func (w *BufferedWriter) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for _, n := range w.counts {
		total += n
	}
	return total
}

// PendingMeasurements reports the measurements that currently have
// buffered rows.
func (w *BufferedWriter) PendingMeasurements() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.counts))
	for m, n := range w.counts {
		if n > 0 {
			names = append(names, m)
		}
	}
	return names
}

// Close flushes any buffered rows and marks the writer closed. The writer
// is closed even when the final flush fails; the error reports the failure.
// Close is idempotent: second and later calls return nil.
func (w *BufferedWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.flushAllLocked(ctx)
}

// flushAllLocked flushes every measurement with buffered rows. Caller holds
// w.mu. The key set is snapshotted up front: flushMeasurementLocked drops
// the lock while the batch is in flight, and rows buffered by other
// goroutines in that window belong to the next flush.
func (w *BufferedWriter) flushAllLocked(ctx context.Context) error {
	names := make([]string, 0, len(w.pending))
	for m := range w.pending {
		names = append(names, m)
	}

	var firstErr error
	for _, m := range names {
		if err := w.flushMeasurementLocked(ctx, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// flushMeasurementLocked takes ownership of measurement's buffered batches
// and writes them to the sink. Caller holds w.mu; the lock is released for
// the duration of the sink call so writers are not stalled behind network
// I/O. lastFlush only advances on success, so a failing sink keeps the
// interval trigger armed.
func (w *BufferedWriter) flushMeasurementLocked(ctx context.Context, measurement string) error {
	batches := w.pending[measurement]
	rows := w.counts[measurement]
	if rows == 0 {
		return nil
	}
	delete(w.pending, measurement)
	delete(w.counts, measurement)

	merged := mergeColumns(batches)

	w.mu.Unlock()
	start := time.Now()
	err := w.sink.WriteColumnar(ctx, measurement, merged, w.opts.writeOpts...)
	w.mu.Lock()

	if err != nil {
		w.logger.Error().
			Err(err).
			Str("measurement", measurement).
			Int("rows", rows).
			Msg("flush failed, batch dropped")
		return err
	}

	w.lastFlush = time.Now()
	w.logger.Debug().
		Str("measurement", measurement).
		Int("rows", rows).
		Dur("elapsed", time.Since(start)).
		Msg("flushed batch")
	return nil
}

// columnRows reports the row count of a batch, taken from any one column.
// Keeping column lengths consistent within a batch is the caller's job;
// lengths are not cross-checked here.
func columnRows(columns Columns) int {
	for _, values := range columns {
		return len(values)
	}
	return 0
}

// mergeColumns concatenates batches into a single columnar set. Batches may
// carry different column sets; a batch missing a column contributes nothing
// to it, so the merged columns can end up with differing lengths.
func mergeColumns(batches []Columns) Columns {
	if len(batches) == 0 {
		return Columns{}
	}
	if len(batches) == 1 {
		return batches[0]
	}

	merged := make(Columns)
	for _, b := range batches {
		for name, values := range b {
			merged[name] = append(merged[name], values...)
		}
	}
	return merged
}
