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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awaitSend(t *testing.T, done <-chan struct{}, errCh <-chan error) error {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("send not resolved")
	}
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func TestWriteCableSizeTrigger(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	c := NewWriteCable(sink, WithBatchSize(3), WithFlushInterval(time.Hour))
	c.Start(ctx)
	defer c.Close()

	m := randomMeasurement(t)
	var dones []<-chan struct{}
	var errs []<-chan error
	for i := 0; i < 3; i++ {
		done, errCh := c.Send(testRecord(m))
		dones = append(dones, done)
		errs = append(errs, errCh)
	}

	for i := range dones {
		require.NoError(t, awaitSend(t, dones[i], errs[i]))
	}
	assert.Equal(t, 3, sink.rowsFor(m))
}

func TestWriteCableIntervalTrigger(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	c := NewWriteCable(sink, WithBatchSize(1000), WithFlushInterval(20*time.Millisecond))
	c.Start(ctx)
	defer c.Close()

	done1, err1 := c.Send(testRecord("cpu"))
	done2, err2 := c.Send(testRecord("mem"))

	// The ticker flushes every buffered measurement, no write needed.
	require.NoError(t, awaitSend(t, done1, err1))
	require.NoError(t, awaitSend(t, done2, err2))
	assert.Equal(t, 1, sink.rowsFor("cpu"))
	assert.Equal(t, 1, sink.rowsFor("mem"))
}

func TestWriteCableZeroIntervalFlushesEverySend(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	c := NewWriteCable(sink, WithBatchSize(100), WithFlushInterval(0))
	c.Start(ctx)
	defer c.Close()

	done1, err1 := c.Send(testRecord("cpu"))
	done2, err2 := c.Send(testRecord("mem"))
	require.NoError(t, awaitSend(t, done1, err1))
	require.NoError(t, awaitSend(t, done2, err2))

	assert.Equal(t, 1, sink.rowsFor("cpu"))
	assert.Equal(t, 1, sink.rowsFor("mem"))

	n, err := c.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWriteCableRejectedSendLeavesBufferUntouched(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	c := NewWriteCable(sink, WithBatchSize(1000), WithFlushInterval(time.Hour))
	c.Start(ctx)
	defer c.Close()

	c.Send(testRecord("cpu"))

	done, errCh := c.Send(Record{Fields: map[string]any{"v": 1.0}})
	require.ErrorIs(t, awaitSend(t, done, errCh), ErrInvalidArgument)

	n, err := c.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, sink.flushed())
}

func TestWriteCableFlush(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	c := NewWriteCable(sink, WithBatchSize(1000), WithFlushInterval(time.Hour))
	c.Start(ctx)
	defer c.Close()

	c.Send(testRecord("cpu"))
	c.Send(testRecord("cpu"))

	n, err := c.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 2, sink.rowsFor("cpu"))

	n, err = c.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWriteCableFlushError(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	sink.setErr(assert.AnError)
	c := NewWriteCable(sink, WithBatchSize(1000), WithFlushInterval(time.Hour))
	c.Start(ctx)

	done, errCh := c.Send(testRecord("cpu"))
	require.ErrorIs(t, c.Flush(ctx), assert.AnError)
	require.ErrorIs(t, awaitSend(t, done, errCh), assert.AnError)

	// The failed batch is dropped.
	n, err := c.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	sink.setErr(nil)
	require.NoError(t, c.Close())
}

func TestWriteCableValidationError(t *testing.T) {
	ctx := context.Background()
	c := NewWriteCable(&captureSink{}, WithFlushInterval(time.Hour))
	c.Start(ctx)
	defer c.Close()

	done, errCh := c.Send(Record{Fields: map[string]any{"v": 1.0}})
	require.ErrorIs(t, awaitSend(t, done, errCh), ErrInvalidArgument)

	// Empty batches resolve immediately as a no-op.
	done, errCh = c.SendColumnar("cpu", Columns{})
	require.NoError(t, awaitSend(t, done, errCh))
}

func TestWriteCableCloseFlushesPending(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	c := NewWriteCable(sink, WithBatchSize(1000), WithFlushInterval(time.Hour))
	c.Start(ctx)

	done, errCh := c.Send(testRecord("cpu"))
	require.NoError(t, c.Close())
	require.NoError(t, awaitSend(t, done, errCh))
	assert.Equal(t, 1, sink.rowsFor("cpu"))

	// Close is idempotent, sends after close fail fast.
	require.NoError(t, c.Close())
	done, errCh = c.Send(testRecord("cpu"))
	assert.ErrorIs(t, awaitSend(t, done, errCh), ErrClosed)

	_, err := c.PendingCount(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Flush(ctx), ErrClosed)
}

func TestWriteCableCloseWithFailingSink(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	sink.setErr(assert.AnError)
	c := NewWriteCable(sink, WithBatchSize(1000), WithFlushInterval(time.Hour))
	c.Start(ctx)

	done, errCh := c.Send(testRecord("cpu"))

	// The final flush fails; Close reports it but the cable is closed.
	require.ErrorIs(t, c.Close(), assert.AnError)
	require.ErrorIs(t, awaitSend(t, done, errCh), assert.AnError)
	require.NoError(t, c.Close())
}

func TestWriteCableSendsDoNotBlockDuringFlush(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	sink := &captureSink{gate: gate}
	c := NewWriteCable(sink, WithBatchSize(2), WithFlushInterval(time.Hour))
	c.Start(ctx)

	// Two sends hit the threshold; the flush stalls on the gate.
	d1, e1 := c.Send(testRecord("cpu"))
	d2, e2 := c.Send(testRecord("cpu"))

	// The cable loop stays responsive while the batch is in flight.
	sent := make(chan struct{})
	go func() {
		c.Send(testRecord("mem"))
		close(sent)
	}()
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked behind in-flight flush")
	}

	close(gate)
	require.NoError(t, awaitSend(t, d1, e1))
	require.NoError(t, awaitSend(t, d2, e2))

	sink.mu.Lock()
	sink.gate = nil
	sink.mu.Unlock()

	require.NoError(t, c.Close())
	assert.Equal(t, 2, sink.rowsFor("cpu"))
	assert.Equal(t, 1, sink.rowsFor("mem"))
}

// gatedSink stalls writes for measurements that have a gate registered.
// Gates must be set before the cable starts.
type gatedSink struct {
	captureSink
	gates map[string]chan struct{}
}

func (s *gatedSink) WriteColumnar(ctx context.Context, measurement string, columns Columns, opts ...WriteOption) error {
	if gate, ok := s.gates[measurement]; ok {
		<-gate
	}
	return s.captureSink.WriteColumnar(ctx, measurement, columns, opts...)
}

func TestWriteCableFlushNotStalledByLaterSends(t *testing.T) {
	ctx := context.Background()
	cpuGate := make(chan struct{})
	memGate := make(chan struct{})
	sink := &gatedSink{gates: map[string]chan struct{}{
		"cpu": cpuGate,
		"mem": memGate,
	}}
	c := NewWriteCable(sink, WithBatchSize(1), WithFlushInterval(time.Hour))
	c.Start(ctx)

	// The cpu batch goes in flight and stalls on its gate.
	done1, err1 := c.Send(testRecord("cpu"))

	flushErr := make(chan error, 1)
	go func() { flushErr <- c.Flush(ctx) }()
	time.Sleep(50 * time.Millisecond)

	// This send stalls on its own gate; the flush arrived before it and
	// must not wait for it.
	done2, err2 := c.Send(testRecord("mem"))

	close(cpuGate)
	select {
	case err := <-flushErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("flush stalled behind a later send")
	}
	require.NoError(t, awaitSend(t, done1, err1))

	close(memGate)
	require.NoError(t, awaitSend(t, done2, err2))
	require.NoError(t, c.Close())
}

func TestWriteCableMergesDifferentColumnSets(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	c := NewWriteCable(sink, WithBatchSize(1000), WithFlushInterval(time.Hour))
	c.Start(ctx)

	c.SendColumnar("cpu", Columns{"time": {int64(1)}, "usage": {10.0}})
	c.SendColumnar("cpu", Columns{"time": {int64(2)}, "temp": {70.0}})
	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Close())

	batches := sink.flushed()
	require.Len(t, batches, 1)
	merged := batches[0].columns
	assert.Equal(t, []any{int64(1), int64(2)}, merged["time"])
	assert.Equal(t, []any{10.0}, merged["usage"])
	assert.Equal(t, []any{70.0}, merged["temp"])
}
