package arc

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// WriteCable is a channel-based buffered writer. Unlike BufferedWriter it
// owns a background goroutine: callers hand batches over a channel and get
// back a done/err channel pair per send, so no caller ever blocks behind
// another caller's flush.
//
// A measurement is flushed when its buffered row count reaches the batch
// size, and the whole buffer is flushed on every flush interval tick. A
// non-positive interval means every send flushes everything buffered.
// Flushes run on their own goroutines; the cable keeps accepting sends
// while batches are in flight.
//
// The err channel of a send is closed without a value when every batch the
// send was grouped into was written; it receives the sink error otherwise.
// Failed batches are dropped, not retried.
type WriteCable struct {
	sink   ColumnarSink
	opts   bufferOptions
	logger zerolog.Logger

	sendCh  chan *cableSend
	flushCh chan *cableFlush
	countCh chan chan int

	closed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type cableSend struct {
	measurement string
	columns     Columns
	rows        int

	err  chan error
	done chan struct{}
}

type cableFlush struct {
	err chan error
}

// NewWriteCable creates a cable on top of sink. Call Start before sending.
func NewWriteCable(sink ColumnarSink, opts ...BufferOption) *WriteCable {
	o := newBufferOptions(opts)
	return &WriteCable{
		sink:    sink,
		opts:    o,
		logger:  o.logger.With().Str("component", "cable").Logger(),
		sendCh:  make(chan *cableSend),
		flushCh: make(chan *cableFlush),
		countCh: make(chan chan int),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the cable's goroutine. ctx is the context passed to every
// sink write; canceling it fails in-flight and future flushes.
func (c *WriteCable) Start(ctx context.Context) {
	go c.run(ctx)
}

// Send buffers a single record. The done channel is closed when the record's
// batch has been resolved; err then yields the flush error, or is closed
// empty on success. Record validation errors are delivered the same way.
func (c *WriteCable) Send(record Record) (<-chan struct{}, <-chan error) {
	columns, err := record.columns()
	if err != nil {
		return resolvedSend(err)
	}
	return c.SendColumnar(record.Measurement, columns)
}

// SendColumnar buffers a columnar batch for measurement. Empty columns
// resolve immediately with no error.
func (c *WriteCable) SendColumnar(measurement string, columns Columns) (<-chan struct{}, <-chan error) {
	rows := columnRows(columns)
	if rows == 0 {
		return resolvedSend(nil)
	}

	send := &cableSend{
		measurement: measurement,
		columns:     columns,
		rows:        rows,
		err:         make(chan error, 1),
		done:        make(chan struct{}),
	}
	select {
	case c.sendCh <- send:
		return send.done, send.err
	case <-c.closed:
		return resolvedSend(ErrClosed)
	}
}

// Flush writes out everything buffered and waits for those batches, plus
// any already in flight, to resolve. Batches from sends that arrive after
// the flush do not postpone it. It returns the first flush error observed
// while waiting.
func (c *WriteCable) Flush(ctx context.Context) error {
	req := &cableFlush{err: make(chan error, 1)}
	select {
	case c.flushCh <- req:
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.err:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PendingCount reports the number of buffered rows not yet handed to a
// flush. It returns 0 once the cable is closed.
func (c *WriteCable) PendingCount(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	select {
	case c.countCh <- reply:
	case <-c.closed:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close flushes buffered rows, waits for in-flight batches, and stops the
// goroutine. The cable is closed even when the final flush fails; the error
// reports the failure. Close is idempotent: second and later calls return
// nil.
func (c *WriteCable) Close() error {
	var first bool
	c.closeOnce.Do(func() {
		first = true
		close(c.closed)
		<-c.done
	})
	if first {
		return c.closeErr
	}
	return nil
}

type cableResult struct {
	seq         int
	measurement string
	rows        int
	err         error
}

// flushWaiter is a Flush call waiting on the batches that were in flight
// when it arrived. Batches spawned later (seq >= barrier) do not postpone
// it.
type flushWaiter struct {
	req       *cableFlush
	barrier   int
	remaining int
}

func (c *WriteCable) run(ctx context.Context) {
	defer close(c.done)

	// A non-positive interval flushes on every enqueue instead; the
	// ticker is left nil so its case never fires.
	var tickC <-chan time.Time
	if c.opts.flushInterval > 0 {
		ticker := time.NewTicker(c.opts.flushInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	pending := make(map[string][]*cableSend)
	counts := make(map[string]int)
	results := make(chan cableResult)
	inflight := 0
	nextSeq := 0
	waiters := make([]*flushWaiter, 0)
	closing := false
	closedCh := c.closed

	flushMeasurement := func(m string) {
		sends := pending[m]
		rows := counts[m]
		delete(pending, m)
		delete(counts, m)
		if len(sends) == 0 {
			return
		}

		batches := make([]Columns, len(sends))
		for i, send := range sends {
			batches[i] = send.columns
		}
		merged := mergeColumns(batches)

		seq := nextSeq
		nextSeq++
		inflight++
		go func() {
			start := time.Now()
			err := c.sink.WriteColumnar(ctx, m, merged, c.opts.writeOpts...)
			for _, send := range sends {
				if err != nil {
					send.err <- err
				} else {
					close(send.err)
				}
				close(send.done)
			}
			if err != nil {
				c.logger.Error().
					Err(err).
					Str("measurement", m).
					Int("rows", rows).
					Msg("flush failed, batch dropped")
			} else {
				c.logger.Debug().
					Str("measurement", m).
					Int("rows", rows).
					Dur("elapsed", time.Since(start)).
					Msg("flushed batch")
			}
			results <- cableResult{seq: seq, measurement: m, rows: rows, err: err}
		}()
	}

	flushAll := func() {
		for m := range pending {
			flushMeasurement(m)
		}
	}

	for {
		if closing && inflight == 0 && len(pending) == 0 {
			return
		}

		select {
		case <-tickC:
			flushAll()

		case res := <-results:
			inflight--
			kept := waiters[:0]
			for _, w := range waiters {
				if res.seq >= w.barrier {
					kept = append(kept, w)
					continue
				}
				w.remaining--
				if res.err != nil {
					w.req.err <- res.err
					continue
				}
				if w.remaining == 0 {
					w.req.err <- nil
					continue
				}
				kept = append(kept, w)
			}
			waiters = kept
			if res.err != nil && closing && c.closeErr == nil {
				c.closeErr = res.err
			}

		case send := <-c.sendCh:
			if closing {
				send.err <- ErrClosed
				close(send.done)
				continue
			}
			pending[send.measurement] = append(pending[send.measurement], send)
			counts[send.measurement] += send.rows
			if counts[send.measurement] >= c.opts.batchSize {
				flushMeasurement(send.measurement)
			}
			if c.opts.flushInterval <= 0 {
				flushAll()
			}

		case req := <-c.flushCh:
			flushAll()
			if inflight == 0 {
				req.err <- nil
				continue
			}
			waiters = append(waiters, &flushWaiter{req: req, barrier: nextSeq, remaining: inflight})

		case reply := <-c.countCh:
			total := 0
			for _, n := range counts {
				total += n
			}
			reply <- total

		case <-closedCh:
			closedCh = nil
			closing = true
			flushAll()
		}
	}
}

func resolvedSend(err error) (<-chan struct{}, <-chan error) {
	errCh := make(chan error, 1)
	if err != nil {
		errCh <- err
	} else {
		close(errCh)
	}
	done := make(chan struct{})
	close(done)
	return done, errCh
}
