package output

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-vision/pkg/tracking"
)

// Async decouples the frame loop from a slow or unreachable consumer.
// Deliver never blocks: records go into a bounded queue drained by a single
// worker, and when the queue is full the oldest record is dropped since only
// the newest target matters to the controller.
type Async struct {
	inner   Sink
	timeout time.Duration
	logger  *slog.Logger
	base    context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	queue  []tracking.OutputData
	size   int
	closed bool
	wake   chan struct{}
	done   chan struct{}

	drops     atomic.Uint64
	failures  atomic.Uint64
	delivered atomic.Uint64
}

// NewAsync starts the worker. size must be at least 1; timeout bounds each
// inner delivery and the final drain in Close.
func NewAsync(inner Sink, size int, timeout time.Duration, logger *slog.Logger) *Async {
	if size < 1 {
		size = 1
	}
	base, cancel := context.WithCancel(context.Background())
	a := &Async{
		inner:   inner,
		base:    base,
		cancel:  cancel,
		timeout: timeout,
		logger:  logger.With("output", inner.Name()),
		queue:   make([]tracking.OutputData, 0, size),
		size:    size,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Name() string { return a.inner.Name() }

// Deliver enqueues data. The context is not used; the worker applies its
// own timeout.
func (a *Async) Deliver(_ context.Context, data tracking.OutputData) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	dropped := false
	if len(a.queue) >= a.size {
		copy(a.queue, a.queue[1:])
		a.queue = a.queue[:len(a.queue)-1]
		dropped = true
	}
	a.queue = append(a.queue, data)
	a.mu.Unlock()

	if dropped {
		n := a.drops.Add(1)
		a.logger.Debug("dropped oldest target", "error", ErrQueueFull, "drops", n)
	}
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

// Drops returns how many records were discarded because the queue was full.
func (a *Async) Drops() uint64 { return a.drops.Load() }

// Failures returns how many inner deliveries returned an error.
func (a *Async) Failures() uint64 { return a.failures.Load() }

// Delivered returns how many inner deliveries succeeded.
func (a *Async) Delivered() uint64 { return a.delivered.Load() }

// Pending returns the current queue length.
func (a *Async) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

func (a *Async) pop() (tracking.OutputData, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return tracking.OutputData{}, false
	}
	data := a.queue[0]
	copy(a.queue, a.queue[1:])
	a.queue = a.queue[:len(a.queue)-1]
	return data, true
}

func (a *Async) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Async) run() {
	defer close(a.done)
	for {
		for {
			data, ok := a.pop()
			if !ok {
				break
			}
			a.deliver(data)
		}
		if a.isClosed() {
			return
		}
		<-a.wake
	}
}

func (a *Async) deliver(data tracking.OutputData) {
	ctx, cancel := context.WithTimeout(a.base, a.timeout)
	defer cancel()
	if err := a.inner.Deliver(ctx, data); err != nil {
		n := a.failures.Add(1)
		a.logger.Warn("delivery failed", "error", err, "failures", n)
		return
	}
	a.delivered.Add(1)
}

// Close stops accepting records and waits up to the timeout for the queue to
// drain. Past that, queued records are discarded and the in-flight delivery
// is cancelled. The inner output is closed only once the worker has
// returned; if it is still inside Deliver after a second timeout, Close
// returns ErrStuck and the inner output is closed when the worker exits.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}

	select {
	case <-a.done:
		a.cancel()
		return a.inner.Close()
	case <-time.After(a.timeout):
	}

	a.mu.Lock()
	left := len(a.queue)
	a.queue = a.queue[:0]
	a.mu.Unlock()
	a.cancel()
	a.logger.Warn("output drain timed out", "discarded", left)

	select {
	case <-a.done:
		return a.inner.Close()
	case <-time.After(a.timeout):
	}

	go func() {
		<-a.done
		if err := a.inner.Close(); err != nil {
			a.logger.Warn("deferred close failed", "error", err)
		}
	}()
	return fmt.Errorf("output %s: %w", a.inner.Name(), ErrStuck)
}
