package backend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strgat/go-asyncloop/core"
)

const (
	// defaultRingSize is the initial callback ring capacity. Must be a
	// power of two so the ring can mask instead of mod.
	defaultRingSize = 256

	// ringBatchSize bounds how many callbacks one pop takes, keeping stop
	// requests responsive under sustained load.
	ringBatchSize = 64
)

// RingLoop is the alternate scheduler behind the "ring" backend. It trades
// the builtin loop's append-only slice for a preallocated power-of-two ring
// buffer with batched pops under a condition variable, which keeps the hot
// submission path allocation-free and amortizes lock traffic when callbacks
// arrive in bursts.
//
// RingLoop does not support the process-wide shared instance; configuration
// requesting one falls back to a private loop with a warning.
type RingLoop struct {
	name string

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []func()
	head   int
	tail   int
	length int

	stopReq bool
	closed  bool

	pending     int
	idleWaiters []chan struct{}

	running atomic.Bool
}

var _ core.Loop = (*RingLoop)(nil)

var ringSeq atomic.Int64

// NewRingLoop creates a stopped ring loop.
func NewRingLoop() *RingLoop {
	l := &RingLoop{
		name: fmt.Sprintf("ring-%d", ringSeq.Add(1)),
		buf:  make([]func(), defaultRingSize),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Name returns the loop's identifier for logs and metrics.
func (l *RingLoop) Name() string {
	return l.name
}

// IsRunning reports whether the loop goroutine is actively scheduling.
func (l *RingLoop) IsRunning() bool {
	return l.running.Load()
}

// Run drains the ring until RequestStop, executing callbacks in batches.
// Callbacks left in the ring by a previous run execute first.
func (l *RingLoop) Run(started chan<- struct{}) {
	l.running.Store(true)
	defer l.running.Store(false)
	if started != nil {
		close(started)
	}

	batch := make([]func(), 0, ringBatchSize)
	for {
		l.mu.Lock()
		for l.length == 0 && !l.stopReq {
			l.cond.Wait()
		}
		if l.stopReq {
			l.stopReq = false
			l.mu.Unlock()
			return
		}
		batch = batch[:0]
		for l.length > 0 && len(batch) < ringBatchSize {
			batch = append(batch, l.buf[l.head])
			l.buf[l.head] = nil
			l.head = (l.head + 1) & (len(l.buf) - 1)
			l.length--
		}
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
	}
}

// RequestStop asks the current Run to return after the batch in flight.
func (l *RingLoop) RequestStop() {
	l.mu.Lock()
	if !l.running.Load() {
		l.mu.Unlock()
		return
	}
	l.stopReq = true
	l.mu.Unlock()
	l.cond.Signal()
}

// Post enqueues fn on the ring, growing it when full. Submissions while the
// loop is stopped stay in the ring for the next start; submissions after
// Close are dropped.
func (l *RingLoop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if l.length == len(l.buf) {
		l.grow()
	}
	l.buf[l.tail] = fn
	l.tail = (l.tail + 1) & (len(l.buf) - 1)
	l.length++
	l.mu.Unlock()
	l.cond.Signal()
}

// grow doubles the ring, unrolling the wrapped region. Caller holds l.mu.
func (l *RingLoop) grow() {
	next := make([]func(), len(l.buf)*2)
	n := copy(next, l.buf[l.head:])
	copy(next[n:], l.buf[:l.head])
	l.buf = next
	l.head = 0
	l.tail = l.length
}

// PostDelayed enqueues fn after at least delay, via the same ring.
func (l *RingLoop) PostDelayed(fn func(), delay time.Duration) {
	if delay <= 0 {
		l.Post(fn)
		return
	}
	time.AfterFunc(delay, func() {
		l.Post(fn)
	})
}

// NewFuture creates a pending unit tracked by this loop.
func (l *RingLoop) NewFuture() *core.Future {
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()
	return core.NewFuture(l.unitResolved)
}

func (l *RingLoop) unitResolved() {
	l.mu.Lock()
	l.pending--
	var waiters []chan struct{}
	if l.pending == 0 {
		waiters = l.idleWaiters
		l.idleWaiters = nil
	}
	l.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// PendingCount returns the number of unresolved futures attached to this loop.
func (l *RingLoop) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// WaitIdle blocks until no futures are pending or ctx is done.
func (l *RingLoop) WaitIdle(ctx context.Context) error {
	l.mu.Lock()
	if l.pending == 0 {
		l.mu.Unlock()
		return nil
	}
	w := make(chan struct{})
	l.idleWaiters = append(l.idleWaiters, w)
	l.mu.Unlock()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the loop. The loop must be stopped; ring contents are
// discarded and later submissions are dropped.
func (l *RingLoop) Close() error {
	if l.running.Load() {
		return ErrLoopClosed
	}
	l.mu.Lock()
	l.closed = true
	l.buf = nil
	l.head, l.tail, l.length = 0, 0, 0
	l.mu.Unlock()
	return nil
}
