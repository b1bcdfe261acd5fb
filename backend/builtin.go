// Package backend provides the loop implementations selectable through the
// asyncloop configuration: the default builtin scheduler and the ring
// scheduler. Both satisfy core.Loop and share the same abandon-don't-cancel
// contract: stopping a loop leaves queued callbacks and unresolved futures
// in place, and a later Run picks them up again.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strgat/go-asyncloop/core"
)

// ErrLoopClosed is returned by Close when the loop is still running, and
// reported for submissions after Close.
var ErrLoopClosed = errors.New("asyncloop: loop is closed")

// BuiltinLoop is the default cooperative scheduler: one dedicated goroutine
// draining a FIFO callback queue. The queue persists across Run invocations,
// which is what makes abandoned work resume on a restart.
//
// Post and PostDelayed are safe from any goroutine; everything else about
// the queued callbacks happens on the loop goroutine.
type BuiltinLoop struct {
	name string

	mu      sync.Mutex
	queue   []func()
	stopReq bool
	closed  bool

	pending     int
	idleWaiters []chan struct{}

	wake    chan struct{} // 1-buffered; tokens are wake-up hints, not work items
	running atomic.Bool
}

var _ core.Loop = (*BuiltinLoop)(nil)

var builtinSeq atomic.Int64

// NewBuiltinLoop creates a stopped builtin loop.
func NewBuiltinLoop() *BuiltinLoop {
	return &BuiltinLoop{
		name: fmt.Sprintf("builtin-%d", builtinSeq.Add(1)),
		wake: make(chan struct{}, 1),
	}
}

// Name returns the loop's identifier for logs and metrics.
func (l *BuiltinLoop) Name() string {
	return l.name
}

// IsRunning reports whether the loop goroutine is actively scheduling.
func (l *BuiltinLoop) IsRunning() bool {
	return l.running.Load()
}

// Run drains the callback queue until RequestStop. Leftover queue entries
// from a previous run execute first. started, if non-nil, is closed once the
// loop is committed to scheduling.
func (l *BuiltinLoop) Run(started chan<- struct{}) {
	l.running.Store(true)
	defer l.running.Store(false)
	if started != nil {
		close(started)
	}

	for {
		l.mu.Lock()
		if l.stopReq {
			l.stopReq = false
			l.mu.Unlock()
			return
		}
		if len(l.queue) > 0 {
			fn := l.queue[0]
			l.queue = l.queue[1:]
			l.mu.Unlock()
			fn()
			continue
		}
		l.mu.Unlock()

		// Queue looked empty; a submission racing past the check left a
		// token in wake, so this never sleeps through work.
		<-l.wake
	}
}

// RequestStop asks the current Run to return after the callback in flight.
func (l *BuiltinLoop) RequestStop() {
	l.mu.Lock()
	if !l.running.Load() {
		l.mu.Unlock()
		return
	}
	l.stopReq = true
	l.mu.Unlock()
	l.wakeUp()
}

// Post enqueues fn for execution on the loop goroutine. Submissions while
// the loop is stopped are queued and run on the next start; submissions
// after Close are dropped.
func (l *BuiltinLoop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.wakeUp()
}

// PostDelayed enqueues fn after at least delay. The timer runs on wall time;
// if the loop is stopped when it fires, fn waits in the queue for the next
// start.
func (l *BuiltinLoop) PostDelayed(fn func(), delay time.Duration) {
	if delay <= 0 {
		l.Post(fn)
		return
	}
	time.AfterFunc(delay, func() {
		l.Post(fn)
	})
}

func (l *BuiltinLoop) wakeUp() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// NewFuture creates a pending unit tracked by this loop.
func (l *BuiltinLoop) NewFuture() *core.Future {
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()
	return core.NewFuture(l.unitResolved)
}

func (l *BuiltinLoop) unitResolved() {
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
func (l *BuiltinLoop) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// WaitIdle blocks until no futures are pending or ctx is done.
func (l *BuiltinLoop) WaitIdle(ctx context.Context) error {
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

// Close releases the loop. The loop must be stopped; queued callbacks are
// discarded and later submissions are dropped.
func (l *BuiltinLoop) Close() error {
	if l.running.Load() {
		return ErrLoopClosed
	}
	l.mu.Lock()
	l.closed = true
	l.queue = nil
	l.mu.Unlock()
	return nil
}
