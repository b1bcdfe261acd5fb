package core

import (
	"context"
	"time"
)

// Loop is the cooperative scheduler contract consumed by the Manager and the
// Bridge. Implementations run all submitted callbacks on one dedicated
// goroutine (the loop goroutine); submissions may come from any goroutine.
//
// The backend package provides the builtin and ring implementations. A caller
// may also inject its own implementation, e.g. a process-wide shared loop.
type Loop interface {
	// Run is the run-forever entry point. It must be called on a dedicated
	// goroutine and blocks until RequestStop is observed. If started is
	// non-nil it is closed once the loop is actively scheduling, before the
	// first callback executes.
	//
	// Callbacks and futures left behind by a previous run are picked up
	// again: stopping a loop abandons pending work, it never cancels it.
	Run(started chan<- struct{})

	// RequestStop asks the current Run invocation to return after the
	// callback in flight (if any) completes. Safe to call from any
	// goroutine. A no-op if the loop is not running.
	RequestStop()

	// IsRunning reports whether a Run invocation is currently active.
	IsRunning() bool

	// Post enqueues fn for execution on the loop goroutine. Safe to call
	// from any goroutine. This is the only permitted way to hand work into
	// the loop from outside its goroutine.
	Post(fn func())

	// PostDelayed enqueues fn after at least delay has elapsed. The timer
	// keeps counting while the loop is stopped; fn then executes on the
	// next run.
	PostDelayed(fn func(), delay time.Duration)

	// NewFuture creates a pending unit tracked by this loop. The future
	// counts toward PendingCount until it is resolved or rejected.
	NewFuture() *Future

	// PendingCount returns the number of unresolved futures attached to
	// this loop.
	PendingCount() int

	// WaitIdle blocks until PendingCount reaches zero or ctx is done.
	WaitIdle(ctx context.Context) error

	// Name identifies the loop in logs and metrics.
	Name() string

	// Close releases the loop's resources. The loop must not be running.
	Close() error
}

// Unit is a caller-supplied computation executed on the loop goroutine. It
// returns an Outcome describing either an immediate result or a Future that
// resolves later within the same loop.
type Unit func(loop Loop) Outcome

// Outcome is the result of invoking a Unit: exactly one of an immediate
// value, an immediate failure, or a deferred Future.
type Outcome struct {
	value  any
	err    error
	future *Future
}

// Immediate returns an Outcome carrying a final value.
func Immediate(value any) Outcome {
	return Outcome{value: value}
}

// Fail returns an Outcome carrying a final error.
func Fail(err error) Outcome {
	return Outcome{err: err}
}

// Deferred returns an Outcome that completes when future resolves.
func Deferred(future *Future) Outcome {
	return Outcome{future: future}
}

// Result is one entry of a Bridge.AwaitAll response. OK reports whether the
// unit resolved successfully; exactly one of Value and Err is meaningful.
type Result struct {
	OK    bool
	Value any
	Err   error
}
