package core

import "sync"

// Future is a pending unit of work tracked by a Loop. It is created on or for
// a specific loop via Loop.NewFuture and resolved exactly once, on the loop
// goroutine. Completion callbacks run on the loop goroutine as well.
//
// A future that is still unresolved when its loop stops is not cancelled: it
// stays attached to the loop and resolves normally once the loop runs again
// and the callback that resolves it gets its turn.
type Future struct {
	mu        sync.Mutex
	resolved  bool
	value     any
	err       error
	callbacks []func(value any, err error)
	onResolve func()
}

// NewFuture creates a future. onResolve, if non-nil, fires exactly once when
// the future resolves or rejects; loop implementations use it to maintain
// their pending-unit count. Most callers should use Loop.NewFuture instead.
func NewFuture(onResolve func()) *Future {
	return &Future{onResolve: onResolve}
}

// Resolve completes the future with a value. Subsequent Resolve or Reject
// calls are no-ops. Must be called on the loop goroutine.
func (f *Future) Resolve(value any) {
	f.complete(value, nil)
}

// Reject completes the future with an error. Subsequent Resolve or Reject
// calls are no-ops. Must be called on the loop goroutine.
func (f *Future) Reject(err error) {
	f.complete(nil, err)
}

func (f *Future) complete(value any, err error) {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return
	}
	f.resolved = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	onResolve := f.onResolve
	f.onResolve = nil
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(value, err)
	}
	if onResolve != nil {
		onResolve()
	}
}

// OnDone registers a completion callback. If the future is already resolved
// the callback fires immediately on the calling goroutine; otherwise it fires
// on the loop goroutine when the future resolves.
func (f *Future) OnDone(cb func(value any, err error)) {
	f.mu.Lock()
	if !f.resolved {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()
	cb(value, err)
}

// Done reports whether the future has resolved.
func (f *Future) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved
}

// Result returns the final value and error. Only meaningful once Done
// reports true.
func (f *Future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}
