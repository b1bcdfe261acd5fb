package core

import (
	"runtime/debug"
	"sync"
	"time"
)

// Bridge runs units of work inside the loop on behalf of synchronous
// callers. Every call acquires an activation token for its duration, so the
// loop is guaranteed to be running while the unit is pending and may wind
// down once no caller needs it anymore.
type Bridge struct {
	manager *Manager
	metrics Metrics
}

// NewBridge creates a Bridge submitting into manager's loop.
func NewBridge(manager *Manager) *Bridge {
	return &Bridge{manager: manager, metrics: manager.metrics}
}

type completion struct {
	value any
	err   error
}

// Await submits unit into the loop and blocks until it resolves. The unit
// executes on the loop goroutine; its result or failure is handed back to
// the calling goroutine with its identity preserved. A panic inside the unit
// is captured as *UnitPanicError and never takes the loop down.
//
// The activation token is released on every exit path.
func (b *Bridge) Await(unit Unit) (any, error) {
	token := b.manager.StartLoop()
	defer token.Release()

	began := time.Now()
	done := make(chan completion, 1)
	b.submit(unit, func(value any, err error) {
		done <- completion{value: value, err: err}
	})
	c := <-done

	b.metrics.RecordUnitDuration(c.err == nil, time.Since(began))
	return c.value, c.err
}

// AwaitAll submits every unit into the loop before waiting, so the units run
// concurrently with respect to each other within one loop activation. It
// blocks until all of them have resolved and returns one Result per unit, in
// input order. A failing unit yields Result{OK: false, Err: err}; the batch
// itself never fails.
//
// One token covers the whole batch.
func (b *Bridge) AwaitAll(units []Unit) []Result {
	results := make([]Result, len(units))
	if len(units) == 0 {
		return results
	}

	token := b.manager.StartLoop()
	defer token.Release()

	began := time.Now()
	var wg sync.WaitGroup
	wg.Add(len(units))
	for i, unit := range units {
		i, unit := i, unit
		b.submit(unit, func(value any, err error) {
			if err != nil {
				results[i] = Result{Err: err}
			} else {
				results[i] = Result{OK: true, Value: value}
			}
			wg.Done()
		})
	}
	wg.Wait()

	for _, r := range results {
		b.metrics.RecordUnitDuration(r.OK, time.Since(began))
	}
	return results
}

// submit posts unit into the loop and arranges for complete to be called
// exactly once with its final value or error. complete runs on the loop
// goroutine, except for the already-resolved deferred case where it may run
// inline.
func (b *Bridge) submit(unit Unit, complete func(value any, err error)) {
	loop := b.manager.Loop()
	loop.Post(func() {
		outcome := runUnit(unit, loop)
		if outcome.future != nil {
			outcome.future.OnDone(complete)
			return
		}
		complete(outcome.value, outcome.err)
	})
}

// runUnit invokes unit on the loop goroutine, converting panics into a
// failed outcome so the loop survives.
func runUnit(unit Unit, loop Loop) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Fail(&UnitPanicError{Value: r, Stack: debug.Stack()})
		}
	}()
	return unit(loop)
}
