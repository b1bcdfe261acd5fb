package core_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/strgat/go-asyncloop/core"
)

// TestBridge_Await_ReturnsValue verifies the simple round trip
// Given: a unit that completes immediately with a value
// When: Await runs it
// Then: the value comes back to the caller and the loop winds down
func TestBridge_Await_ReturnsValue(t *testing.T) {
	// Arrange
	m := newTestManager(t, core.StopWait())
	bridge := core.NewBridge(m)

	// Act
	value, err := bridge.Await(func(loop core.Loop) core.Outcome {
		return core.Immediate(42)
	})

	// Assert
	if err != nil {
		t.Fatalf("Await() error = %v, want nil", err)
	}
	if value != 42 {
		t.Errorf("Await() = %v, want 42", value)
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true after Await returned, want false")
	}
}

// TestBridge_Await_ErrorIdentity verifies failures keep their identity
// Given: a unit that fails with a specific error value
// When: Await runs it
// Then: the very same error reaches the caller and the token is released
func TestBridge_Await_ErrorIdentity(t *testing.T) {
	// Arrange
	m := newTestManager(t, core.StopWait())
	bridge := core.NewBridge(m)
	sentinel := errors.New("listener refused")

	// Act
	value, err := bridge.Await(func(loop core.Loop) core.Outcome {
		return core.Fail(sentinel)
	})

	// Assert
	if !errors.Is(err, sentinel) {
		t.Errorf("Await() error = %v, want the original %v", err, sentinel)
	}
	if value != nil {
		t.Errorf("Await() value = %v, want nil on failure", value)
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true after failed Await, want false")
	}
}

// TestBridge_Await_DeferredOutcome verifies cooperative suspension
// Given: a unit that defers on a future resolved 50ms later
// When: Await runs it
// Then: the caller blocks until the future resolves and gets its value
func TestBridge_Await_DeferredOutcome(t *testing.T) {
	// Arrange
	m := newTestManager(t, core.StopWait())
	bridge := core.NewBridge(m)

	// Act
	began := time.Now()
	value, err := bridge.Await(func(loop core.Loop) core.Outcome {
		f := loop.NewFuture()
		loop.PostDelayed(func() { f.Resolve("ready") }, 50*time.Millisecond)
		return core.Deferred(f)
	})
	elapsed := time.Since(began)

	// Assert
	if err != nil {
		t.Fatalf("Await() error = %v, want nil", err)
	}
	if value != "ready" {
		t.Errorf("Await() = %v, want %q", value, "ready")
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("Await() returned after %v, want >= 50ms", elapsed)
	}
}

// TestBridge_Await_DeferredRejection verifies deferred failures propagate
// Given: a unit whose future is rejected later
// When: Await runs it
// Then: the rejection error reaches the caller
func TestBridge_Await_DeferredRejection(t *testing.T) {
	// Arrange
	m := newTestManager(t, core.StopWait())
	bridge := core.NewBridge(m)
	sentinel := errors.New("handshake failed")

	// Act
	_, err := bridge.Await(func(loop core.Loop) core.Outcome {
		f := loop.NewFuture()
		loop.Post(func() { f.Reject(sentinel) })
		return core.Deferred(f)
	})

	// Assert
	if !errors.Is(err, sentinel) {
		t.Errorf("Await() error = %v, want %v", err, sentinel)
	}
}

// TestBridge_Await_PanicBecomesError verifies panic containment
// Given: a unit that panics on the loop goroutine
// When: Await runs it
// Then: the caller gets a *UnitPanicError and the loop stays usable
func TestBridge_Await_PanicBecomesError(t *testing.T) {
	// Arrange
	m := newTestManager(t, core.StopWait())
	bridge := core.NewBridge(m)

	// Act
	_, err := bridge.Await(func(loop core.Loop) core.Outcome {
		panic("boom")
	})

	// Assert
	var panicErr *core.UnitPanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Await() error = %v, want *UnitPanicError", err)
	}
	if panicErr.Value != "boom" {
		t.Errorf("panic value = %v, want %q", panicErr.Value, "boom")
	}
	if len(panicErr.Stack) == 0 {
		t.Error("panic stack empty, want captured stack")
	}

	// Assert - The loop survived the panic
	value, err := bridge.Await(func(loop core.Loop) core.Outcome {
		return core.Immediate("alive")
	})
	if err != nil || value != "alive" {
		t.Errorf("Await() after panic = (%v, %v), want (alive, nil)", value, err)
	}
}

// TestBridge_AwaitAll_PreservesOrder verifies per-unit results
// Given: a batch mixing successes and failures
// When: AwaitAll runs them
// Then: results line up with the input order and failures stay per-unit
func TestBridge_AwaitAll_PreservesOrder(t *testing.T) {
	// Arrange
	m := newTestManager(t, core.StopWait())
	bridge := core.NewBridge(m)
	sentinel := errors.New("unit two failed")

	units := []core.Unit{
		func(loop core.Loop) core.Outcome { return core.Immediate("one") },
		func(loop core.Loop) core.Outcome { return core.Fail(sentinel) },
		func(loop core.Loop) core.Outcome { return core.Immediate("three") },
	}

	// Act
	results := bridge.AwaitAll(units)

	// Assert
	if len(results) != 3 {
		t.Fatalf("AwaitAll() returned %d results, want 3", len(results))
	}
	if !results[0].OK || results[0].Value != "one" {
		t.Errorf("results[0] = %+v, want OK with %q", results[0], "one")
	}
	if results[1].OK || !errors.Is(results[1].Err, sentinel) {
		t.Errorf("results[1] = %+v, want failure %v", results[1], sentinel)
	}
	if !results[2].OK || results[2].Value != "three" {
		t.Errorf("results[2] = %+v, want OK with %q", results[2], "three")
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true after AwaitAll returned, want false")
	}
}

// TestBridge_AwaitAll_RunsConcurrently verifies units overlap in the loop
// Given: five units that each defer for 100ms
// When: AwaitAll runs the batch
// Then: the batch finishes in roughly one delay, not five stacked delays
func TestBridge_AwaitAll_RunsConcurrently(t *testing.T) {
	// Arrange
	m := newTestManager(t, core.StopWait())
	bridge := core.NewBridge(m)

	const n = 5
	units := make([]core.Unit, n)
	for i := 0; i < n; i++ {
		i := i
		units[i] = func(loop core.Loop) core.Outcome {
			f := loop.NewFuture()
			loop.PostDelayed(func() { f.Resolve(i) }, 100*time.Millisecond)
			return core.Deferred(f)
		}
	}

	// Act
	began := time.Now()
	results := bridge.AwaitAll(units)
	elapsed := time.Since(began)

	// Assert
	if elapsed >= 250*time.Millisecond {
		t.Errorf("AwaitAll() took %v, want well under 5x100ms", elapsed)
	}
	for i, r := range results {
		if !r.OK || r.Value != i {
			t.Errorf("results[%d] = %+v, want OK with %d", i, r, i)
		}
	}
}

// TestBridge_AwaitAll_Empty verifies the degenerate batch
// Given: an empty batch
// When: AwaitAll runs it
// Then: it returns an empty slice without touching the loop
func TestBridge_AwaitAll_Empty(t *testing.T) {
	// Arrange
	m := newTestManager(t, core.StopWait())
	bridge := core.NewBridge(m)

	// Act
	results := bridge.AwaitAll(nil)

	// Assert
	if len(results) != 0 {
		t.Errorf("AwaitAll(nil) returned %d results, want 0", len(results))
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true after empty AwaitAll, want false")
	}
}

// TestBridge_Await_Concurrent verifies many independent callers
// Given: 20 goroutines each awaiting their own unit
// When: all run against one bridge
// Then: every caller gets its own value and the loop stops after the last
func TestBridge_Await_Concurrent(t *testing.T) {
	// Arrange
	m := newTestManager(t, core.StopWait())
	bridge := core.NewBridge(m)

	const n = 20
	errs := make(chan error, n)

	// Act
	for i := 0; i < n; i++ {
		i := i
		go func() {
			value, err := bridge.Await(func(loop core.Loop) core.Outcome {
				return core.Immediate(i)
			})
			if err != nil {
				errs <- err
				return
			}
			if value != i {
				errs <- fmt.Errorf("got %v, want %d", value, i)
				return
			}
			errs <- nil
		}()
	}

	// Assert
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("caller failed: %v", err)
		}
	}
	waitFor(t, time.Second, func() bool { return !m.IsRunning() })
}
