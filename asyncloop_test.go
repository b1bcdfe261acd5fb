package asyncloop

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/strgat/go-asyncloop/backend"
	"github.com/strgat/go-asyncloop/core"
)

// recordingLogger captures log messages for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) log(msg string) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, fields ...core.Field) { l.log(msg) }
func (l *recordingLogger) Info(msg string, fields ...core.Field)  { l.log(msg) }
func (l *recordingLogger) Warn(msg string, fields ...core.Field)  { l.log(msg) }
func (l *recordingLogger) Error(msg string, fields ...core.Field) { l.log(msg) }

func (l *recordingLogger) contains(fragment string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.messages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func newTestModule(t *testing.T, cfg Config, opts ...Option) *Module {
	t.Helper()
	opts = append([]Option{WithLogger(core.NewNoOpLogger())}, opts...)
	m, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// TestNew_InvalidBackend verifies construction-time validation
// Given: a config naming an unknown backend
// When: New runs
// Then: construction fails with a *core.ConfigError
func TestNew_InvalidBackend(t *testing.T) {
	// Act
	_, err := New(Config{Backend: "libuv"})

	// Assert
	var cerr *core.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("New() error = %v, want *core.ConfigError", err)
	}
	if cerr.Key != "backend" {
		t.Errorf("ConfigError.Key = %q, want %q", cerr.Key, "backend")
	}
}

// TestModule_Await_StoppedLoop verifies the headline use case
// Given: a fresh module whose loop has never run
// When: Await runs a unit
// Then: the loop is activated for the call and wound down afterwards
func TestModule_Await_StoppedLoop(t *testing.T) {
	// Arrange
	m := newTestModule(t, DefaultConfig())

	// Act
	value, err := m.Await(func(loop core.Loop) core.Outcome {
		return core.Immediate("hello")
	})

	// Assert
	if err != nil {
		t.Fatalf("Await() error = %v, want nil", err)
	}
	if value != "hello" {
		t.Errorf("Await() = %v, want hello", value)
	}
	if m.Manager().IsRunning() {
		t.Error("loop running after Await returned, want stopped")
	}
}

// TestModule_Await_RunningLoop verifies token sharing with Await
// Given: a module whose loop is held running by an explicit token
// When: Await runs a unit
// Then: the unit runs on the already-active loop, which keeps running
//       until the explicit token is released
func TestModule_Await_RunningLoop(t *testing.T) {
	// Arrange
	m := newTestModule(t, DefaultConfig())
	token := m.StartLoop()

	// Act
	value, err := m.Await(func(loop core.Loop) core.Outcome {
		return core.Immediate(1)
	})

	// Assert
	if err != nil || value != 1 {
		t.Fatalf("Await() = (%v, %v), want (1, nil)", value, err)
	}
	if !m.Manager().IsRunning() {
		t.Error("loop stopped while explicit token held, want running")
	}

	token.Release()
	if m.Manager().IsRunning() {
		t.Error("loop running after final release, want stopped")
	}
}

// TestModule_AwaitAll verifies the batch surface on the module
func TestModule_AwaitAll(t *testing.T) {
	// Arrange
	m := newTestModule(t, DefaultConfig())

	// Act
	results := m.AwaitAll([]core.Unit{
		func(loop core.Loop) core.Outcome { return core.Immediate("a") },
		func(loop core.Loop) core.Outcome { return core.Fail(errors.New("b failed")) },
	})

	// Assert
	if len(results) != 2 {
		t.Fatalf("AwaitAll() returned %d results, want 2", len(results))
	}
	if !results[0].OK || results[0].Value != "a" {
		t.Errorf("results[0] = %+v, want OK with a", results[0])
	}
	if results[1].OK || results[1].Err == nil {
		t.Errorf("results[1] = %+v, want failure", results[1])
	}
}

// TestModule_RingBackend verifies the alternate scheduler end to end
// Given: a module configured with the ring backend
// When: Await runs a deferred unit
// Then: the call round-trips through the ring loop
func TestModule_RingBackend(t *testing.T) {
	// Arrange
	m := newTestModule(t, Config{Backend: BackendRing})

	if m.Backend() != BackendRing {
		t.Fatalf("Backend() = %q, want %q", m.Backend(), BackendRing)
	}
	if _, ok := m.Loop().(*backend.RingLoop); !ok {
		t.Fatalf("Loop() = %T, want *backend.RingLoop", m.Loop())
	}

	// Act
	value, err := m.Await(func(loop core.Loop) core.Outcome {
		f := loop.NewFuture()
		loop.PostDelayed(func() { f.Resolve("rings") }, 10*time.Millisecond)
		return core.Deferred(f)
	})

	// Assert
	if err != nil || value != "rings" {
		t.Errorf("Await() = (%v, %v), want (rings, nil)", value, err)
	}
}

// TestModule_GlobalLoop_Shared verifies the process-wide loop
// Given: two modules configured to use the global loop
// When: both are constructed and one is closed
// Then: they share one loop instance, and closing a module leaves the
//       shared loop open for the other
func TestModule_GlobalLoop_Shared(t *testing.T) {
	// Arrange
	t.Cleanup(func() { CloseGlobalLoop() })
	cfg := Config{Backend: BackendBuiltin, UseGlobalLoop: true}
	first := newTestModule(t, cfg)
	second := newTestModule(t, cfg)

	// Assert - Same instance
	if first.Loop() != second.Loop() {
		t.Fatal("modules with use_global_loop got different loops, want shared")
	}
	if first.Loop() != GlobalLoop() {
		t.Fatal("module loop is not the global loop")
	}

	// Act - Closing one module must not close the shared loop
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil", err)
	}

	// Assert
	value, err := second.Await(func(loop core.Loop) core.Outcome {
		return core.Immediate("still here")
	})
	if err != nil || value != "still here" {
		t.Errorf("Await() on shared loop after sibling close = (%v, %v), want (still here, nil)", value, err)
	}
}

// TestModule_RingIgnoresGlobalLoop verifies the unsupported combination
// Given: ring backend with use_global_loop set
// When: the module is constructed
// Then: it warns, ignores the flag, and builds a private ring loop
func TestModule_RingIgnoresGlobalLoop(t *testing.T) {
	// Arrange
	t.Cleanup(func() { CloseGlobalLoop() })
	logger := &recordingLogger{}

	// Act
	m, err := New(Config{Backend: BackendRing, UseGlobalLoop: true}, WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	defer m.Close()

	// Assert
	if !logger.contains("use_global_loop") {
		t.Error("no warning mentioning use_global_loop was logged")
	}
	if _, ok := m.Loop().(*backend.RingLoop); !ok {
		t.Errorf("Loop() = %T, want private *backend.RingLoop", m.Loop())
	}
	if m.Loop() == GlobalLoop() {
		t.Error("ring module adopted the global loop, want private loop")
	}
}

// TestModule_WithLoop_OwnershipStaysOutside verifies loop injection
// Given: a module built around a caller-owned loop
// When: the module is closed
// Then: the loop is stopped but still open, and a second module can use it
func TestModule_WithLoop_OwnershipStaysOutside(t *testing.T) {
	// Arrange
	loop := backend.NewBuiltinLoop()
	defer loop.Close()

	first := newTestModule(t, DefaultConfig(), WithLoop(loop))
	if first.Loop() != loop {
		t.Fatal("Loop() is not the injected loop")
	}

	// Act
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil", err)
	}

	// Assert - Injected loop still serves a new module
	second := newTestModule(t, DefaultConfig(), WithLoop(loop))
	value, err := second.Await(func(l core.Loop) core.Outcome {
		return core.Immediate("reused")
	})
	if err != nil || value != "reused" {
		t.Errorf("Await() on reused injected loop = (%v, %v), want (reused, nil)", value, err)
	}
}

// TestModule_Worker verifies the worker surface on the module
func TestModule_Worker(t *testing.T) {
	// Arrange
	m := newTestModule(t, DefaultConfig())
	hooks := &noopHooks{}
	w := m.NewWorker(hooks)

	// Act / Assert
	if err := w.Prepare(); err != nil {
		t.Fatalf("Prepare() error = %v, want nil", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	if !m.Manager().IsRunning() {
		t.Error("loop stopped while worker running, want running")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v, want nil", err)
	}
	if err := w.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v, want nil", err)
	}
	if m.Manager().IsRunning() {
		t.Error("loop running after worker cleanup, want stopped")
	}
}

type noopHooks struct{}

func (noopHooks) OnPrepare(loop core.Loop) core.Outcome { return core.Immediate(nil) }
func (noopHooks) OnStart(loop core.Loop) core.Outcome   { return core.Immediate(nil) }
func (noopHooks) OnPause(loop core.Loop) core.Outcome   { return core.Immediate(nil) }
func (noopHooks) OnCleanup(loop core.Loop, failure error) core.Outcome {
	return core.Immediate(nil)
}

// TestModule_Stats verifies the module-level snapshot
func TestModule_Stats(t *testing.T) {
	// Arrange
	m := newTestModule(t, DefaultConfig())
	token := m.StartLoop()

	// Act
	stats := m.Stats()

	// Assert
	if !stats.Running || stats.TokensHeld != 1 {
		t.Errorf("Stats() = %+v, want running with 1 token", stats)
	}
	token.Release()
}
