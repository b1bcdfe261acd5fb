package core

import (
	"runtime"
	"sync"
	"time"
)

// StopTimeout bounds how long releasing the last token waits for pending
// units to finish before the loop is stopped anyway.
//
// The zero value waits indefinitely. StopAfter(0) stops immediately,
// abandoning pending units. StopAfter(d) with d > 0 waits at most d, measured
// from the moment the last token was released.
type StopTimeout struct {
	bounded bool
	d       time.Duration
}

// StopWait returns the "no timeout" sentinel: wait for a full drain, however
// long it takes. Identical to the zero value.
func StopWait() StopTimeout {
	return StopTimeout{}
}

// StopAfter returns a bounded timeout. A zero duration means abandon pending
// units immediately.
func StopAfter(d time.Duration) StopTimeout {
	return StopTimeout{bounded: true, d: d}
}

// Unbounded reports whether shutdown waits indefinitely for pending units.
func (t StopTimeout) Unbounded() bool { return !t.bounded }

// Immediate reports whether shutdown abandons pending units without waiting.
func (t StopTimeout) Immediate() bool { return t.bounded && t.d <= 0 }

// Bounded reports whether shutdown waits with a positive deadline.
func (t StopTimeout) Bounded() bool { return t.bounded && t.d > 0 }

// Duration returns the configured wait. Only meaningful when Bounded.
func (t StopTimeout) Duration() time.Duration { return t.d }

func (t StopTimeout) String() string {
	switch {
	case !t.bounded:
		return "none"
	case t.d <= 0:
		return "0"
	default:
		return t.d.String()
	}
}

// ManagerConfig holds construction options for Manager. Logger and Metrics
// are optional; nil values fall back to NoOpLogger and NilMetrics.
type ManagerConfig struct {
	// StopTimeout bounds the shutdown drain when the last token is released.
	StopTimeout StopTimeout

	// SharedLoop marks the loop as externally owned (e.g. the process-wide
	// shared instance). Close will stop it but never close it.
	SharedLoop bool

	Logger  Logger
	Metrics Metrics
}

// Manager owns a Loop and the set of outstanding activation tokens. It
// guarantees the loop goroutine runs exactly while at least one token is
// held, modulo the brief shutdown negotiation window after the last release.
//
// All methods are safe for concurrent use from any number of goroutines.
type Manager struct {
	loop        Loop
	sharedLoop  bool
	stopTimeout StopTimeout
	logger      Logger
	metrics     Metrics

	mu          sync.Mutex
	tokens      int
	loopDone    chan struct{} // non-nil while the loop goroutine is alive
	loopStarted chan struct{} // closed once the current run confirmed scheduling
	shutdown    *shutdownState
	closed      bool
}

// Token represents one outstanding requirement that the loop keep running.
// Tokens are created by Manager.StartLoop and may be released from any
// goroutine; Release is idempotent.
//
// A token that becomes unreachable while still held is released by a
// finalizer as a safety net. Do not rely on it: release explicitly, normally
// with defer.
type Token struct {
	manager *Manager
	held    bool // guarded by manager.mu
}

// Release returns the token. Releasing the last outstanding token blocks
// until the loop has stopped, or returns immediately if the shutdown drain
// was aborted by a concurrent StartLoop. Subsequent calls are no-ops.
func (t *Token) Release() {
	t.manager.release(t)
}

// Held reports whether the token has not been released yet.
func (t *Token) Held() bool {
	t.manager.mu.Lock()
	defer t.manager.mu.Unlock()
	return t.held
}

// NewManager creates a Manager driving the given loop.
func NewManager(loop Loop, cfg ManagerConfig) *Manager {
	if loop == nil {
		panic("asyncloop: NewManager requires a loop")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NewNoOpLogger()
	}
	var metrics Metrics = cfg.Metrics
	if metrics == nil {
		metrics = &NilMetrics{}
	}
	return &Manager{
		loop:        loop,
		sharedLoop:  cfg.SharedLoop,
		stopTimeout: cfg.StopTimeout,
		logger:      logger,
		metrics:     metrics,
	}
}

// Loop returns the managed loop.
func (m *Manager) Loop() Loop {
	return m.loop
}

// IsRunning reports whether the loop goroutine is currently active.
func (m *Manager) IsRunning() bool {
	return m.loop.IsRunning()
}

// Stats returns current observability data for this manager.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	tokens := m.tokens
	m.mu.Unlock()
	return ManagerStats{
		LoopName:   m.loop.Name(),
		Running:    m.loop.IsRunning(),
		TokensHeld: tokens,
		Pending:    m.loop.PendingCount(),
	}
}

// StartLoop registers a new activation token. If it is the first outstanding
// token, the loop goroutine is spawned and StartLoop blocks until the loop
// confirms it is actively scheduling; otherwise it returns immediately.
//
// If a shutdown drain is in flight, StartLoop aborts it and keeps the loop
// running; if the loop is already past the point of no return, StartLoop
// waits for the stop to finish and starts a fresh run.
func (m *Manager) StartLoop() *Token {
	m.mu.Lock()
	for {
		if m.closed {
			m.mu.Unlock()
			panic("asyncloop: StartLoop on closed Manager")
		}
		sd := m.shutdown
		if sd == nil {
			break
		}
		if sd.tryAbort() {
			// Drain aborted, the loop keeps running for this token.
			tok := m.newTokenLocked()
			m.mu.Unlock()
			m.logger.Debug("shutdown aborted by new token")
			return tok
		}
		m.mu.Unlock()
		<-sd.done
		m.mu.Lock()
	}

	first := m.tokens == 0
	tok := m.newTokenLocked()
	if !first {
		started := m.loopStarted
		m.mu.Unlock()
		// The first caller may still be waiting for start confirmation; no
		// token is handed out before the loop is genuinely running.
		<-started
		return tok
	}

	started := make(chan struct{})
	done := make(chan struct{})
	m.loopStarted = started
	m.loopDone = done
	go func() {
		defer close(done)
		m.loop.Run(started)
	}()
	m.mu.Unlock()

	// Never hand out the first token before the loop is genuinely running.
	<-started
	m.metrics.RecordLoopStarted(m.loop.Name())
	m.logger.Debug("loop started", F("loop", m.loop.Name()))
	return tok
}

func (m *Manager) newTokenLocked() *Token {
	tok := &Token{manager: m, held: true}
	m.tokens++
	m.metrics.RecordTokenAcquired(m.tokens)
	runtime.SetFinalizer(tok, finalizeToken)
	return tok
}

// finalizeToken is the last-resort release path for tokens dropped without
// an explicit Release. Release may block on shutdown, so it runs on its own
// goroutine rather than the finalizer goroutine.
func finalizeToken(t *Token) {
	t.manager.logger.Warn("token was never released; releasing via finalizer")
	go t.Release()
}

func (m *Manager) release(t *Token) {
	m.mu.Lock()
	if !t.held {
		m.mu.Unlock()
		return
	}
	t.held = false
	m.tokens--
	runtime.SetFinalizer(t, nil)
	m.metrics.RecordTokenReleased(m.tokens)
	if m.tokens > 0 || m.closed {
		m.mu.Unlock()
		return
	}

	// Last token gone: negotiate shutdown outside the lock so the loop's
	// own submission path cannot deadlock against us.
	sd := newShutdownState()
	m.shutdown = sd
	loopDone := m.loopDone
	m.mu.Unlock()

	reason, abandoned, aborted := sd.drain(m.loop, m.stopTimeout, m.logger)
	if aborted {
		m.metrics.RecordShutdownAborted(m.loop.Name())
		m.mu.Lock()
		// The token that aborted this drain may itself have been released
		// already, installing a newer shutdown. Only clear our own state.
		if m.shutdown == sd {
			m.shutdown = nil
		}
		m.mu.Unlock()
		close(sd.done)
		return
	}

	m.loop.RequestStop()
	<-loopDone

	m.mu.Lock()
	m.shutdown = nil
	m.loopDone = nil
	m.loopStarted = nil
	m.mu.Unlock()
	close(sd.done)

	m.metrics.RecordLoopStopped(m.loop.Name(), reason, abandoned)
	m.logger.Debug("loop stopped",
		F("loop", m.loop.Name()), F("reason", reason), F("abandoned", abandoned))
}

// Close tears the manager down. A still-running loop is stopped immediately,
// abandoning pending units. The loop itself is closed unless it was marked
// as shared at construction.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sd := m.shutdown
	m.mu.Unlock()

	// Let an in-flight shutdown settle before forcing anything.
	if sd != nil {
		<-sd.done
	}

	m.mu.Lock()
	loopDone := m.loopDone
	m.loopDone = nil
	m.loopStarted = nil
	m.tokens = 0
	m.mu.Unlock()

	if loopDone != nil {
		m.loop.RequestStop()
		<-loopDone
		m.metrics.RecordLoopStopped(m.loop.Name(), StopReasonTeardown, m.loop.PendingCount())
	}
	if m.sharedLoop {
		return nil
	}
	return m.loop.Close()
}
