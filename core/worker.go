package core

import "sync"

// WorkerState is a phase of the worker lifecycle state machine.
type WorkerState int32

const (
	WorkerCreated WorkerState = iota
	WorkerPrepared
	WorkerRunning
	WorkerPaused
	WorkerStopped
	WorkerCleanedUp
)

func (s WorkerState) String() string {
	switch s {
	case WorkerCreated:
		return "created"
	case WorkerPrepared:
		return "prepared"
	case WorkerRunning:
		return "running"
	case WorkerPaused:
		return "paused"
	case WorkerStopped:
		return "stopped"
	case WorkerCleanedUp:
		return "cleaned_up"
	default:
		return "unknown"
	}
}

// Hooks is the contract a worker implementation must provide. Every hook
// executes on the loop goroutine and may return a Deferred outcome to
// suspend cooperatively without blocking the loop.
type Hooks interface {
	// OnPrepare performs one-time setup, e.g. binding a listener.
	OnPrepare(loop Loop) Outcome

	// OnStart begins (or resumes) serving.
	OnStart(loop Loop) Outcome

	// OnPause suspends serving without tearing anything down.
	OnPause(loop Loop) Outcome

	// OnCleanup releases resources. failure carries the first error from an
	// earlier phase, or nil, for diagnostic purposes.
	OnCleanup(loop Loop, failure error) Outcome
}

// StopHooks is optionally implemented alongside Hooks; workers without it
// get a no-op stop phase.
type StopHooks interface {
	OnStop(loop Loop) Outcome
}

// Worker drives a five-phase lifecycle (prepare, start, pause/resume, stop,
// cleanup) for a long-lived service object whose hooks run inside the loop.
// It holds a single activation token from Prepare until Stop or Cleanup, so
// the loop stays up for the worker's whole active lifetime.
//
// Every lifecycle method blocks the calling goroutine until its bridged hook
// has resolved. Methods are not intended to be called concurrently with each
// other; an orchestrator drives the worker from one goroutine at a time.
type Worker struct {
	hooks   Hooks
	manager *Manager
	bridge  *Bridge

	mu      sync.Mutex
	state   WorkerState
	token   *Token
	failure error
}

// NewWorker creates a worker in the Created state.
func NewWorker(manager *Manager, hooks Hooks) *Worker {
	if hooks == nil {
		panic("asyncloop: NewWorker requires hooks")
	}
	return &Worker{
		hooks:   hooks,
		manager: manager,
		bridge:  NewBridge(manager),
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the first hook failure recorded so far, or nil.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failure
}

// Prepare acquires the worker's lifetime token and runs OnPrepare inside the
// loop. On hook failure the error is returned and the token stays held; the
// caller is expected to eventually call Cleanup.
func (w *Worker) Prepare() error {
	w.mu.Lock()
	if w.state != WorkerCreated {
		defer w.mu.Unlock()
		return &TransitionError{Op: "prepare", From: w.state}
	}
	w.token = w.manager.StartLoop()
	w.mu.Unlock()

	if err := w.runHook(w.hooks.OnPrepare); err != nil {
		w.recordFailure(err)
		return err
	}
	w.setState(WorkerPrepared)
	return nil
}

// Start runs OnStart inside the loop, moving the worker to Running. Valid
// from Prepared and from Paused (resume). The lifetime token is untouched.
func (w *Worker) Start() error {
	w.mu.Lock()
	if w.state != WorkerPrepared && w.state != WorkerPaused {
		defer w.mu.Unlock()
		return &TransitionError{Op: "start", From: w.state}
	}
	w.mu.Unlock()

	if err := w.runHook(w.hooks.OnStart); err != nil {
		w.recordFailure(err)
		return err
	}
	w.setState(WorkerRunning)
	return nil
}

// Pause runs OnPause inside the loop, moving the worker to Paused. The
// lifetime token is untouched.
func (w *Worker) Pause() error {
	w.mu.Lock()
	if w.state != WorkerRunning {
		defer w.mu.Unlock()
		return &TransitionError{Op: "pause", From: w.state}
	}
	w.mu.Unlock()

	if err := w.runHook(w.hooks.OnPause); err != nil {
		w.recordFailure(err)
		return err
	}
	w.setState(WorkerPaused)
	return nil
}

// Stop runs OnStop inside the loop (a no-op unless the hooks implement
// StopHooks), then releases the lifetime token regardless of the hook
// outcome, then reports any hook failure.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.state != WorkerRunning && w.state != WorkerPaused {
		defer w.mu.Unlock()
		return &TransitionError{Op: "stop", From: w.state}
	}
	w.mu.Unlock()

	var err error
	if stopper, ok := w.hooks.(StopHooks); ok {
		err = w.runHook(stopper.OnStop)
	}
	w.releaseToken()
	w.setState(WorkerStopped)
	if err != nil {
		w.recordFailure(err)
	}
	return err
}

// Cleanup runs OnCleanup inside the loop, handing it the first failure from
// an earlier phase. The lifetime token is released on every exit path if
// Stop did not already release it, and the worker always ends up CleanedUp.
func (w *Worker) Cleanup() error {
	w.mu.Lock()
	if w.state == WorkerCleanedUp {
		defer w.mu.Unlock()
		return &TransitionError{Op: "cleanup", From: w.state}
	}
	failure := w.failure
	w.mu.Unlock()

	defer func() {
		w.releaseToken()
		w.setState(WorkerCleanedUp)
	}()

	if err := w.runHook(func(loop Loop) Outcome {
		return w.hooks.OnCleanup(loop, failure)
	}); err != nil {
		w.recordFailure(err)
		return err
	}
	return nil
}

func (w *Worker) runHook(hook func(loop Loop) Outcome) error {
	_, err := w.bridge.Await(Unit(hook))
	return err
}

func (w *Worker) setState(s WorkerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Worker) recordFailure(err error) {
	w.mu.Lock()
	if w.failure == nil {
		w.failure = err
	}
	w.mu.Unlock()
}

func (w *Worker) releaseToken() {
	w.mu.Lock()
	token := w.token
	w.token = nil
	w.mu.Unlock()
	if token != nil {
		token.Release()
	}
}
