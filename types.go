package asyncloop

import "github.com/strgat/go-asyncloop/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the asyncloop package for most use cases.

// Loop is the cooperative scheduler contract.
type Loop = core.Loop

// Unit is a computation executed on the loop goroutine.
type Unit = core.Unit

// Outcome is the result of a Unit: immediate value, immediate failure, or a
// deferred Future.
type Outcome = core.Outcome

// Future is a pending unit of work tracked by a loop.
type Future = core.Future

// Result is one entry of an AwaitAll response.
type Result = core.Result

// Token represents one outstanding requirement that the loop keep running.
type Token = core.Token

// Manager owns a loop and its activation tokens.
type Manager = core.Manager

// Bridge runs units inside the loop on behalf of synchronous callers.
type Bridge = core.Bridge

// Worker drives the five-phase lifecycle state machine.
type Worker = core.Worker

// Hooks is the contract a worker implementation must provide.
type Hooks = core.Hooks

// StopHooks optionally adds a stop hook to a worker implementation.
type StopHooks = core.StopHooks

// WorkerState is a phase of the worker lifecycle.
type WorkerState = core.WorkerState

// StopTimeout bounds the shutdown drain.
type StopTimeout = core.StopTimeout

// Logger is the structured logging interface used across the module.
type Logger = core.Logger

// Metrics is the observability sink interface.
type Metrics = core.Metrics

// Worker lifecycle states.
const (
	WorkerCreated   = core.WorkerCreated
	WorkerPrepared  = core.WorkerPrepared
	WorkerRunning   = core.WorkerRunning
	WorkerPaused    = core.WorkerPaused
	WorkerStopped   = core.WorkerStopped
	WorkerCleanedUp = core.WorkerCleanedUp
)

// Convenience constructors re-exported from core.
var (
	Immediate = core.Immediate
	Fail      = core.Fail
	Deferred  = core.Deferred
	StopWait  = core.StopWait
	StopAfter = core.StopAfter
	F         = core.F
)
