package core

import "time"

// Stop reasons reported to Metrics.RecordLoopStopped.
const (
	StopReasonDrained   = "drained"
	StopReasonImmediate = "immediate"
	StopReasonDeadline  = "deadline"
	StopReasonTeardown  = "teardown"
)

// Metrics defines the interface for collecting loop lifecycle metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast; several are called while the
// manager lock is held.
type Metrics interface {
	// RecordTokenAcquired is called after StartLoop hands out a token.
	// outstanding is the token count including the new one.
	RecordTokenAcquired(outstanding int)

	// RecordTokenReleased is called after an effective Release.
	// outstanding is the remaining token count.
	RecordTokenReleased(outstanding int)

	// RecordLoopStarted is called once the loop confirmed it is scheduling.
	RecordLoopStarted(loopName string)

	// RecordLoopStopped is called once the loop goroutine has exited.
	// reason is one of the StopReason constants; abandoned is the number of
	// pending units left unresolved on the loop.
	RecordLoopStopped(loopName string, reason string, abandoned int)

	// RecordShutdownAborted is called when a drain in progress is aborted
	// by a newly arriving token.
	RecordShutdownAborted(loopName string)

	// RecordUnitDuration records the wall time a bridged unit took from
	// submission to resolution, as observed by the blocked caller.
	RecordUnitDuration(ok bool, duration time.Duration)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTokenAcquired(outstanding int)                            {}
func (m *NilMetrics) RecordTokenReleased(outstanding int)                            {}
func (m *NilMetrics) RecordLoopStarted(loopName string)                              {}
func (m *NilMetrics) RecordLoopStopped(loopName string, reason string, abandoned int) {}
func (m *NilMetrics) RecordShutdownAborted(loopName string)                          {}
func (m *NilMetrics) RecordUnitDuration(ok bool, duration time.Duration)             {}

// ManagerStats represents runtime observability state for a Manager.
type ManagerStats struct {
	LoopName   string
	Running    bool
	TokensHeld int
	Pending    int
}
