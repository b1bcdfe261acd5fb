package core

import (
	"context"
	"sync"
	"time"
)

// Shutdown phases. A drain can only move draining -> aborted or
// draining -> stopping; aborted and stopping are final.
const (
	phaseDraining = iota
	phaseAborted
	phaseStopping
)

// shutdownState coordinates one shutdown attempt. It exists only during the
// window between the last token release and the loop stop (or the abort).
type shutdownState struct {
	start   time.Time
	abortCh chan struct{}
	done    chan struct{} // closed by the manager once shutdown settled

	mu    sync.Mutex
	phase int
}

func newShutdownState() *shutdownState {
	return &shutdownState{
		start:   time.Now(),
		abortCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// tryAbort attempts to cancel the drain because a new token arrived. It
// succeeds while the drain is still waiting (or already aborted); it fails
// once the coordinator has committed to stopping the loop.
func (s *shutdownState) tryAbort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case phaseDraining:
		s.phase = phaseAborted
		close(s.abortCh)
		return true
	case phaseAborted:
		return true
	default:
		return false
	}
}

// commit moves the drain into the stopping phase unless it was aborted
// first. Returns false if an abort won the race.
func (s *shutdownState) commit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == phaseAborted {
		return false
	}
	s.phase = phaseStopping
	return true
}

// drain implements the shutdown algorithm: stop right away when nothing is
// pending, abandon on an immediate timeout, otherwise wait for the loop to
// go idle bounded by the deadline. Pending units are never cancelled; an
// abandoned unit resumes the next time the loop is started.
//
// Returns aborted=true when a concurrent StartLoop cancelled the drain, in
// which case the loop must be left running.
func (s *shutdownState) drain(loop Loop, timeout StopTimeout, logger Logger) (reason string, abandoned int, aborted bool) {
	pending := loop.PendingCount()
	if pending == 0 {
		if !s.commit() {
			return "", 0, true
		}
		return StopReasonDrained, 0, false
	}

	if timeout.Immediate() {
		if !s.commit() {
			return "", 0, true
		}
		logger.Warn("stopping loop with pending units; they resume on the next start",
			F("loop", loop.Name()), F("pending", pending))
		return StopReasonImmediate, pending, false
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout.Bounded() {
		ctx, cancel = context.WithDeadline(ctx, s.start.Add(timeout.Duration()))
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	idle := make(chan error, 1)
	go func() {
		idle <- loop.WaitIdle(ctx)
	}()

	select {
	case <-s.abortCh:
		return "", 0, true
	case err := <-idle:
		if !s.commit() {
			return "", 0, true
		}
		if err != nil {
			abandoned = loop.PendingCount()
			logger.Warn("drain deadline exceeded; abandoning pending units",
				F("loop", loop.Name()), F("pending", abandoned))
			return StopReasonDeadline, abandoned, false
		}
		return StopReasonDrained, 0, false
	}
}
