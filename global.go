package asyncloop

import (
	"sync"

	"github.com/strgat/go-asyncloop/backend"
	"github.com/strgat/go-asyncloop/core"
)

// The process-wide shared loop. Modules configured with use_global_loop all
// drive this one instance; none of them owns it, so module teardown stops it
// but never closes it.

var (
	globalMu   sync.Mutex
	globalLoop *backend.BuiltinLoop
)

// GlobalLoop returns the process-wide shared builtin loop, creating it on
// first use.
func GlobalLoop() core.Loop {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLoop == nil {
		globalLoop = backend.NewBuiltinLoop()
	}
	return globalLoop
}

// CloseGlobalLoop closes the shared loop and forgets it; a later GlobalLoop
// call creates a fresh one. Intended for test teardown and orderly process
// exit. The loop must not be running.
func CloseGlobalLoop() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLoop == nil {
		return nil
	}
	err := globalLoop.Close()
	globalLoop = nil
	return err
}
