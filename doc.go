// Package asyncloop manages the lifecycle of a shared cooperative event loop
// on behalf of synchronous callers running on arbitrary goroutines.
//
// The loop runs on one dedicated goroutine and executes submitted units of
// work cooperatively. Callers do not start or stop it directly: they hold
// activation tokens, and the loop runs exactly while at least one token is
// outstanding.
//
// # Quick Start
//
// Construct a module and bridge work into the loop:
//
//	mod, err := asyncloop.New(asyncloop.Config{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer mod.Close()
//
//	value, err := mod.Await(func(loop asyncloop.Loop) asyncloop.Outcome {
//		return asyncloop.Immediate(42)
//	})
//
// Await blocks the calling goroutine until the unit resolves inside the
// loop; failures come back with their identity preserved. AwaitAll
// dispatches a whole batch into one loop activation and returns per-unit
// outcomes in input order.
//
// # Key Concepts
//
// Token: a refcount-like handle returned by StartLoop. The first token
// spawns the loop goroutine; releasing the last one shuts it down, bounded
// by the configured stop timeout. Release is idempotent and safe from any
// goroutine.
//
// Unit and Outcome: a unit runs on the loop goroutine and returns either an
// immediate result or a Future that resolves later within the loop, so
// hooks and units can suspend cooperatively without blocking the loop.
//
// Worker: a five-phase lifecycle adapter (prepare, start, pause, stop,
// cleanup) that runs every hook inside the loop and holds one token for the
// worker's active lifetime.
//
// # Shutdown Semantics
//
// When the last token is released, pending units are drained under the
// configured stop timeout. On a zero or expired timeout the loop stops
// without cancelling anything: abandoned units stay attached to the loop and
// resume the next time it is started.
//
// # Backends
//
// The default builtin backend queues callbacks on a persistent FIFO; the
// ring backend trades it for a preallocated ring buffer with batched pops.
// Both are selected through Config; a caller may also inject its own
// core.Loop implementation.
package asyncloop
