package core

import "fmt"

// ConfigError reports an invalid configuration value. It is raised eagerly at
// construction time and is never retried.
type ConfigError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("asyncloop: invalid value %q for %q: %s", e.Value, e.Key, e.Reason)
}

// UnitPanicError wraps a panic recovered inside a bridged unit. The panic is
// captured on the loop goroutine so it never takes the loop down, and is
// handed back to the caller that submitted the unit.
type UnitPanicError struct {
	Value any
	Stack []byte
}

func (e *UnitPanicError) Error() string {
	return fmt.Sprintf("asyncloop: unit panicked: %v", e.Value)
}

// TransitionError reports an invalid worker lifecycle transition.
type TransitionError struct {
	Op   string
	From WorkerState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("asyncloop: cannot %s worker in state %s", e.Op, e.From)
}
