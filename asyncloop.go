package asyncloop

import (
	"github.com/strgat/go-asyncloop/backend"
	"github.com/strgat/go-asyncloop/core"
)

// Option customizes Module construction.
type Option func(*options)

type options struct {
	logger  core.Logger
	metrics core.Metrics
	loop    core.Loop
}

// WithLogger sets the logger used by the module and its manager.
func WithLogger(logger core.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the metrics sink used by the manager and bridge.
func WithMetrics(metrics core.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithLoop injects an externally owned loop instead of constructing one from
// the configured backend. The module stops it on Close but never closes it;
// ownership stays with the caller.
func WithLoop(loop core.Loop) Option {
	return func(o *options) { o.loop = loop }
}

// Module is the configured entry point: it owns the loop manager and the
// bridge and exposes the public operations on them. Construct with New.
type Module struct {
	cfg     Config
	loop    core.Loop
	manager *core.Manager
	bridge  *core.Bridge
}

// New validates cfg, constructs the configured backend loop (or adopts an
// injected one) and wires the manager and bridge around it.
func New(cfg Config, opts ...Option) (*Module, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	o := options{logger: core.NewDefaultLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	loop, shared := o.loop, true
	if loop == nil {
		loop, shared = buildLoop(cfg, o.logger)
	}

	manager := core.NewManager(loop, core.ManagerConfig{
		StopTimeout: cfg.StopTimeout,
		SharedLoop:  shared,
		Logger:      o.logger,
		Metrics:     o.metrics,
	})
	return &Module{
		cfg:     cfg,
		loop:    loop,
		manager: manager,
		bridge:  core.NewBridge(manager),
	}, nil
}

// buildLoop constructs the backend loop. cfg.Backend has been validated.
func buildLoop(cfg Config, logger core.Logger) (loop core.Loop, shared bool) {
	switch cfg.Backend {
	case BackendRing:
		if cfg.UseGlobalLoop {
			logger.Warn(`ignoring value of "use_global_loop" when using ring backend`)
		}
		return backend.NewRingLoop(), false
	default:
		if cfg.UseGlobalLoop {
			return GlobalLoop(), true
		}
		return backend.NewBuiltinLoop(), false
	}
}

// Backend returns the configured backend identifier.
func (m *Module) Backend() string {
	return m.cfg.Backend
}

// Loop returns the underlying loop.
func (m *Module) Loop() core.Loop {
	return m.loop
}

// Manager returns the loop manager.
func (m *Module) Manager() *core.Manager {
	return m.manager
}

// StartLoop registers an activation token; the loop runs for as long as at
// least one token is outstanding. See core.Manager.StartLoop.
func (m *Module) StartLoop() *core.Token {
	return m.manager.StartLoop()
}

// Await runs unit inside the loop and blocks until it resolves. See
// core.Bridge.Await.
func (m *Module) Await(unit core.Unit) (any, error) {
	return m.bridge.Await(unit)
}

// AwaitAll runs units concurrently inside the loop and blocks until every
// one has resolved. See core.Bridge.AwaitAll.
func (m *Module) AwaitAll(units []core.Unit) []core.Result {
	return m.bridge.AwaitAll(units)
}

// NewWorker creates a lifecycle worker driving hooks through this module's
// loop.
func (m *Module) NewWorker(hooks core.Hooks) *core.Worker {
	return core.NewWorker(m.manager, hooks)
}

// Stats returns current observability data for the module's manager.
func (m *Module) Stats() core.ManagerStats {
	return m.manager.Stats()
}

// Close tears the module down: a still-running loop is stopped immediately
// and the loop is closed unless it is shared or was injected.
func (m *Module) Close() error {
	return m.manager.Close()
}
