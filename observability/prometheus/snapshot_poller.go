package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/strgat/go-asyncloop/core"
)

// ManagerSnapshotProvider provides current manager stats snapshots.
type ManagerSnapshotProvider interface {
	Stats() core.ManagerStats
}

// SnapshotPoller periodically exports Manager.Stats() snapshots into
// Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	managersMu sync.RWMutex
	managers   map[string]ManagerSnapshotProvider

	loopRunning  *prom.GaugeVec
	tokensHeld   *prom.GaugeVec
	unitsPending *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	loopRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "asyncloop",
		Name:      "loop_running",
		Help:      "Loop running state per manager (1=running, 0=stopped).",
	}, []string{"manager", "loop"})
	tokensHeld := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "asyncloop",
		Name:      "manager_tokens_held",
		Help:      "Outstanding activation tokens per manager.",
	}, []string{"manager", "loop"})
	unitsPending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "asyncloop",
		Name:      "manager_units_pending",
		Help:      "Unresolved pending units per manager.",
	}, []string{"manager", "loop"})

	var err error
	if loopRunning, err = registerCollector(reg, loopRunning); err != nil {
		return nil, err
	}
	if tokensHeld, err = registerCollector(reg, tokensHeld); err != nil {
		return nil, err
	}
	if unitsPending, err = registerCollector(reg, unitsPending); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:     interval,
		managers:     make(map[string]ManagerSnapshotProvider),
		loopRunning:  loopRunning,
		tokensHeld:   tokensHeld,
		unitsPending: unitsPending,
	}, nil
}

// AddManager adds or replaces a manager snapshot provider by name.
func (p *SnapshotPoller) AddManager(name string, provider ManagerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "manager")
	p.managersMu.Lock()
	p.managers[name] = provider
	p.managersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.managersMu.RLock()
	defer p.managersMu.RUnlock()
	for name, provider := range p.managers {
		stats := provider.Stats()
		loop := normalizeLabel(stats.LoopName, "unknown")
		if stats.Running {
			p.loopRunning.WithLabelValues(name, loop).Set(1)
		} else {
			p.loopRunning.WithLabelValues(name, loop).Set(0)
		}
		p.tokensHeld.WithLabelValues(name, loop).Set(float64(stats.TokensHeld))
		p.unitsPending.WithLabelValues(name, loop).Set(float64(stats.Pending))
	}
}
