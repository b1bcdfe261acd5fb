package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/strgat/go-asyncloop/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	tokensOutstanding   prom.Gauge
	tokensAcquiredTotal prom.Counter
	loopStartedTotal    *prom.CounterVec
	loopStoppedTotal    *prom.CounterVec
	abandonedUnitsTotal *prom.CounterVec
	shutdownAbortTotal  *prom.CounterVec
	unitDurationSeconds *prom.HistogramVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "asyncloop"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	tokensOutstanding := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "tokens_outstanding",
		Help:      "Number of activation tokens currently held.",
	})
	tokensAcquired := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_acquired_total",
		Help:      "Total number of activation tokens handed out.",
	})
	loopStarted := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "loop_started_total",
		Help:      "Total number of loop activations.",
	}, []string{"loop"})
	loopStopped := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "loop_stopped_total",
		Help:      "Total number of loop stops by reason.",
	}, []string{"loop", "reason"})
	abandonedUnits := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "abandoned_units_total",
		Help:      "Total number of pending units left unresolved by a stop.",
	}, []string{"loop"})
	shutdownAborted := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "shutdown_aborted_total",
		Help:      "Total number of shutdown drains aborted by a new token.",
	}, []string{"loop"})
	unitDuration := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "unit_duration_seconds",
		Help:      "Wall time of bridged units from submission to resolution.",
		Buckets:   buckets,
	}, []string{"outcome"})

	var err error
	if tokensOutstanding, err = registerCollector(reg, tokensOutstanding); err != nil {
		return nil, err
	}
	if tokensAcquired, err = registerCollector(reg, tokensAcquired); err != nil {
		return nil, err
	}
	if loopStarted, err = registerCollector(reg, loopStarted); err != nil {
		return nil, err
	}
	if loopStopped, err = registerCollector(reg, loopStopped); err != nil {
		return nil, err
	}
	if abandonedUnits, err = registerCollector(reg, abandonedUnits); err != nil {
		return nil, err
	}
	if shutdownAborted, err = registerCollector(reg, shutdownAborted); err != nil {
		return nil, err
	}
	if unitDuration, err = registerCollector(reg, unitDuration); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		tokensOutstanding:   tokensOutstanding,
		tokensAcquiredTotal: tokensAcquired,
		loopStartedTotal:    loopStarted,
		loopStoppedTotal:    loopStopped,
		abandonedUnitsTotal: abandonedUnits,
		shutdownAbortTotal:  shutdownAborted,
		unitDurationSeconds: unitDuration,
	}, nil
}

// RecordTokenAcquired records a token grant.
func (m *MetricsExporter) RecordTokenAcquired(outstanding int) {
	if m == nil {
		return
	}
	m.tokensAcquiredTotal.Inc()
	m.tokensOutstanding.Set(float64(outstanding))
}

// RecordTokenReleased records an effective token release.
func (m *MetricsExporter) RecordTokenReleased(outstanding int) {
	if m == nil {
		return
	}
	m.tokensOutstanding.Set(float64(outstanding))
}

// RecordLoopStarted records a confirmed loop activation.
func (m *MetricsExporter) RecordLoopStarted(loopName string) {
	if m == nil {
		return
	}
	m.loopStartedTotal.WithLabelValues(normalizeLabel(loopName, "unknown")).Inc()
}

// RecordLoopStopped records a loop stop and any units it abandoned.
func (m *MetricsExporter) RecordLoopStopped(loopName string, reason string, abandoned int) {
	if m == nil {
		return
	}
	loop := normalizeLabel(loopName, "unknown")
	m.loopStoppedTotal.WithLabelValues(loop, normalizeLabel(reason, "unknown")).Inc()
	if abandoned > 0 {
		m.abandonedUnitsTotal.WithLabelValues(loop).Add(float64(abandoned))
	}
}

// RecordShutdownAborted records a drain aborted by a newly arriving token.
func (m *MetricsExporter) RecordShutdownAborted(loopName string) {
	if m == nil {
		return
	}
	m.shutdownAbortTotal.WithLabelValues(normalizeLabel(loopName, "unknown")).Inc()
}

// RecordUnitDuration records a bridged unit's wall time.
func (m *MetricsExporter) RecordUnitDuration(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.unitDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
