package monitor

import (
	"sync"
	"time"

	"github.com/yuca-profiler/yuca/internal/core/interval"
	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
	"github.com/yuca-profiler/yuca/internal/system"
	"github.com/yuca-profiler/yuca/internal/workers"
)

// tracker collects the snapshots of one source between start and stop.
type tracker interface {
	start() bool
	halt()
	signal() *domain.Signal
}

// periodicTracker samples on the shared scheduler.
type periodicTracker[S any] struct {
	source  system.Source[S]
	unit    domain.Unit
	sampler *workers.Sampler[S]
	log     logger.Logger
}

func newPeriodicTracker[S any](source system.Source[S], unit domain.Unit, period time.Duration, deps Deps) *periodicTracker[S] {
	sampler := workers.NewSampler(source.Name(), source.Sample, period, deps.Scheduler, deps.Log)
	if deps.Observer != nil {
		sampler.WithObserver(deps.Observer)
	}
	return &periodicTracker[S]{source: source, unit: unit, sampler: sampler, log: deps.Log}
}

func (t *periodicTracker[S]) start() bool { return t.sampler.Start() }
func (t *periodicTracker[S]) halt()       { t.sampler.Stop() }

func (t *periodicTracker[S]) signal() *domain.Signal {
	return buildSignal(t.source, t.unit, t.sampler.Stop(), t.log)
}

// manualTracker takes one snapshot at start and one at halt.
type manualTracker[S any] struct {
	source system.Source[S]
	unit   domain.Unit
	log    logger.Logger

	mu      sync.Mutex
	samples []S
}

func newManualTracker[S any](source system.Source[S], unit domain.Unit, log logger.Logger) *manualTracker[S] {
	return &manualTracker[S]{source: source, unit: unit, log: log}
}

func (t *manualTracker[S]) start() bool {
	t.take()
	return true
}

func (t *manualTracker[S]) halt() { t.take() }

func (t *manualTracker[S]) take() {
	sample, err := t.source.Sample()
	if err != nil {
		t.log.Debug("monitor: dropped sample", "source", t.source.Name(), "error", err)
		return
	}

	t.mu.Lock()
	t.samples = append(t.samples, sample)
	t.mu.Unlock()
}

func (t *manualTracker[S]) signal() *domain.Signal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return buildSignal(t.source, t.unit, t.samples, t.log)
}

func buildSignal[S any](source system.Source[S], unit domain.Unit, samples []S, log logger.Logger) *domain.Signal {
	if len(samples) < 2 {
		return nil
	}

	intervals, err := interval.ForwardApplyE(samples, source.Difference)
	if err != nil {
		log.Error("monitor: difference failed", "source", source.Name(), "error", err)
		return nil
	}
	return domain.NewSignal(unit, intervals, source.Name())
}
