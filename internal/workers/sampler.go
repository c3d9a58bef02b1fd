// Package workers runs periodic sampling on a shared scheduler.
package workers

import (
	"slices"
	"sync"
	"time"

	"github.com/yuca-profiler/yuca/internal/logger"
)

// TickObserver is told about every completed tick.
type TickObserver interface {
	ObserveTick(source string, elapsed time.Duration, err error)
}

type samplerState int

const (
	samplerIdle samplerState = iota
	samplerRunning
	samplerStopped
)

// Sampler repeatedly reads a source at a fixed period on a shared Scheduler
// and keeps every successful reading.
type Sampler[T any] struct {
	name     string
	source   func() (T, error)
	period   time.Duration
	sched    *Scheduler
	observer TickObserver
	log      logger.Logger

	mu      sync.Mutex
	state   samplerState
	samples []T
	timer   *time.Timer
	pending bool
	idle    chan struct{}
}

func NewSampler[T any](name string, source func() (T, error), period time.Duration, sched *Scheduler, log logger.Logger) *Sampler[T] {
	return &Sampler[T]{
		name:   name,
		source: source,
		period: period,
		sched:  sched,
		log:    log.With("source", name),
		idle:   make(chan struct{}),
	}
}

// WithObserver must be called before Start.
func (s *Sampler[T]) WithObserver(o TickObserver) *Sampler[T] {
	s.observer = o
	return s
}

func (s *Sampler[T]) Name() string {
	return s.name
}

// Start takes the first sample right away. It reports false if the sampler
// was already started or the scheduler is shut down.
func (s *Sampler[T]) Start() bool {
	s.mu.Lock()
	if s.state != samplerIdle {
		s.mu.Unlock()
		return false
	}
	s.state = samplerRunning
	s.pending = true
	s.mu.Unlock()

	if !s.sched.Submit(s.tick) {
		s.mu.Lock()
		s.finish()
		s.mu.Unlock()
		return false
	}
	return true
}

// Stop ends collection, waits for an in-flight tick and returns the samples.
// Later calls return the same samples.
func (s *Sampler[T]) Stop() []T {
	s.mu.Lock()
	if s.state == samplerIdle {
		s.state = samplerStopped
		s.mu.Unlock()
		return nil
	}

	s.state = samplerStopped
	if s.pending && s.timer != nil && s.timer.Stop() {
		s.finish()
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
	case <-s.sched.Done():
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.samples)
}

func (s *Sampler[T]) tick() {
	// a tick queued before Stop must not read the source
	s.mu.Lock()
	if s.state != samplerRunning {
		s.finish()
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	start := time.Now()
	sample, err := s.source()
	elapsed := time.Since(start)

	if s.observer != nil {
		s.observer.ObserveTick(s.name, elapsed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.log.Debug("sampler: dropped sample", "error", err)
	} else {
		s.samples = append(s.samples, sample)
	}

	if s.state != samplerRunning {
		s.finish()
		return
	}

	delay := s.period - elapsed
	if delay > 0 {
		s.timer = time.AfterFunc(delay, s.fire)
		return
	}
	if !s.sched.Submit(s.tick) {
		s.finish()
	}
}

func (s *Sampler[T]) fire() {
	if s.sched.Submit(s.tick) {
		return
	}

	s.mu.Lock()
	s.finish()
	s.mu.Unlock()
}

// finish marks the tick chain as over. Callers hold mu.
func (s *Sampler[T]) finish() {
	if !s.pending {
		return
	}
	s.pending = false
	close(s.idle)
}
