package workers

import (
	"context"
	"sync"

	"github.com/yuca-profiler/yuca/internal/logger"
)

// Scheduler runs submitted tasks one at a time on a single goroutine. The
// queue is unbounded so a running task may submit follow-up work.
type Scheduler struct {
	log logger.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{
		log:  log,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start runs the task loop until ctx is canceled or Shutdown is called.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer s.Shutdown()

		for {
			if ctx.Err() != nil {
				return
			}

			task, ok := s.next()
			if ok {
				s.run(task)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-s.wake:
			}
		}
	}()
}

// Submit queues task. It returns false once the scheduler is shut down.
func (s *Scheduler) Submit(task func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Shutdown drops every queued task. Safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if n := len(s.queue); n > 0 {
		s.log.Debug("scheduler: dropping queued tasks", "count", n)
	}
	s.closed = true
	s.queue = nil
	close(s.done)
}

// Done is closed after Shutdown.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) next() (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.queue) == 0 {
		return nil, false
	}
	task := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return task, true
}

func (s *Scheduler) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("scheduler: task panic", "panic", r)
		}
	}()
	task()
}
