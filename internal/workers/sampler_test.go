package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuca-profiler/yuca/internal/logger"
)

func startScheduler(t *testing.T) *Scheduler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(logger.Nop())
	s.Start(ctx)
	t.Cleanup(func() {
		cancel()
		s.Shutdown()
	})
	return s
}

type countingObserver struct {
	mu     sync.Mutex
	ticks  int
	failed int
}

func (o *countingObserver) ObserveTick(_ string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks++
	if err != nil {
		o.failed++
	}
}

func TestSchedulerRunsTasksInOrder(t *testing.T) {
	s := startScheduler(t)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	for i := range 5 {
		require.True(t, s.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 4 {
				close(done)
			}
		}))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestSchedulerTaskCanSubmitFollowUp(t *testing.T) {
	s := startScheduler(t)
	done := make(chan struct{})

	s.Submit(func() {
		s.Submit(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("follow-up task did not run")
	}
}

func TestSchedulerSurvivesPanic(t *testing.T) {
	s := startScheduler(t)
	done := make(chan struct{})

	s.Submit(func() { panic("boom") })
	s.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler stopped after a panic")
	}
}

func TestSchedulerRejectsAfterShutdown(t *testing.T) {
	s := NewScheduler(logger.Nop())
	s.Shutdown()
	s.Shutdown()

	assert.False(t, s.Submit(func() {}))

	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestSamplerCollectsUntilStopped(t *testing.T) {
	s := startScheduler(t)

	var calls atomic.Int64
	sampler := NewSampler("counter", func() (int64, error) {
		return calls.Add(1), nil
	}, time.Millisecond, s, logger.Nop())

	require.True(t, sampler.Start())
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 5*time.Second, time.Millisecond)

	samples := sampler.Stop()
	require.GreaterOrEqual(t, len(samples), 3)
	assert.Equal(t, int64(len(samples)), calls.Load())
	for i, v := range samples {
		assert.Equal(t, int64(i+1), v)
	}

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int64(len(samples)), calls.Load(), "sampled after stop")
	assert.Equal(t, samples, sampler.Stop())
}

func TestSamplerStartIsOneShot(t *testing.T) {
	s := startScheduler(t)

	sampler := NewSampler("noop", func() (int, error) { return 1, nil }, time.Millisecond, s, logger.Nop())

	assert.True(t, sampler.Start())
	assert.False(t, sampler.Start())
	sampler.Stop()
	assert.False(t, sampler.Start())
}

func TestSamplerStopBeforeStart(t *testing.T) {
	s := startScheduler(t)
	sampler := NewSampler("noop", func() (int, error) { return 1, nil }, time.Millisecond, s, logger.Nop())

	assert.Empty(t, sampler.Stop())
	assert.False(t, sampler.Start())
}

func TestSamplerDropsFailedSamples(t *testing.T) {
	s := startScheduler(t)
	obs := &countingObserver{}

	var calls atomic.Int64
	sampler := NewSampler("flaky", func() (int64, error) {
		n := calls.Add(1)
		if n%2 == 0 {
			return 0, errors.New("transient")
		}
		return n, nil
	}, time.Millisecond, s, logger.Nop()).WithObserver(obs)

	sampler.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 6 }, 5*time.Second, time.Millisecond)
	samples := sampler.Stop()

	require.NotEmpty(t, samples)
	for _, v := range samples {
		assert.Equal(t, int64(1), v%2)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, int(calls.Load()), obs.ticks)
	assert.Equal(t, obs.ticks-len(samples), obs.failed)
}

func TestSamplerLongPeriodStopsPromptly(t *testing.T) {
	s := startScheduler(t)

	var calls atomic.Int64
	sampler := NewSampler("slow-period", func() (int64, error) {
		return calls.Add(1), nil
	}, time.Hour, s, logger.Nop())

	sampler.Start()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, time.Millisecond)

	stopped := make(chan []int64)
	go func() { stopped <- sampler.Stop() }()

	select {
	case samples := <-stopped:
		assert.Equal(t, []int64{1}, samples)
	case <-time.After(5 * time.Second):
		t.Fatal("stop waited for the next period")
	}
}

func TestSamplerSchedulerShutdownTruncates(t *testing.T) {
	s := startScheduler(t)

	var calls atomic.Int64
	sampler := NewSampler("counter", func() (int64, error) {
		return calls.Add(1), nil
	}, time.Millisecond, s, logger.Nop())

	sampler.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 5*time.Second, time.Millisecond)
	s.Shutdown()

	stopped := make(chan []int64)
	go func() { stopped <- sampler.Stop() }()

	select {
	case samples := <-stopped:
		assert.GreaterOrEqual(t, len(samples), 2)
	case <-time.After(5 * time.Second):
		t.Fatal("stop hung after scheduler shutdown")
	}
}

func TestSamplerSkipsTickQueuedBeforeStop(t *testing.T) {
	s := startScheduler(t)

	release := make(chan struct{})
	require.True(t, s.Submit(func() { <-release }))

	var calls atomic.Int64
	sampler := NewSampler("queued", func() (int64, error) {
		return calls.Add(1), nil
	}, time.Millisecond, s, logger.Nop())
	require.True(t, sampler.Start())

	stopped := make(chan []int64)
	go func() { stopped <- sampler.Stop() }()

	require.Eventually(t, func() bool {
		sampler.mu.Lock()
		defer sampler.mu.Unlock()
		return sampler.state == samplerStopped
	}, 5*time.Second, time.Millisecond)
	close(release)

	select {
	case samples := <-stopped:
		assert.Empty(t, samples)
	case <-time.After(5 * time.Second):
		t.Fatal("stop hung on a queued tick")
	}
	assert.Zero(t, calls.Load())
}
