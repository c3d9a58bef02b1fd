package system

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/yuca-profiler/yuca/internal/domain"
)

type MonotonicSnapshot struct {
	Timestamp domain.Timestamp
	Monotonic time.Duration
}

// MonotonicSource pairs wall-clock time with CLOCK_MONOTONIC.
type MonotonicSource struct{}

func NewMonotonicSource() *MonotonicSource {
	return &MonotonicSource{}
}

func (s *MonotonicSource) Name() string {
	return SourceMonotonic
}

func (s *MonotonicSource) Sample() (MonotonicSnapshot, error) {
	now := domain.Now()

	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return MonotonicSnapshot{}, err
	}

	return MonotonicSnapshot{
		Timestamp: now,
		Monotonic: time.Duration(ts.Nano()),
	}, nil
}

// Difference reports the elapsed monotonic nanoseconds.
func (s *MonotonicSource) Difference(first, second MonotonicSnapshot) (domain.SignalInterval, error) {
	elapsed := second.Monotonic - first.Monotonic
	if elapsed < 0 {
		return domain.SignalInterval{}, &domain.OutOfOrderError{First: first.Timestamp, Second: second.Timestamp}
	}
	return newInterval(first.Timestamp, second.Timestamp, []domain.SignalDatum{
		domain.NewDatum(float64(elapsed.Nanoseconds())),
	})
}
