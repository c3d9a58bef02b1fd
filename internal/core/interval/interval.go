// Package interval walks ordered sample sequences and signal intervals.
package interval

import "github.com/yuca-profiler/yuca/internal/domain"

// ForwardApply returns combine(seq[i], seq[i+1]) for every adjacent pair. A
// sequence shorter than two elements yields nil.
func ForwardApply[T, R any](seq []T, combine func(first, second T) R) []R {
	if len(seq) < 2 {
		return nil
	}

	out := make([]R, 0, len(seq)-1)
	for i := 0; i < len(seq)-1; i++ {
		out = append(out, combine(seq[i], seq[i+1]))
	}
	return out
}

// ForwardApplyE is ForwardApply for combine functions that can fail. It stops
// at the first error.
func ForwardApplyE[T, R any](seq []T, combine func(first, second T) (R, error)) ([]R, error) {
	if len(seq) < 2 {
		return nil, nil
	}

	out := make([]R, 0, len(seq)-1)
	for i := 0; i < len(seq)-1; i++ {
		r, err := combine(seq[i], seq[i+1])
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ForwardAlign combines every overlapping pair of intervals from two
// ascending sequences, in time order.
func ForwardAlign[R any](first, second []domain.SignalInterval, combine func(a, b domain.SignalInterval) R) []R {
	return ForwardPartialAlign(first, second, func(a, b domain.SignalInterval) (R, bool) {
		return combine(a, b), true
	})
}

// ForwardPartialAlign is ForwardAlign where combine may decline a pair by
// returning false.
//
// After a pair is visited the cursor whose interval starts earlier moves
// forward; on equal starts the first cursor moves.
func ForwardPartialAlign[R any](first, second []domain.SignalInterval, combine func(a, b domain.SignalInterval) (R, bool)) []R {
	var out []R

	i, j := 0, 0
	for i < len(first) && j < len(second) {
		a, b := first[i], second[j]

		if a.End.Before(b.Start) {
			i++
			continue
		}
		if b.End.Before(a.Start) {
			j++
			continue
		}

		if r, ok := combine(a, b); ok {
			out = append(out, r)
		}

		if b.Start.Before(a.Start) {
			j++
		} else {
			i++
		}
	}
	return out
}

// Overlap returns the intersection bounds of two intervals. ok is false when
// they share no positive-length range.
func Overlap(a, b domain.SignalInterval) (start, end domain.Timestamp, ok bool) {
	start = domain.MaxTimestamp(a.Start, b.Start)
	end = domain.MinTimestamp(a.End, b.End)
	return start, end, start.Before(end)
}
