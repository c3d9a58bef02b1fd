// Package accounting attributes system-wide cpu time and energy to the tasks
// of a process.
package accounting

import (
	"github.com/yuca-profiler/yuca/internal/core/interval"
	"github.com/yuca-profiler/yuca/internal/domain"
)

// TaskActivity returns each task's share of its cpu's jiffies over the overlap
// of a task jiffies interval and a cpu jiffies interval. ok is false when the
// intervals do not overlap or no task ran.
//
// The kernel may credit tasks with more jiffies than their cpu reports for the
// same window, so a cpu's denominator is the larger of its own count and the
// sum of its tasks.
func TaskActivity(tasks, cpus domain.SignalInterval) (domain.SignalInterval, bool) {
	start, end, ok := interval.Overlap(tasks, cpus)
	if !ok {
		return domain.SignalInterval{}, false
	}

	cpuJiffies := make(map[string]float64, len(cpus.Data))
	for _, d := range cpus.Data {
		if cpu, ok := d.Get("cpu"); ok {
			cpuJiffies[cpu] = d.Value
		}
	}

	taskJiffies := make(map[string]float64)
	for _, d := range tasks.Data {
		if cpu, ok := d.Get("cpu"); ok {
			taskJiffies[cpu] += d.Value
		}
	}

	var data []domain.SignalDatum
	for _, d := range tasks.Data {
		if d.Value <= 0 {
			continue
		}
		cpu, ok := d.Get("cpu")
		if !ok {
			continue
		}

		denominator := max(cpuJiffies[cpu], taskJiffies[cpu])
		data = append(data, d.With(min(1, d.Value/denominator)))
	}

	if len(data) == 0 {
		return domain.SignalInterval{}, false
	}
	return domain.SignalInterval{Start: start, End: end, Data: data}, true
}

// ActivitySignal aligns a process jiffies signal with a system jiffies signal.
func ActivitySignal(tasks, cpus *domain.Signal) *domain.Signal {
	if tasks.IsEmpty() || cpus.IsEmpty() {
		return nil
	}

	intervals := interval.ForwardPartialAlign(tasks.Intervals, cpus.Intervals, TaskActivity)
	return domain.NewSignal(domain.UnitActivity, intervals, concatSources(tasks, cpus)...)
}

func concatSources(signals ...*domain.Signal) []string {
	var out []string
	for _, s := range signals {
		out = append(out, s.Sources...)
	}
	return out
}
