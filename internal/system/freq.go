package system

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/yuca-profiler/yuca/internal/domain"
)

type CPUFrequency struct {
	CPU      int
	Governor string
	Observed int64
	Expected int64
}

type FreqSnapshot struct {
	Timestamp domain.Timestamp
	CPUs      []CPUFrequency
}

// FreqSource reads cpufreq for every cpu, converting kHz to Hz.
type FreqSource struct {
	dir  string
	cpus []int
}

func NewFreqSource(paths Paths) (*FreqSource, error) {
	dir := filepath.Join(paths.Sys, "devices", "system", "cpu")

	ids, err := indexedDirs(dir, "cpu")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	s := &FreqSource{dir: dir}
	for _, id := range ids {
		if _, err := readTrimmed(s.file(id, "scaling_cur_freq")); err == nil {
			s.cpus = append(s.cpus, id)
		}
	}
	if len(s.cpus) == 0 {
		return nil, fmt.Errorf("%w: no cpufreq entries", domain.ErrSourceUnavailable)
	}
	return s, nil
}

func (s *FreqSource) Name() string {
	return SourceFreq
}

func (s *FreqSource) file(cpu int, name string) string {
	return filepath.Join(s.dir, fmt.Sprintf("cpu%d", cpu), "cpufreq", name)
}

func (s *FreqSource) Sample() (FreqSnapshot, error) {
	snap := FreqSnapshot{Timestamp: domain.Now()}
	for _, cpu := range s.cpus {
		governor, _ := readTrimmed(s.file(cpu, "scaling_governor"))
		observed, _ := readInt(s.file(cpu, "scaling_cur_freq"))
		expected, _ := readInt(s.file(cpu, "cpuinfo_cur_freq"))

		snap.CPUs = append(snap.CPUs, CPUFrequency{
			CPU:      cpu,
			Governor: governor,
			Observed: 1000 * observed,
			Expected: 1000 * expected,
		})
	}
	return snap, nil
}

// Difference reports the observed and expected frequency at the start of the
// interval for cpus read in both snapshots.
func (s *FreqSource) Difference(first, second FreqSnapshot) (domain.SignalInterval, error) {
	later := make(map[int]bool, len(second.CPUs))
	for _, c := range second.CPUs {
		later[c.CPU] = true
	}

	var data []domain.SignalDatum
	for _, c := range first.CPUs {
		if !later[c.CPU] {
			continue
		}
		cpu := strconv.Itoa(c.CPU)
		data = append(data,
			domain.NewDatum(float64(c.Observed), "cpu", cpu, "kind", "observed", "governor", c.Governor),
			domain.NewDatum(float64(c.Expected), "cpu", cpu, "kind", "expected", "governor", c.Governor),
		)
	}

	return newInterval(first.Timestamp, second.Timestamp, data)
}
