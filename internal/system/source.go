package system

import "github.com/yuca-profiler/yuca/internal/domain"

// Source samples one kind of counter. Difference turns two snapshots, the
// first strictly earlier, into the interval between them.
type Source[S any] interface {
	Name() string
	Sample() (S, error)
	Difference(first, second S) (domain.SignalInterval, error)
}

const (
	SourceMonotonic = "clock_gettime(CLOCK_MONOTONIC, &ts)"
	SourceProcStat  = "/proc/stat"
	SourceThermal   = "/sys/class/thermal"
	SourceFreq      = "/sys/devices/system/cpu/cpu_i/cpufreq"
	SourceMSR       = "/dev/cpu/<socket>/msr"
	SourcePowercap  = "/sys/devices/virtual/powercap/intel-rapl"
	SourceFake      = "/fake/atomic-counter"
)

func newInterval(first, second domain.Timestamp, data []domain.SignalDatum) (domain.SignalInterval, error) {
	if err := domain.CheckOrder(first, second); err != nil {
		return domain.SignalInterval{}, err
	}
	return domain.SignalInterval{Start: first, End: second, Data: data}, nil
}
