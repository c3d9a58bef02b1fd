package accounting

import (
	"strconv"

	"github.com/yuca-profiler/yuca/internal/core/interval"
	"github.com/yuca-profiler/yuca/internal/domain"
)

// SocketLookup maps a logical cpu to its physical socket.
type SocketLookup interface {
	Socket(cpu int) int
}

var defaultComponents = []string{"package", "dram"}

// Attributor splits socket energy between tasks in proportion to their
// activity on that socket.
type Attributor struct {
	sockets SocketLookup
}

func NewAttributor(sockets SocketLookup) *Attributor {
	return &Attributor{sockets: sockets}
}

// TaskEnergy attributes the energy of the part of the energy interval that the
// activity interval covers. ok is false when no task receives energy.
func (a *Attributor) TaskEnergy(activity, energy domain.SignalInterval) (domain.SignalInterval, bool) {
	readings := make(map[int][]domain.SignalDatum)
	for _, d := range energy.Data {
		socket, ok := intMetadata(d, "socket")
		if !ok {
			continue
		}
		readings[socket] = append(readings[socket], d)
	}
	if len(readings) == 0 {
		return domain.SignalInterval{}, false
	}

	start, end, ok := interval.Overlap(activity, energy)
	if !ok {
		return domain.SignalInterval{}, false
	}
	fraction := float64(end.Sub(start)) / float64(energy.Duration())

	totalActivity := make(map[int]float64)
	for _, d := range activity.Data {
		cpu, ok := intMetadata(d, "cpu")
		if !ok {
			continue
		}
		totalActivity[a.sockets.Socket(cpu)] += d.Value
	}

	var data []domain.SignalDatum
	for _, d := range activity.Data {
		if d.Value == 0 {
			continue
		}
		cpu, ok := intMetadata(d, "cpu")
		if !ok {
			continue
		}

		socket := a.sockets.Socket(cpu)
		socketEnergy, ok := readings[socket]
		if !ok {
			continue
		}

		share := fraction * d.Value / totalActivity[socket]
		for i, reading := range socketEnergy {
			component, ok := reading.Get("component")
			if !ok {
				if i >= len(defaultComponents) {
					break
				}
				component = defaultComponents[i]
			}
			data = append(data, d.With(reading.Value*share, "component", component))
		}
	}

	if len(data) == 0 {
		return domain.SignalInterval{}, false
	}
	return domain.SignalInterval{Start: start, End: end, Data: data}, true
}

// EnergySignal aligns an activity signal with a socket energy signal.
func (a *Attributor) EnergySignal(activity, energy *domain.Signal) *domain.Signal {
	if activity.IsEmpty() || energy.IsEmpty() {
		return nil
	}

	intervals := interval.ForwardPartialAlign(activity.Intervals, energy.Intervals, a.TaskEnergy)
	return domain.NewSignal(domain.UnitJoules, intervals, concatSources(activity, energy)...)
}

func intMetadata(d domain.SignalDatum, name string) (int, bool) {
	raw, ok := d.Get(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}
