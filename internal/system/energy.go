package system

import (
	"fmt"
	"strconv"

	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
)

const (
	EnergyPackage = "package"
	EnergyDRAM    = "dram"
)

// EnergyReading is a cumulative joule counter for one socket component.
type EnergyReading struct {
	Socket    int
	Component string
	Joules    float64
}

type EnergySnapshot struct {
	Timestamp domain.Timestamp
	Readings  []EnergyReading
}

// EnergySource is implemented by the msr, powercap and synthetic counters.
type EnergySource interface {
	Source[EnergySnapshot]
}

type energyDomain struct {
	socket    int
	component string
}

// energyCounter differences snapshots using a per-domain rollover modulus.
type energyCounter struct {
	name    string
	modulus map[energyDomain]float64
	log     logger.Logger
}

func (c *energyCounter) Name() string {
	return c.name
}

// Modulus is the rollover of a domain's counter, in joules.
func (c *energyCounter) Modulus(socket int, component string) float64 {
	return c.modulus[energyDomain{socket, component}]
}

// Difference keeps package before dram within each socket.
func (c *energyCounter) Difference(first, second EnergySnapshot) (domain.SignalInterval, error) {
	if len(first.Readings) != len(second.Readings) {
		return domain.SignalInterval{}, fmt.Errorf("%w: %d readings != %d readings",
			domain.ErrMismatchedDomains, len(first.Readings), len(second.Readings))
	}

	data := make([]domain.SignalDatum, 0, len(first.Readings))
	for i, a := range first.Readings {
		b := second.Readings[i]
		if a.Socket != b.Socket || a.Component != b.Component {
			return domain.SignalInterval{}, fmt.Errorf("%w: %d:%s != %d:%s",
				domain.ErrMismatchedDomains, a.Socket, a.Component, b.Socket, b.Component)
		}

		if b.Joules < a.Joules && c.log != nil {
			c.log.Info("energy counter rolled over", "source", c.name, "socket", a.Socket, "component", a.Component)
		}
		joules := WrapDifference(a.Joules, b.Joules, c.Modulus(a.Socket, a.Component))

		data = append(data, domain.NewDatum(joules,
			"socket", strconv.Itoa(a.Socket),
			"component", a.Component,
		))
	}

	return newInterval(first.Timestamp, second.Timestamp, data)
}

// NewEnergySource probes msr, then powercap, and falls back to a synthetic
// counter so a monitor always has an energy signal.
func NewEnergySource(paths Paths, topo Topology, log logger.Logger) EnergySource {
	msr, err := NewMSRSource(paths, topo.Sockets, topo.Model, log)
	if err == nil {
		log.Info("energy: using msr rapl", "sockets", len(msr.sockets))
		return msr
	}
	log.Debug("energy: msr rapl unavailable", "error", err.Error())

	powercap, err := NewPowercapSource(paths, log)
	if err == nil {
		log.Info("energy: using powercap")
		return powercap
	}
	log.Debug("energy: powercap unavailable", "error", err.Error())

	log.Warn("energy: no hardware counters found, using synthetic counter")
	return NewFakeEnergySource()
}
