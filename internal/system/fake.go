package system

import (
	"sync/atomic"

	"github.com/yuca-profiler/yuca/internal/domain"
)

// FakeEnergySource counts one joule per sample on socket 0.
type FakeEnergySource struct {
	energyCounter
	counter atomic.Int64
}

func NewFakeEnergySource() *FakeEnergySource {
	return &FakeEnergySource{
		energyCounter: energyCounter{name: SourceFake},
	}
}

func (s *FakeEnergySource) Sample() (EnergySnapshot, error) {
	value := s.counter.Add(1) - 1
	return EnergySnapshot{
		Timestamp: domain.Now(),
		Readings: []EnergyReading{
			{Socket: 0, Component: EnergyPackage, Joules: float64(value)},
		},
	}, nil
}
