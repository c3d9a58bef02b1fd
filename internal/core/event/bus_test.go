package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
)

func TestBusDispatchesByType(t *testing.T) {
	bus := New(logger.Nop())

	var stored []int64
	var purged int
	bus.Subscribe(domain.EventReportStored{}, func(e any) {
		stored = append(stored, e.(domain.EventReportStored).ProcessID)
	})
	bus.Subscribe(domain.EventRegistryPurged{}, func(e any) {
		purged += e.(domain.EventRegistryPurged).Stopped
	})

	bus.Publish(domain.EventReportStored{ProcessID: 7})
	bus.Publish(domain.EventRegistryPurged{Stopped: 2})
	bus.Publish(domain.EventMonitorStarted{ProcessID: 7})
	bus.Publish(&domain.EventReportStored{ProcessID: 8})

	assert.Equal(t, []int64{7}, stored)
	assert.Equal(t, 2, purged)
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := New(logger.Nop())

	calls := 0
	bus.Subscribe(domain.EventRegistryPurged{}, func(any) { panic("boom") })
	bus.Subscribe(domain.EventRegistryPurged{}, func(any) { calls++ })

	assert.NotPanics(t, func() { bus.Publish(domain.EventRegistryPurged{}) })
	assert.Equal(t, 1, calls)
}
