package websocket

import (
	"github.com/yuca-profiler/yuca/internal/core/event"
	"github.com/yuca-profiler/yuca/internal/domain"
)

// Register forwards registry events to the reports channel.
func Register(bus *event.Bus, hub *Hub) {
	bus.Subscribe(domain.EventReportStored{}, func(event any) {
		evt, ok := event.(domain.EventReportStored)
		if !ok {
			return
		}
		hub.Broadcast(&domain.WsServerEvent{
			Channel: domain.WsChannelReports,
			Event:   domain.WsEventReportStored,
			Payload: evt,
		})
	})

	bus.Subscribe(domain.EventRegistryPurged{}, func(event any) {
		evt, ok := event.(domain.EventRegistryPurged)
		if !ok {
			return
		}
		hub.Broadcast(&domain.WsServerEvent{
			Channel: domain.WsChannelReports,
			Event:   domain.WsEventPurged,
			Payload: evt,
		})
	})
}
