// Package event is a typed in-process publish/subscribe bus.
package event

import (
	"reflect"
	"sync"

	"github.com/yuca-profiler/yuca/internal/logger"
)

type Handler func(event any)

// Bus dispatches events to the handlers subscribed to their dynamic type.
// Handlers run synchronously on the publisher's goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]Handler
	log      logger.Logger
}

func New(log logger.Logger) *Bus {
	return &Bus{
		handlers: make(map[reflect.Type][]Handler),
		log:      log,
	}
}

// Subscribe registers handler for events of the same type as sample.
func (b *Bus) Subscribe(sample any, handler Handler) {
	t := reflect.TypeOf(sample)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], handler)
}

func (b *Bus) Publish(event any) {
	t := reflect.TypeOf(event)

	b.mu.RLock()
	handlers := b.handlers[t]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(t, h, event)
	}
}

func (b *Bus) dispatch(t reflect.Type, h Handler, event any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn(
				"event handler panic",
				"event", t.String(),
				"panic", r,
			)
		}
	}()
	h(event)
}
