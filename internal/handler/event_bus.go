// internal/handler/event_bus.go
package handler

import (
	"sync"

	"go.uber.org/zap"

	"pos-device-service/internal/hardware"
)

const (
	eventBufferSize      = 1000
	subscriberBufferSize = 100
)

// EventBus decouples hardware publishers from slow consumers. Publish never
// blocks; events are dropped when the buffer is full.
type EventBus struct {
	subscribers []*subscription
	events      chan hardware.Event
	done        chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	logger      *zap.Logger
}

type subscription struct {
	types map[hardware.EventType]bool
	ch    chan hardware.Event
}

func (s *subscription) wants(t hardware.EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		events: make(chan hardware.Event, eventBufferSize),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("component", "event_bus")),
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			return
		}
	}
}

// Stop ends distribution and closes every subscriber channel
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() {
		close(eb.done)

		eb.mutex.Lock()
		defer eb.mutex.Unlock()
		for _, s := range eb.subscribers {
			close(s.ch)
		}
		eb.subscribers = nil
	})
}

// Publish implements hardware.EventSink
func (eb *EventBus) Publish(event hardware.Event) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// Subscribe returns a channel receiving events of the given types, or of
// every type when none is given
func (eb *EventBus) Subscribe(types ...hardware.EventType) <-chan hardware.Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	s := &subscription{
		types: make(map[hardware.EventType]bool, len(types)),
		ch:    make(chan hardware.Event, subscriberBufferSize),
	}
	for _, t := range types {
		s.types[t] = true
	}
	eb.subscribers = append(eb.subscribers, s)
	return s.ch
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event hardware.Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, s := range eb.subscribers {
		if !s.wants(event.Type) {
			continue
		}
		select {
		case s.ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

var _ hardware.EventSink = (*EventBus)(nil)
