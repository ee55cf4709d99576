// internal/hardware/events.go
package hardware

import (
	"time"

	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

// EventType identifies a hardware or finalize event pushed to the boundary
type EventType string

const (
	EventConnectionChanged   EventType = "connection-changed"
	EventHardwareError       EventType = "hardware-error"
	EventCommandWaiting      EventType = "command-waiting"
	EventReceiptPrintStart   EventType = "receipt-print-start"
	EventReceiptPrintStep    EventType = "receipt-print-step"
	EventReceiptPrintEnd     EventType = "receipt-print-end"
	EventPrintDialogShown    EventType = "print-dialog-shown"
	EventKitchenPrinterError EventType = "kitchen-printer-error"
	EventCardRecognized      EventType = "card-recognized"
	EventBarcodeScanned      EventType = "barcode-scanned"
	EventStatusError         EventType = "status-error"
)

// Event is a notification published to the EventSink
type Event struct {
	Type      EventType    `json:"type"`
	Role      string       `json:"role,omitempty"`
	Device    string       `json:"device,omitempty"`
	Connected bool         `json:"connected,omitempty"`
	Cause     driver.Cause `json:"cause,omitempty"`
	Message   string       `json:"message,omitempty"`
	Progress  float64      `json:"progress,omitempty"`
	Value     string       `json:"value,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// EventSink receives events. Publish must not block on hardware.
type EventSink interface {
	Publish(event Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(event Event)

// Publish calls f(event)
func (f EventSinkFunc) Publish(event Event) {
	f(event)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}

// NopEventSink discards every event
var NopEventSink EventSink = nopSink{}

// MultiSink fans an event out to several sinks
type MultiSink []EventSink

// Publish forwards the event to every sink
func (m MultiSink) Publish(event Event) {
	for _, s := range m {
		s.Publish(event)
	}
}

func newEvent(eventType EventType, role model.DeviceRole) Event {
	e := Event{Type: eventType, Timestamp: time.Now()}
	if role != 0 {
		e.Role = role.String()
	}
	return e
}

// NewEvent builds an event stamped with the current time
func NewEvent(eventType EventType, role model.DeviceRole, message string) Event {
	e := newEvent(eventType, role)
	e.Message = message
	return e
}

// ErrorEvent builds a hardware-error event from err
func ErrorEvent(herr *HardwareError) Event {
	e := newEvent(EventHardwareError, herr.Role)
	e.Cause = herr.Cause()
	e.Message = herr.Error()
	return e
}
