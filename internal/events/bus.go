package events

import (
	"sync"
	"time"
)

// Kind names a lifecycle transition point.
type Kind string

// Lifecycle event kinds emitted by the device driver.
const (
	BootDevice      Kind = "bootDevice"
	BeforeLaunchApp Kind = "beforeLaunchApp"
	LaunchApp       Kind = "launchApp"
	ShutdownDevice  Kind = "shutdownDevice"
)

// Event is an immutable record of a lifecycle transition. The driver emits an
// event only after the corresponding backend call has completed, so consumers
// may assume the transition actually happened.
type Event struct {
	Kind      Kind
	DeviceID  string
	Payload   map[string]any
	Timestamp time.Time
}

// Publisher is the narrow interface the driver publishes through.
type Publisher interface {
	Publish(event Event)
}

// Handler consumes events of the kind it was subscribed with.
type Handler func(event Event)

// Bus is an in-process publish/subscribe mechanism keyed by event kind.
// Delivery is synchronous: Publish invokes every matching handler before
// returning, in subscription order, so events for one device are observed in
// the exact order they were published.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

var _ Publisher = &Bus{}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: map[Kind][]Handler{},
	}
}

// Subscribe registers handler for events of the given kind. Handlers must not
// block; they run on the publisher's goroutine.
func (b *Bus) Subscribe(kind Kind, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Publish delivers the event to every handler subscribed to its kind. Events
// without a timestamp are stamped on publish.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Kind]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
