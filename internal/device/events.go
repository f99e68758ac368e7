package device

import (
	"log/slog"
	"sync"
)

// Event types
const (
	// EventAttributeChanged carries endpoint, cluster_id, attr_id, attr_name,
	// property and value.
	EventAttributeChanged = "attribute_changed"
	// EventCommand carries endpoint, command, command_id, source and status.
	EventCommand = "command"
	// EventTransitionDone carries endpoint, kind and reason.
	EventTransitionDone = "transition_done"
	// EventDeviceState carries "started" or "stopped".
	EventDeviceState = "device_state"
)

// Event is something that happened on the light.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Endpoint returns the endpoint the event belongs to. Device state events
// have none.
func (e Event) Endpoint() (uint8, bool) {
	data, ok := e.Data.(map[string]interface{})
	if !ok {
		return 0, false
	}
	ep, ok := data["endpoint"].(uint8)
	return ep, ok
}

// EventHandler is a callback for events.
type EventHandler func(Event)

type subscription struct {
	id      uint64
	typ     string // empty matches every type
	handler EventHandler
}

// EventBus delivers device events to subscribers in subscription order.
// Handlers run on the emitting goroutine, which for attribute and transition
// events is the device loop, so they must not block.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription // replaced, never modified in place, on unsubscribe
	nextID uint64
	logger *slog.Logger
}

// NewEventBus creates a new event bus.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{logger: logger}
}

// On registers a handler for one event type and returns its unsubscribe
// function.
func (eb *EventBus) On(eventType string, handler EventHandler) func() {
	return eb.subscribe(eventType, handler)
}

// OnAll registers a handler for every event and returns its unsubscribe
// function.
func (eb *EventBus) OnAll(handler EventHandler) func() {
	return eb.subscribe("", handler)
}

func (eb *EventBus) subscribe(typ string, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	eb.subs = append(eb.subs, subscription{id: id, typ: typ, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { eb.unsubscribe(id) })
	}
}

func (eb *EventBus) unsubscribe(id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, s := range eb.subs {
		if s.id == id {
			eb.subs = append(eb.subs[:i:i], eb.subs[i+1:]...)
			return
		}
	}
}

// Emit calls every matching handler. A panicking handler is logged and the
// rest still run.
func (eb *EventBus) Emit(event Event) {
	eb.mu.RLock()
	subs := eb.subs
	eb.mu.RUnlock()

	for _, s := range subs {
		if s.typ == "" || s.typ == event.Type {
			eb.call(s.handler, event)
		}
	}
}

func (eb *EventBus) call(h EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "type", event.Type, "panic", r)
		}
	}()
	h(event)
}
