package eventbus

import (
	"log/slog"
	"sync"
	"time"
)

// Bus is a small in-process pub/sub bus. Agents, the HTTP layer and the MCP
// endpoint publish; metrics subscribe.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[Topic][]Handler),
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish delivers an event to the topic's subscribers synchronously, in
// registration order. A panicking subscriber is logged and skipped.
// Publishing on a nil Bus is a no-op.
func (b *Bus) Publish(topic Topic, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}
	event := Event{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for _, h := range handlers {
		deliver(h, event)
	}
}

func deliver(h Handler, e Event) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("event subscriber panicked", "topic", string(e.Topic), "panic", p)
		}
	}()
	h(e)
}
