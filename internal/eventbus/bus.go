// Package eventbus implements the in-process publish/subscribe Event Bus:
// session lifecycle and turn events fan out to subscribers (logging,
// metrics, future websocket pushers) without coupling publishers to them.
package eventbus

import "sync"

// EventType names a published event kind.
type EventType string

const (
	EventSessionStart       EventType = "SESSION_START"
	EventSessionEnd         EventType = "SESSION_END"
	EventSessionReset       EventType = "SESSION_RESET"
	EventAgentLoad          EventType = "AGENT_LOAD"
	EventUserMessage        EventType = "USER_MESSAGE"
	EventAssistantResponse  EventType = "ASSISTANT_RESPONSE"
	EventError              EventType = "ERROR"
)

// wildcard subscribes to every event type.
const wildcard EventType = "*"

// Event is a single published occurrence.
type Event struct {
	Type      EventType
	SessionID string
	Payload   map[string]any
}

// historyLimit bounds the ring buffer of recently published events.
const historyLimit = 1000

// Handler receives published events. Handlers are invoked outside the
// bus's lock and must not block indefinitely.
type Handler func(Event)

// Bus is a bounded, mutex-guarded pub/sub hub. Publish snapshots the
// subscriber list under lock and invokes handlers after releasing it, so a
// handler may itself call Subscribe/Publish without deadlocking.
type Bus struct {
	mu          sync.Mutex
	subscribers map[EventType][]Handler
	history     []Event
	nextID      int
	ids         map[int]subscription
}

type subscription struct {
	eventType EventType
	index     int
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Handler),
		history:     make([]Event, 0, historyLimit),
		ids:         make(map[int]subscription),
	}
}

// Subscribe registers h for events of the given type, or for every event
// type when eventType is "*". It returns an id usable with Unsubscribe.
func (b *Bus) Subscribe(eventType EventType, h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subscribers[eventType]
	list = append(list, h)
	b.subscribers[eventType] = list
	id := b.nextID
	b.nextID++
	b.ids[id] = subscription{eventType: eventType, index: len(list) - 1}
	return id
}

// SubscribeAll registers h for every event type.
func (b *Bus) SubscribeAll(h Handler) int {
	return b.Subscribe(wildcard, h)
}

// Unsubscribe removes the handler registered under id. It is a no-op for
// an unknown id.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.ids[id]
	if !ok {
		return
	}
	delete(b.ids, id)
	list := b.subscribers[sub.eventType]
	if sub.index < 0 || sub.index >= len(list) {
		return
	}
	b.subscribers[sub.eventType] = append(list[:sub.index], list[sub.index+1:]...)
	// Reindex subscriptions after the removed slot.
	for otherID, otherSub := range b.ids {
		if otherSub.eventType == sub.eventType && otherSub.index > sub.index {
			otherSub.index--
			b.ids[otherID] = otherSub
		}
	}
}

// Publish appends evt to the bounded history and dispatches it to every
// matching subscriber (specific-type subscribers, then wildcard
// subscribers) outside the bus's lock.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	if len(b.history) >= historyLimit {
		b.history = append(b.history[1:], evt)
	} else {
		b.history = append(b.history, evt)
	}
	handlers := append([]Handler{}, b.subscribers[evt.Type]...)
	handlers = append(handlers, b.subscribers[wildcard]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(evt)
	}
}

// History returns a copy of the most recently published events, oldest
// first.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}
