// Package event provides a synchronous pub-sub bus for observing Icarus
// coordination activity. Components publish lifecycle events (work posted,
// work claimed, instance registered, request resolved) without knowing who
// is listening; the CLI and tests subscribe as needed.
//
// The bus is purely observational: no coordination semantics depend on
// event delivery, and a missing subscriber never changes bus behavior.
package event

import (
	"log"
	"runtime/debug"
	"sync"
)

// Handler is a function that handles an event.
type Handler func(Event)

// Wildcard is the event type that matches every published event.
const Wildcard = "*"

// Bus is a simple synchronous pub-sub event bus. Handlers run on the
// publisher's goroutine in registration order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]Handler // eventType -> token -> handler
	nextID int
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for a specific event type.
// Returns a token that can be passed to Unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[int]Handler)
	}
	b.subs[eventType][b.nextID] = handler
	return b.nextID
}

// SubscribeAll registers a handler that receives every published event.
func (b *Bus) SubscribeAll(handler Handler) int {
	return b.Subscribe(Wildcard, handler)
}

// Unsubscribe removes a subscription by token.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(token int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, handlers := range b.subs {
		if _, ok := handlers[token]; ok {
			delete(handlers, token)
			if len(handlers) == 0 {
				delete(b.subs, eventType)
			}
			return true
		}
	}
	return false
}

// Publish dispatches an event to all handlers registered for its type,
// then to wildcard handlers. If a handler panics, the panic is logged and
// recovered so remaining handlers still run.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	var handlers []Handler
	for _, token := range sortedTokens(b.subs[e.EventType()]) {
		handlers = append(handlers, b.subs[e.EventType()][token])
	}
	for _, token := range sortedTokens(b.subs[Wildcard]) {
		handlers = append(handlers, b.subs[Wildcard][token])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.safeCall(h, e)
	}
}

// safeCall invokes a handler and recovers from any panic so one
// misbehaving subscriber cannot block delivery to the others.
func (b *Bus) safeCall(handler Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: event handler panicked for %s: %v\n%s",
				e.EventType(), r, debug.Stack())
		}
	}()
	handler(e)
}

// sortedTokens returns the map's tokens in ascending (registration) order.
func sortedTokens(handlers map[int]Handler) []int {
	tokens := make([]int, 0, len(handlers))
	for t := range handlers {
		tokens = append(tokens, t)
	}
	// Insertion sort; subscriber counts are tiny.
	for i := 1; i < len(tokens); i++ {
		for j := i; j > 0 && tokens[j] < tokens[j-1]; j-- {
			tokens[j], tokens[j-1] = tokens[j-1], tokens[j]
		}
	}
	return tokens
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[int]Handler)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, handlers := range b.subs {
		count += len(handlers)
	}
	return count
}
