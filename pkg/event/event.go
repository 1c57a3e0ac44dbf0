// Package event provides a lightweight notification system.
//
// Design principles:
// - Events are notifications; payloads carry identifiers and small counters
// - Each event type is a separate Go type for type safety
// - Clients call HTTP APIs to fetch the full state after a notification
package event

import (
	"sync"

	"github.com/choraleia/explorer/pkg/utils"
)

// Event is the interface all event types must implement.
type Event interface {
	// EventName returns the unique name for this event type (e.g., "fs.changed")
	EventName() string
}

// Listener is a callback function for handling events.
type Listener func(Event)

type registration struct {
	id uint64
	fn Listener
}

// Emitter manages event subscriptions and dispatching.
type Emitter struct {
	mu           sync.RWMutex
	nextID       uint64
	listeners    map[string][]registration // eventName -> listeners
	allListeners []registration            // listeners for all events
}

// NewEmitter creates a new event emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[string][]registration),
	}
}

// On subscribes to a specific event type.
// Returns an unsubscribe function.
func (e *Emitter) On(eventName string, fn Listener) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners[eventName] = append(e.listeners[eventName], registration{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.listeners[eventName] = without(e.listeners[eventName], id)
	}
}

// OnAny subscribes to all events.
func (e *Emitter) OnAny(fn Listener) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.allListeners = append(e.allListeners, registration{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.allListeners = without(e.allListeners, id)
	}
}

// Emit dispatches an event to all matching listeners.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	// Copy listeners to avoid holding lock during callbacks
	specific := make([]registration, len(e.listeners[ev.EventName()]))
	copy(specific, e.listeners[ev.EventName()])
	all := make([]registration, len(e.allListeners))
	copy(all, e.allListeners)
	e.mu.RUnlock()

	utils.GetLogger().Debug("Emitting event", "event", ev.EventName(),
		"specific", len(specific), "wildcard", len(all))

	for _, r := range specific {
		r.fn(ev)
	}
	for _, r := range all {
		r.fn(ev)
	}
}

func without(regs []registration, id uint64) []registration {
	for i, r := range regs {
		if r.id == id {
			out := make([]registration, 0, len(regs)-1)
			out = append(out, regs[:i]...)
			return append(out, regs[i+1:]...)
		}
	}
	return regs
}

// ---- Global Emitter ----

var globalEmitter *Emitter
var globalOnce sync.Once

// Global returns the global event emitter.
func Global() *Emitter {
	globalOnce.Do(func() {
		globalEmitter = NewEmitter()
	})
	return globalEmitter
}

// Emit is a shortcut for Global().Emit(ev).
func Emit(ev Event) {
	Global().Emit(ev)
}

// On is a shortcut for Global().On(eventName, fn).
func On(eventName string, fn Listener) func() {
	return Global().On(eventName, fn)
}
