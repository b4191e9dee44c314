package sio

import "sync"

// EventHandler handles Socket.IO events
type EventHandler func(...interface{})

// AckHandler handles acknowledgment responses
type AckHandler func(...interface{})

// Reserved event names. Emitting one of these never produces a wire packet;
// it only fires local listeners.
var socketEvents = map[string]struct{}{
	"error":          {},
	"connect":        {},
	"disconnect":     {},
	"newListener":    {},
	"removeListener": {},
}

var namespaceEvents = map[string]struct{}{
	"connect":     {},
	"connection":  {},
	"newListener": {},
}

// emitter is the local listener registry shared by Socket and Namespace.
type emitter struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

// On registers an event handler
func (e *emitter) On(event string, handler EventHandler) {
	e.mu.Lock()
	if e.handlers == nil {
		e.handlers = make(map[string][]EventHandler)
	}
	e.handlers[event] = append(e.handlers[event], handler)
	newListeners := e.handlers["newListener"]
	e.mu.Unlock()

	if event != "newListener" {
		for _, h := range newListeners {
			h(event)
		}
	}
}

// Off removes event handlers
func (e *emitter) Off(event string) {
	e.mu.Lock()
	delete(e.handlers, event)
	removeListeners := e.handlers["removeListener"]
	e.mu.Unlock()

	for _, h := range removeListeners {
		h(event)
	}
}

// emitLocal fires local listeners for event and reports whether any existed.
func (e *emitter) emitLocal(event string, args ...interface{}) bool {
	e.mu.RLock()
	handlers := e.handlers[event]
	e.mu.RUnlock()

	for _, h := range handlers {
		h(args...)
	}
	return len(handlers) > 0
}

func (e *emitter) hasListeners(event string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[event]) > 0
}
