// Package hooks dispatches agentstudio lifecycle events to in-process
// handlers and configured shell commands.
package hooks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/agentstudio/internal/logging"
)

// Event names for the hook system.
const (
	EventAgentCreated = "agent_created"
	EventAgentUpdated = "agent_updated"
	EventAgentDeleted = "agent_deleted"
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventGatewayStart = "gateway_start"
	EventGatewayStop  = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventAgentCreated,
	EventAgentUpdated,
	EventAgentDeleted,
	EventSessionStart,
	EventSessionEnd,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event string         `json:"event"`
	Time  int64          `json:"ts,omitempty"` // Unix milliseconds
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles one event. A returned error is logged and never stops
// other handlers.
type Handler func(ctx context.Context, p Payload) error

type namedHandler struct {
	name    string
	handler Handler
}

// Manager holds hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	inflight sync.WaitGroup
	now      func() time.Time
	log      *logging.Logger
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		now:      time.Now,
		log:      log.Sub("hooks"),
	}
}

// On registers handler for event under name. Several handlers may share a name.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.mu.Unlock()
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes every handler registered for event under name and returns how
// many were removed.
func (m *Manager) Off(event, name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.handlers[event])
	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
	return before - len(m.handlers[event])
}

// Emit runs the event's handlers one after another in registration order.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	handlers, p := m.prepare(event, data)
	for _, h := range handlers {
		m.call(ctx, h, p)
	}
}

// EmitAsync starts every handler on its own goroutine and returns at once.
// Wait blocks until they finish.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	handlers, p := m.prepare(event, data)
	for _, h := range handlers {
		m.inflight.Add(1)
		go func() {
			defer m.inflight.Done()
			m.call(ctx, h, p)
		}()
	}
}

// Wait blocks until every handler started by EmitAsync has returned.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the sorted events that have at least one handler.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []string
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}

// prepare snapshots the handlers so registration changes during dispatch do
// not affect it.
func (m *Manager) prepare(event string, data map[string]any) ([]namedHandler, Payload) {
	m.mu.RLock()
	handlers := slices.Clone(m.handlers[event])
	m.mu.RUnlock()
	return handlers, Payload{Event: event, Time: m.now().UnixMilli(), Data: data}
}

func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) {
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Msg("hook handler error")
	}
}
