package ipc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Mux routes requests to handlers by command name.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
}

// NewMux returns an empty router.
func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// Route registers handler for each command, replacing earlier routes.
func (m *Mux) Route(handler Handler, commands ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, command := range commands {
		m.handlers[strings.TrimSpace(command)] = handler
	}
}

// Fallback sets the handler for commands with no route.
func (m *Mux) Fallback(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = handler
}

// Commands lists registered command names in sorted order.
func (m *Mux) Commands() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.handlers))
	for command := range m.handlers {
		out = append(out, command)
	}
	sort.Strings(out)
	return out
}

// Handle dispatches req to its routed handler.
func (m *Mux) Handle(ctx context.Context, req Request) Response {
	m.mu.RLock()
	handler, ok := m.handlers[req.Command]
	fallback := m.fallback
	m.mu.RUnlock()

	if ok {
		return handler.Handle(ctx, req)
	}
	if fallback != nil {
		return fallback.Handle(ctx, req)
	}
	return Response{OK: false, Error: fmt.Sprintf("unknown command: %s", req.Command)}
}
