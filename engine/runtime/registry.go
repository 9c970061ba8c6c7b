// Package runtime maps string target references to registered Go
// handlers, so the graph and config layers never compile against the
// code a tool invokes.
package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc is the signature every invokable target implements: named
// arguments in, an ordered list of output values out. The engine zips the
// returned values against the tool's declared output names.
type HandlerFunc func(ctx context.Context, args map[string]any) ([]any, error)

// Registry holds the invokable targets for one application instance.
// Application code registers handlers at startup; the execution engine
// only ever resolves them by name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register binds a handler to a qualified target name. Registering the
// same name twice is a programming error.
func (r *Registry) Register(name string, fn HandlerFunc) error {
	if fn == nil {
		return fmt.Errorf("handler %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	r.handlers[name] = fn
	return nil
}

// MustRegister is Register for static initialization paths.
func (r *Registry) MustRegister(name string, fn HandlerFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup resolves a target reference to its handler.
func (r *Registry) Lookup(name string) (HandlerFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("no handler registered for %q", name)
	}
	return fn, nil
}

// Names returns the registered target names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
