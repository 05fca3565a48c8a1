package workflow

import (
	"context"
	"fmt"
	"sync"
)

// Options carries a step's raw configuration from the workflow YAML.
// Handlers read the keys they understand and ignore the rest.
type Options map[string]any

// Int returns the option named key as an int, or def when absent or of an
// unexpected type. YAML numbers may decode as int or float64.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// String returns the option named key as a string, or def when absent.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// Handler executes one step kind against the run context.
type Handler interface {
	Run(ctx context.Context, wf *Context, opts Options) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, wf *Context, opts Options) error

// Run calls f.
func (f HandlerFunc) Run(ctx context.Context, wf *Context, opts Options) error {
	return f(ctx, wf, opts)
}

// Registry maps step kinds to handlers. Registration happens once at
// startup; lookups are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds kind to h. Re-registering a kind replaces the previous
// handler (last registration wins; useful in tests).
func (r *Registry) Register(kind string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Get returns the handler for kind.
func (r *Registry) Get(kind string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStepKind, kind)
	}
	return h, nil
}
