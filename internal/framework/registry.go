package framework

import (
	"errors"
	"fmt"
)

// ErrNoFramework is returned when no registered adapter matches a
// directory.
var ErrNoFramework = errors.New("no supported framework detected")

// Registry holds the ordered list of framework adapters.
// Detection tries adapters in registration order; the first match wins,
// so specific frameworks must be registered before the generic fallback.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a registry with the built-in adapters registered
// in priority order: vite, next, then the npm dev-script fallback.
func NewRegistry() *Registry {
	return &Registry{
		adapters: []Adapter{
			viteAdapter{},
			nextAdapter{},
			npmDevAdapter{},
		},
	}
}

// NewEmptyRegistry creates a registry with no adapters (for testing).
func NewEmptyRegistry() *Registry {
	return &Registry{}
}

// Register appends an adapter to the detection order.
func (r *Registry) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
}

// RegisterBefore inserts an adapter ahead of the named adapter, or
// appends if the name is not registered. Custom adapters use this to
// take priority over the generic fallback.
func (r *Registry) RegisterBefore(name string, a Adapter) {
	for i, existing := range r.adapters {
		if existing.Name() == name {
			r.adapters = append(r.adapters[:i], append([]Adapter{a}, r.adapters[i:]...)...)
			return
		}
	}
	r.adapters = append(r.adapters, a)
}

// Adapters returns the registered adapters in detection order.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}

// Detect returns the first adapter matching the directory.
func (r *Registry) Detect(dir string) (Adapter, error) {
	for _, a := range r.adapters {
		if a.Detect(dir) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNoFramework, dir)
}
