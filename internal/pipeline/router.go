package pipeline

import (
	"fmt"
	"slices"
)

// Router maps engine names to backends with a default engine for empty or
// unknown names.
type Router[T any] struct {
	backends map[string]T
	fallback string
}

// NewRouter creates a router. fallback names the engine used when a
// requested engine is not registered.
func NewRouter[T any](backends map[string]T, fallback string) *Router[T] {
	if backends == nil {
		backends = map[string]T{}
	}
	return &Router[T]{backends: backends, fallback: fallback}
}

// Route returns the backend for engine, falling back to the default.
func (r *Router[T]) Route(engine string) (T, error) {
	if b, ok := r.backends[engine]; ok {
		return b, nil
	}
	if b, ok := r.backends[r.fallback]; ok {
		return b, nil
	}
	var zero T
	return zero, fmt.Errorf("no backend for engine %q (default %q)", engine, r.fallback)
}

// Has reports whether engine is registered.
func (r *Router[T]) Has(engine string) bool {
	_, ok := r.backends[engine]
	return ok
}

// Engines returns the registered engine names, sorted.
func (r *Router[T]) Engines() []string {
	names := make([]string, 0, len(r.backends))
	for k := range r.backends {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Default is the fallback engine name.
func (r *Router[T]) Default() string { return r.fallback }
