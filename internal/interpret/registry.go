package interpret

import "fmt"

// Registry is a generic backend dispatcher mapping engine names to backend
// implementations, with a configurable fallback default.
type Registry[T any] struct {
	backends map[string]T
	fallback string
}

// NewRegistry creates a registry with the given backends and a fallback
// engine name used when the requested engine is not registered.
func NewRegistry[T any](backends map[string]T, fallback string) *Registry[T] {
	return &Registry[T]{backends: backends, fallback: fallback}
}

// Resolve returns the backend for the given engine name, falling back to the
// default.
func (r *Registry[T]) Resolve(engine string) (T, error) {
	if backend, ok := r.backends[engine]; ok {
		return backend, nil
	}
	if backend, ok := r.backends[r.fallback]; ok {
		return backend, nil
	}
	var zero T
	return zero, fmt.Errorf("no backend for engine %q", engine)
}

// Has reports whether a backend is registered for the given engine name.
func (r *Registry[T]) Has(engine string) bool {
	_, ok := r.backends[engine]
	return ok
}

// Engines returns the names of all registered backends.
func (r *Registry[T]) Engines() []string {
	names := make([]string, 0, len(r.backends))
	for k := range r.backends {
		names = append(names, k)
	}
	return names
}
