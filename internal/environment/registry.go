package environment

import (
	"sort"
	"sync"

	"github.com/stencilbuild/stencil/internal/template"
)

// Registry maps template keys to compiled programs for the lifetime of one
// build. The bridge registers every precompiled template here; the emitted
// modules mirror the same registration at bundler runtime.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]*template.Program
	used  map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[string]*template.Program),
		used:  make(map[string]struct{}),
	}
}

// Register stores prog under key, replacing any previous entry.
func (r *Registry) Register(key string, prog *template.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[key] = prog
}

// Lookup returns the program registered under key.
func (r *Registry) Lookup(key string) (*template.Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prog, ok := r.byKey[key]
	return prog, ok
}

// MarkUsed records that key was rendered. Unknown keys are recorded too;
// usage reporting should surface renders against keys that never got
// registered.
func (r *Registry) MarkUsed(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used[key] = struct{}{}
}

// Used returns the keys marked used, sorted.
func (r *Registry) Used() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.used))
	for k := range r.used {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Keys returns all registered keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of registered programs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}
