package plugin

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Registry manages adapters by name. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	builtin  map[string]Adapter
	rejected []Rejected
	logger   zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		builtin:  make(map[string]Adapter),
		logger:   logger,
	}
}

// Register adds a compiled-in adapter. Invalid adapters are refused.
// Compiled-in adapters survive Refresh.
func (r *Registry) Register(a Adapter) error {
	if err := validateAdapter(a); err != nil {
		return fmt.Errorf("registering %q: %w", a.Name(), err)
	}
	key := strings.ToLower(a.Name())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtin[key] = a
	r.adapters[key] = a
	return nil
}

// Load discovers descriptors in fsys and adds them, replacing adapters of
// the same name.
func (r *Registry) Load(fsys fs.FS) []Rejected {
	found, rejected := Discover(fsys, r.logger)

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, a := range found {
		r.adapters[name] = a
	}
	r.rejected = append(r.rejected, rejected...)
	return rejected
}

// Refresh rebuilds the registry from the compiled-in adapters plus the
// given sources, later sources overriding earlier ones. It is meant to be
// called between scans.
func (r *Registry) Refresh(sources ...fs.FS) []Rejected {
	next := make(map[string]Adapter)
	var rejected []Rejected
	for _, src := range sources {
		found, rej := Discover(src, r.logger)
		for name, a := range found {
			next[name] = a
		}
		rejected = append(rejected, rej...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, a := range r.builtin {
		next[name] = a
	}
	r.adapters = next
	r.rejected = rejected

	r.logger.Info().Int("plugins", len(next)).Int("rejected", len(rejected)).Msg("plugin registry refreshed")
	return rejected
}

// Get retrieves an adapter by name, ignoring case.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return a, nil
}

// All returns all adapters sorted by name.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	result := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		result = append(result, a)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Names returns the sorted adapter names.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, a := range all {
		names[i] = a.Name()
	}
	return names
}

// Len returns the number of adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// Rejected returns the descriptors skipped by Load calls since the last
// Refresh, or by that Refresh.
func (r *Registry) Rejected() []Rejected {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rejected(nil), r.rejected...)
}
