// Package registry holds the set of apps currently known to the dashboard.
//
// Entries are keyed by app name. Writers may call in from any goroutine;
// the last registration for a name wins. Every write stamps the entry with
// a fresh generation so that deferred work (render tasks queued on the
// dashboard's render goroutine) can tell whether the entry it was created
// for is still the current one.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/ace-dash/pkg/app"
)

var (
	// ErrNotFound indicates a deregistration or lookup for a name that is
	// not registered. Callers treat it as benign.
	ErrNotFound = errors.New("registry: app not registered")
	// ErrInvalidApp indicates a nil app or an app with an empty name.
	ErrInvalidApp = errors.New("registry: invalid app")
)

// Entry is a registered app together with its registration metadata.
type Entry struct {
	App          app.App
	Generation   uint64
	RegisteredAt time.Time
}

// Name returns the app name of the entry.
func (e Entry) Name() string { return e.App.Name() }

// Registry is a concurrency-safe map of app name to Entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	gen     uint64 // last issued generation, protected by mu
	now     func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Register stores a under a.Name(), replacing any previous entry for that
// name. It reports whether an entry was replaced.
func (r *Registry) Register(a app.App) (Entry, bool, error) {
	if a == nil || a.Name() == "" {
		return Entry{}, false, ErrInvalidApp
	}
	name := a.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.entries[name]
	r.gen++
	e := Entry{App: a, Generation: r.gen, RegisteredAt: r.now()}
	r.entries[name] = e
	return e, replaced, nil
}

// Deregister removes and returns the entry for name. It returns an error
// wrapping ErrNotFound if name is not registered.
func (r *Registry) Deregister(name string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("deregister %q: %w", name, ErrNotFound)
	}
	delete(r.entries, name)
	return e, nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e, ok
}

// Current reports whether name is registered with exactly generation gen.
// It is false once the entry is removed or superseded by a newer
// registration.
func (r *Registry) Current(name string, gen uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return ok && e.Generation == gen
}

// Snapshot returns a copy of all entries in registration order (ascending
// generation). Re-registering a name moves it to the end.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	result := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Generation < result[j].Generation
	})
	return result
}

// Names returns the sorted names of all registered apps.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of registered apps.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
