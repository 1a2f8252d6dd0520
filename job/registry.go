package job

import (
	"context"
	"fmt"
	"sync"

	"github.com/courierhq/courier"
)

// HandlerFunc is a type-erased handler that accepts positional arguments.
// Typed definitions are converted to a HandlerFunc at registration time.
type HandlerFunc func(ctx context.Context, args ArgList) error

// Entry is a registered handler name with its dispatch defaults. On the
// consumer side Handler is the execute function; a pure producer-side
// entry (notably a proxy) carries no Handler at all.
type Entry struct {
	// Name is the declared registration name.
	Name string

	// Target is the handler name written into envelopes dispatched under
	// Name. It equals Name except for proxy entries.
	Target string

	// Defaults are the dispatch defaults declared at registration.
	Defaults Options

	// Handler executes delivered envelopes. Nil on producer-only entries.
	Handler HandlerFunc

	proxy bool
}

// IsProxy reports whether this entry was registered through RegisterProxy.
func (e *Entry) IsProxy() bool { return e.proxy }

// Registry maps logical handler names to dispatch defaults and, on the
// consumer side, execute functions. Registration happens at process start;
// lookups are concurrent thereafter. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// RegisterFunc registers a raw positional-argument handler under name.
// Registering the same name twice in one process fails with
// courier.ErrDuplicateRegistration.
func (r *Registry) RegisterFunc(name string, h HandlerFunc, opts ...Option) error {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return r.add(&Entry{Name: name, Target: name, Defaults: o, Handler: h})
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names returns all registered names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// add atomically installs an entry. Entries are never partially visible.
func (r *Registry) add(e *Entry) error {
	if e.Name == "" {
		return courier.ErrEmptyHandlerName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.Name]; exists {
		return fmt.Errorf("%w: %q", courier.ErrDuplicateRegistration, e.Name)
	}
	r.entries[e.Name] = e
	return nil
}
