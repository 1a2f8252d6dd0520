package job

import (
	"fmt"
	"strings"

	"github.com/courierhq/courier"
)

// NameDerivation derives the real handler name from a proxy's declared
// name. It is a pure function fixed at registration time — the naming
// convention is a data value, not hidden string slicing. Returning an
// empty string marks the derivation as malformed for that input.
type NameDerivation func(proxyName string) string

// StripSuffix returns the conventional derivation: remove a fixed literal
// suffix from the proxy name. A name that does not carry the suffix, or
// consists only of it, derives to the empty string.
func StripSuffix(suffix string) NameDerivation {
	return func(name string) string {
		if suffix == "" || !strings.HasSuffix(name, suffix) || len(name) == len(suffix) {
			return ""
		}
		return strings.TrimSuffix(name, suffix)
	}
}

// RegisterProxy declares dispatch defaults under proxyName for a handler
// this process does not implement. Envelopes dispatched under proxyName
// are published with the derived target name instead.
//
// Misconfiguration fails here, at registration, never at dispatch time:
// an empty or malformed derived name, a derivation that maps the name to
// itself, or a derived name colliding with an already-registered
// non-proxy handler all fail with courier.ErrInvalidProxyMapping.
func (r *Registry) RegisterProxy(proxyName string, derive NameDerivation, opts ...Option) error {
	if proxyName == "" {
		return courier.ErrEmptyHandlerName
	}
	if derive == nil {
		return fmt.Errorf("%w: nil derivation for %q", courier.ErrInvalidProxyMapping, proxyName)
	}

	target := derive(proxyName)
	if target == "" {
		return fmt.Errorf("%w: %q derives to an empty name", courier.ErrInvalidProxyMapping, proxyName)
	}
	if target == proxyName {
		return fmt.Errorf("%w: %q derives to itself", courier.ErrInvalidProxyMapping, proxyName)
	}
	if existing, ok := r.Lookup(target); ok && !existing.IsProxy() {
		return fmt.Errorf("%w: %q derives to already-registered handler %q",
			courier.ErrInvalidProxyMapping, proxyName, target)
	}

	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return r.add(&Entry{Name: proxyName, Target: target, Defaults: o, proxy: true})
}
