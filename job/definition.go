package job

import (
	"context"
	"fmt"
)

// Definition is a typed handler definition. T is the payload type carried
// as the envelope's single argument (must be JSON-serializable).
type Definition[T any] struct {
	// Name is the unique logical identifier for this handler.
	Name string

	// Handler processes the decoded payload.
	Handler func(ctx context.Context, payload T) error

	// Opts are the dispatch defaults declared with the definition.
	Opts Options
}

// NewDefinition creates a typed handler definition.
func NewDefinition[T any](name string, handler func(ctx context.Context, payload T) error, opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}

// Register registers a typed definition. The generic handler is wrapped in
// a closure that decodes the first positional argument into T before
// calling the typed handler.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func Register[T any](r *Registry, def *Definition[T]) error {
	handler := func(ctx context.Context, args ArgList) error {
		var t T
		if len(args) > 0 {
			if err := args.Decode(&t); err != nil {
				return fmt.Errorf("decode payload for handler %q: %w", def.Name, err)
			}
		}
		return def.Handler(ctx, t)
	}
	return r.add(&Entry{Name: def.Name, Target: def.Name, Defaults: def.Opts, Handler: handler})
}
