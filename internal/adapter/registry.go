package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/gantrylabs/gantry/internal/flow"
)

// ErrAdapterNotFound is returned by Registry.Get when no adapter is
// registered for the requested system. Hitting it at run time is a wiring
// bug, not a condition to recover from.
var ErrAdapterNotFound = errors.New("adapter not registered")

// Registry maps system identifiers to their Adapter instances and fans
// initialization and cleanup out to all of them. Registration happens at
// program initialization time (single-threaded), so no mutex is needed.
type Registry struct {
	adapters map[flow.System]Adapter
	order    []flow.System
}

// NewRegistry creates an empty Registry ready for adapter registration.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[flow.System]Adapter),
	}
}

// Register adds a to the registry, keyed by a.System(). It panics if a is
// nil, reports an empty system, or the system is already registered. These
// are programming errors that should be caught at startup.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		panic("adapter: Register called with nil adapter")
	}
	system := a.System()
	if system == "" {
		panic("adapter: Register called with adapter that reports an empty system")
	}
	if _, exists := r.adapters[system]; exists {
		panic(fmt.Sprintf("adapter: system %q is already registered", system))
	}
	r.adapters[system] = a
	r.order = append(r.order, system)
}

// Get returns the adapter registered for system, or ErrAdapterNotFound
// (wrapped with the system id) when absent.
func (r *Registry) Get(system flow.System) (Adapter, error) {
	a, ok := r.adapters[system]
	if !ok {
		return nil, fmt.Errorf("system %q: %w", system, ErrAdapterNotFound)
	}
	return a, nil
}

// Has reports whether an adapter is registered for system.
func (r *Registry) Has(system flow.System) bool {
	_, ok := r.adapters[system]
	return ok
}

// Systems returns the registered system identifiers in registration order.
func (r *Registry) Systems() []flow.System {
	out := make([]flow.System, len(r.order))
	copy(out, r.order)
	return out
}

// Initialize sets up every registered adapter in registration order. It
// stops at the first failure; the caller must still invoke Cleanup so
// adapters that did initialize release their resources.
func (r *Registry) Initialize(ctx context.Context) error {
	for _, system := range r.order {
		if err := r.adapters[system].Initialize(ctx); err != nil {
			return fmt.Errorf("initializing adapter %q: %w", system, err)
		}
	}
	return nil
}

// Cleanup tears down every registered adapter in reverse registration order
// and joins any errors. Each adapter's Cleanup is responsible for being safe
// to call after a failed or partial Initialize.
func (r *Registry) Cleanup(ctx context.Context) error {
	var errs []error
	for i := len(r.order) - 1; i >= 0; i-- {
		system := r.order[i]
		if err := r.adapters[system].Cleanup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleaning up adapter %q: %w", system, err))
		}
	}
	return errors.Join(errs...)
}
