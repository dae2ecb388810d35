package resque

import (
	"context"
	"fmt"
	"sync"
)

// Performer is the interface a job class must implement. Perform receives
// the job's decoded argument list and returns a JSON-serializable result
// or an error; any error fails the job.
//
// This is the Go-idiomatic replacement for the dynamic class lookup the
// original Ruby Resque does at runtime (spec.md §9's design note), grounded
// on the Registry/WorkerFunc shape in the retrieval pack's
// BranchIntl-goworker2 example.
type Performer interface {
	Perform(ctx context.Context, args []interface{}) (interface{}, error)
}

// PerformerFunc adapts a plain function to the Performer interface.
type PerformerFunc func(ctx context.Context, args []interface{}) (interface{}, error)

func (f PerformerFunc) Perform(ctx context.Context, args []interface{}) (interface{}, error) {
	return f(ctx, args)
}

// ClassRegistry maps a job class name to a constructor for a fresh
// Performer instance, so each job gets its own instance the way the
// original Ruby `class.new.perform` does.
//
// Class registration must happen before the process can run in child
// mode (see childsupervisor.go): the self-re-exec child is the same
// binary and relies on the same registrations having already run in
// package-level init() or early in main(), before flag dispatch decides
// whether this process is a parent or a child.
type ClassRegistry struct {
	mu  sync.RWMutex
	ctr map[string]func() Performer
}

// NewClassRegistry creates an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{ctr: make(map[string]func() Performer)}
}

// Register adds a constructor for the given class name, overwriting any
// existing registration.
func (r *ClassRegistry) Register(class string, ctor func() Performer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctr[class] = ctor
}

// Get constructs a fresh Performer for class, or an error if unregistered.
func (r *ClassRegistry) Get(class string) (Performer, error) {
	r.mu.RLock()
	ctor, ok := r.ctr[class]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("resque: no job class registered for %q", class)
	}
	return ctor(), nil
}

// List returns the registered class names.
func (r *ClassRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctr))
	for name := range r.ctr {
		names = append(names, name)
	}
	return names
}
