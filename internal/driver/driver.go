// Package driver defines the polymorphic execution-driver contract shared by
// the interactive, distributed, and batch backends, together with the
// registry the async path uses to route polls back to the owning backend.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tapgate/tapgate/internal/result"
)

// State is a job's lifecycle state as observed through Job. Transitions are
// driven entirely by the owning driver: PENDING -> EXECUTING -> COMPLETED,
// ERROR, or ABORTED.
type State string

const (
	StatePending   State = "PENDING"
	StateExecuting State = "EXECUTING"
	StateCompleted State = "COMPLETED"
	StateError     State = "ERROR"
	StateAborted   State = "ABORTED"
)

// Terminal reports whether a state is final.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateError, StateAborted:
		return true
	default:
		return false
	}
}

// ExecError is a backend execution failure translated into the standard
// shape. Kind is the backend exception class surfaced to the client.
type ExecError struct {
	Kind    string
	Message string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// JobStatus is a live snapshot of one job. Result is non-nil only once the
// state is COMPLETED and retrieves the materialized table.
type JobStatus struct {
	JobID  string
	State  State
	Error  *ExecError
	Result func(ctx context.Context) (result.Table, error)
}

// ErrUnknownJob marks a job id the driver has never issued.
var ErrUnknownJob = errors.New("driver: unknown job")

// ErrNotImplemented marks a capability a driver does not back with a concrete
// implementation. Callers must surface it legibly, never as an empty success.
var ErrNotImplemented = errors.New("driver: capability not implemented")

// Driver is the capability set every execution backend implements. Submit
// must not block for completion; the returned handle is unique within the
// driver's namespace (the job store enforces global uniqueness).
type Driver interface {
	Submit(ctx context.Context, query, userID string) (string, error)
	Job(ctx context.Context, jobID string) (JobStatus, error)
	List(ctx context.Context, userID string) ([]string, error)
}

// Aborter is the optional cancellation extension. Drivers that cannot cancel
// simply do not implement it.
type Aborter interface {
	Abort(ctx context.Context, jobID string) error
}

// Registry resolves driver names to live driver instances.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

func (r *Registry) Register(name string, d Driver) error {
	if name == "" {
		return fmt.Errorf("driver name is required")
	}
	if d == nil {
		return fmt.Errorf("driver %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.drivers[name]; exists {
		return fmt.Errorf("driver %q already registered", name)
	}
	r.drivers[name] = d
	return nil
}

func (r *Registry) Lookup(name string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	return d, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
