package executor

import (
	"context"

	"github.com/google/wire"

	"github.com/jobs/scheduler/internal/models"
)

var Provider = wire.NewSet(NewRegistry, NewBuiltinCapabilities)

// Registry holds the ordered list of capabilities the Execution
// Coordinator dispatches to. First match wins.
type Registry struct {
	capabilities []Capability
}

func NewRegistry(capabilities []Capability) *Registry {
	return &Registry{capabilities: capabilities}
}

// NewBuiltinCapabilities is the default capability set: DUMMY, HTTP, SHELL.
func NewBuiltinCapabilities() []Capability {
	return []Capability{
		&DummyExecutor{},
		&HTTPExecutor{},
		&ShellExecutor{},
	}
}

// Dispatch returns the first capability that handles taskType, or nil if
// none do.
func (r *Registry) Dispatch(taskType models.TaskType) Capability {
	for _, c := range r.capabilities {
		if c.Handles(taskType) {
			return c
		}
	}
	return nil
}

// Execute is a convenience wrapper used directly by tests; production
// callers go through the Coordinator, which needs the "no executor"
// branch visible for its own failure path.
func (r *Registry) Execute(ctx context.Context, task *models.Task) (*ExecutionResult, error) {
	capability := r.Dispatch(task.Type)
	if capability == nil {
		return nil, Unrecoverable("no executor for type %s", task.Type)
	}
	return capability.Execute(ctx, task)
}
