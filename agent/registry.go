package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/randalmurphal/ticketflow/message"
)

// Handler produces the output message for a single step.
type Handler func(ctx context.Context, in message.Message, gc Context) (message.Message, error)

// Registry is an Executor that dispatches each step to a registered Handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[StepType]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[StepType]Handler)}
}

// Register sets the handler for step, replacing any previous one.
func (r *Registry) Register(step StepType, h Handler) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[step] = h
	return r
}

// Has reports whether step has a handler.
func (r *Registry) Has(step StepType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[step]
	return ok
}

// Steps returns the registered step types, sorted.
func (r *Registry) Steps() []StepType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := make([]StepType, 0, len(r.handlers))
	for s := range r.handlers {
		steps = append(steps, s)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
	return steps
}

// Execute implements Executor.
func (r *Registry) Execute(ctx context.Context, step StepType, in message.Message, gc Context) (message.Message, error) {
	r.mu.RLock()
	h, ok := r.handlers[step]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownStepError{Step: step}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := h(ctx, in, gc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%s: %w", step, ErrNilOutput)
	}
	return out, nil
}
