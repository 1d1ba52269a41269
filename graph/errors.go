package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/message"
)

// Graph errors
var (
	// ErrInvalidInputType indicates a message of a kind the graph or step does not accept.
	ErrInvalidInputType = errors.New("invalid input message type")

	// ErrNoCheckpointFound indicates Resume found nothing to resume from.
	ErrNoCheckpointFound = errors.New("no checkpoint found")

	// ErrInvalidResumeState indicates the latest checkpoint is not resumable.
	ErrInvalidResumeState = errors.New("checkpoint state is not resumable")

	// ErrTooManyRejections indicates the plan rejection ceiling was exceeded.
	ErrTooManyRejections = errors.New("too many plan rejections")

	// ErrStepFailed indicates an agent step returned an error.
	ErrStepFailed = errors.New("agent step failed")

	// ErrTicketMismatch indicates a resume message for a different ticket.
	ErrTicketMismatch = errors.New("message is for a different ticket")
)

// InputTypeError reports a message kind that was not accepted.
type InputTypeError struct {
	GraphID string
	Step    agent.StepType // empty when the graph entry point rejected the message
	Want    []message.Kind
	Got     message.Kind
}

func (e *InputTypeError) Error() string {
	want := make([]string, len(e.Want))
	for i, k := range e.Want {
		want[i] = string(k)
	}
	got := string(e.Got)
	if got == "" {
		got = "<nil>"
	}
	where := e.GraphID
	if e.Step != "" {
		where += "/" + string(e.Step)
	}
	return fmt.Sprintf("%s: expected %s, got %s", where, strings.Join(want, " or "), got)
}

func (e *InputTypeError) Unwrap() error {
	return ErrInvalidInputType
}

// StepError wraps the failure of one agent step.
type StepError struct {
	GraphID string
	Step    agent.StepType
	Err     error
}

func (e *StepError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s: %v", e.GraphID, e.Err)
	}
	return fmt.Sprintf("%s: step %s: %v", e.GraphID, e.Step, e.Err)
}

// Unwrap exposes both ErrStepFailed and the original error.
func (e *StepError) Unwrap() []error {
	return []error{ErrStepFailed, e.Err}
}

// ResumeStateError reports a checkpoint that the graph cannot resume from.
type ResumeStateError struct {
	GraphID  string
	TicketID string
	State    string
}

func (e *ResumeStateError) Error() string {
	return fmt.Sprintf("%s: ticket %s: cannot resume from %q", e.GraphID, e.TicketID, e.State)
}

func (e *ResumeStateError) Unwrap() error {
	return ErrInvalidResumeState
}

// PersistError wraps a checkpoint store failure. It is the only error a
// graph returns as its second return value.
type PersistError struct {
	Op         string // "save", "load", "supersede"
	GraphID    string
	TicketID   string
	Checkpoint string
	Err        error
}

func (e *PersistError) Error() string {
	if e.Checkpoint != "" {
		return fmt.Sprintf("%s checkpoint %s/%s/%s: %v", e.Op, e.TicketID, e.GraphID, e.Checkpoint, e.Err)
	}
	return fmt.Sprintf("%s checkpoints %s/%s: %v", e.Op, e.TicketID, e.GraphID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Predicates
// =============================================================================

// IsResumeError reports whether err means the graph could not be resumed.
func IsResumeError(err error) bool {
	return errors.Is(err, ErrNoCheckpointFound) || errors.Is(err, ErrInvalidResumeState)
}

// IsRetryExhausted reports whether err means a bounded retry loop gave up.
func IsRetryExhausted(err error) bool {
	return errors.Is(err, ErrTooManyRejections)
}

// IsInputError reports whether err means the caller passed the wrong message.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInputType) || errors.Is(err, ErrTicketMismatch)
}

// FailedStep returns the step a failure happened in, if known.
func FailedStep(err error) agent.StepType {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

// =============================================================================
// Classification
// =============================================================================

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeCancelled
	outcomePersist
)

// classify sorts an error out of a pipeline run. Persist errors go back to
// the caller, cancellation becomes a cancelled result, and anything else is
// a step failure.
func classify(ctx context.Context, graphID string, err error) (outcome, error) {
	var nodeErr *flowgraph.NodeError
	if errors.As(err, &nodeErr) && nodeErr.Err != nil {
		err = nodeErr.Err
	}

	var pe *PersistError
	if errors.As(err, &pe) {
		return outcomePersist, pe
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcomeCancelled, ctxErr
	}
	var se *StepError
	if errors.As(err, &se) {
		return outcomeFailed, se
	}
	return outcomeFailed, &StepError{GraphID: graphID, Err: err}
}
