package ticket

import (
	"errors"
	"fmt"
)

// Ticket errors
var (
	// ErrInvalidTransition indicates a state change the workflow does not allow.
	ErrInvalidTransition = errors.New("invalid workflow transition")

	// ErrTerminalState indicates the ticket already reached a terminal state.
	ErrTerminalState = errors.New("ticket is in a terminal state")

	// ErrInsufficientApprovals indicates the plan lacks required approvals.
	ErrInsufficientApprovals = errors.New("insufficient plan approvals")

	// ErrNoRequiredReviewers indicates AssignReviewers got no required reviewer.
	ErrNoRequiredReviewers = errors.New("at least one required reviewer is needed")

	// ErrReviewerNotAssigned indicates a review from someone not on the review set.
	ErrReviewerNotAssigned = errors.New("reviewer is not assigned to this plan")

	// ErrInvalidTicket indicates a ticket built with missing identity.
	ErrInvalidTicket = errors.New("invalid ticket")

	// ErrNotFound indicates no ticket with the given id exists.
	ErrNotFound = errors.New("ticket not found")

	// ErrBusy indicates another operation currently holds the ticket.
	ErrBusy = errors.New("ticket is busy")
)

// TransitionError describes a rejected state change.
type TransitionError struct {
	TicketID string
	From     WorkflowState
	To       WorkflowState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("ticket %s: cannot transition from %s to %s", e.TicketID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Is also matches ErrTerminalState when the ticket was already finished.
func (e *TransitionError) Is(target error) bool {
	return target == ErrTerminalState && e.From.IsTerminal()
}

// QuorumError reports an approval attempt without enough required approvals.
type QuorumError struct {
	TicketID string
	Required int
	Received int
}

func (e *QuorumError) Error() string {
	return fmt.Sprintf("ticket %s: plan cannot be approved. Required: %d, Received: %d",
		e.TicketID, e.Required, e.Received)
}

func (e *QuorumError) Unwrap() error {
	return ErrInsufficientApprovals
}
