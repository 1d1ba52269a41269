package ticket

// WorkflowState is a ticket's lifecycle state.
type WorkflowState string

const (
	StateTriggered               WorkflowState = "triggered"
	StateAnalyzing               WorkflowState = "analyzing"
	StateTicketUpdateGenerated   WorkflowState = "ticket_update_generated"
	StateTicketUpdateUnderReview WorkflowState = "ticket_update_under_review"
	StateTicketUpdateApproved    WorkflowState = "ticket_update_approved"
	StateTicketUpdateRejected    WorkflowState = "ticket_update_rejected"
	StateTicketUpdatePosted      WorkflowState = "ticket_update_posted"
	StatePlanning                WorkflowState = "planning"
	StatePlanPosted              WorkflowState = "plan_posted"
	StatePlanUnderReview         WorkflowState = "plan_under_review"
	StatePlanApproved            WorkflowState = "plan_approved"
	StatePlanRejected            WorkflowState = "plan_rejected"
	StateImplementing            WorkflowState = "implementing"
	StatePRCreated               WorkflowState = "pr_created"
	StateInReview                WorkflowState = "in_review"
	StateCompleted               WorkflowState = "completed"
	StateFailed                  WorkflowState = "failed"
	StateCancelled               WorkflowState = "cancelled"
)

// transitions lists the forward edges out of each non-terminal state.
// Failed and Cancelled are reachable from every non-terminal state and are
// not repeated here.
var transitions = map[WorkflowState][]WorkflowState{
	StateTriggered:               {StateAnalyzing},
	StateAnalyzing:               {StateTicketUpdateGenerated, StatePlanning},
	StateTicketUpdateGenerated:   {StateTicketUpdateUnderReview},
	StateTicketUpdateUnderReview: {StateTicketUpdateApproved, StateTicketUpdateRejected},
	StateTicketUpdateApproved:    {StateTicketUpdatePosted},
	StateTicketUpdateRejected:    {StateAnalyzing},
	StateTicketUpdatePosted:      {StatePlanning},
	StatePlanning:                {StatePlanPosted},
	StatePlanPosted:              {StatePlanUnderReview, StatePlanApproved},
	StatePlanUnderReview:         {StatePlanApproved, StatePlanRejected, StatePlanning},
	StatePlanRejected:            {StatePlanning},
	StatePlanApproved:            {StateImplementing},
	StateImplementing:            {StatePRCreated},
	StatePRCreated:               {StateInReview},
	StateInReview:                {StateCompleted, StateImplementing},
}

// IsTerminal reports whether s is Completed, Cancelled, or Failed.
func (s WorkflowState) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Valid reports whether s is a known state.
func (s WorkflowState) Valid() bool {
	if s.IsTerminal() {
		return true
	}
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s WorkflowState) CanTransitionTo(next WorkflowState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed || next == StateCancelled {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NextStates returns the states reachable from s in one step.
func (s WorkflowState) NextStates() []WorkflowState {
	if s.IsTerminal() {
		return nil
	}
	next := append([]WorkflowState(nil), transitions[s]...)
	return append(next, StateFailed, StateCancelled)
}

func (s WorkflowState) String() string {
	return string(s)
}
