package ticket

import (
	"fmt"
	"maps"
	"time"
)

// StateChange is a domain event recorded on every state transition.
type StateChange struct {
	TicketID string        `json:"ticket_id"`
	From     WorkflowState `json:"from"`
	To       WorkflowState `json:"to"`
	At       time.Time     `json:"at"`
	Reason   string        `json:"reason,omitempty"`
}

// Ticket is the aggregate root for one automation run. It is changed only
// through its methods; Record and FromRecord exist for persistence.
type Ticket struct {
	id       string
	tenantID string
	state    WorkflowState

	createdAt   time.Time
	updatedAt   time.Time
	completedAt *time.Time

	planBranch   string
	planFilePath string
	planMarkdown string

	prNumber int
	prURL    string

	retryCount int
	errorCount int
	lastError  string

	reviews               []PlanReview
	requiredApprovalCount int
	planApprovedAt        *time.Time

	metadata map[string]string
	events   []StateChange
	now      func() time.Time
}

// Option configures a new Ticket.
type Option func(*Ticket)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Ticket) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates a ticket in the Triggered state.
func New(id, tenantID string, opts ...Option) (*Ticket, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidTicket)
	}
	t := &Ticket{
		id:       id,
		tenantID: tenantID,
		state:    StateTriggered,
		metadata: make(map[string]string),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.createdAt = t.now().UTC()
	t.updatedAt = t.createdAt
	return t, nil
}

// =============================================================================
// Accessors
// =============================================================================

func (t *Ticket) ID() string                 { return t.id }
func (t *Ticket) TenantID() string           { return t.tenantID }
func (t *Ticket) State() WorkflowState       { return t.state }
func (t *Ticket) CreatedAt() time.Time       { return t.createdAt }
func (t *Ticket) UpdatedAt() time.Time       { return t.updatedAt }
func (t *Ticket) CompletedAt() *time.Time    { return copyTime(t.completedAt) }
func (t *Ticket) PlanBranch() string         { return t.planBranch }
func (t *Ticket) PlanFilePath() string       { return t.planFilePath }
func (t *Ticket) PlanMarkdown() string       { return t.planMarkdown }
func (t *Ticket) PRNumber() int              { return t.prNumber }
func (t *Ticket) PRURL() string              { return t.prURL }
func (t *Ticket) RetryCount() int            { return t.retryCount }
func (t *Ticket) ErrorCount() int            { return t.errorCount }
func (t *Ticket) LastError() string          { return t.lastError }
func (t *Ticket) RequiredApprovalCount() int { return t.requiredApprovalCount }
func (t *Ticket) PlanApprovedAt() *time.Time { return copyTime(t.planApprovedAt) }
func (t *Ticket) IsTerminal() bool           { return t.state.IsTerminal() }

// PlanReviews returns a copy of the current review set.
func (t *Ticket) PlanReviews() []PlanReview {
	return append([]PlanReview(nil), t.reviews...)
}

// Metadata returns the value for key and whether it is set.
func (t *Ticket) Metadata(key string) (string, bool) {
	v, ok := t.metadata[key]
	return v, ok
}

// AllMetadata returns a copy of the metadata map.
func (t *Ticket) AllMetadata() map[string]string {
	return maps.Clone(t.metadata)
}

// Events returns the state changes recorded since the last ClearEvents.
func (t *Ticket) Events() []StateChange {
	return append([]StateChange(nil), t.events...)
}

// ClearEvents drops recorded events, typically after they were published.
func (t *Ticket) ClearEvents() {
	t.events = nil
}

// =============================================================================
// State transitions
// =============================================================================

// TransitionTo moves the ticket to next, recording a StateChange.
func (t *Ticket) TransitionTo(next WorkflowState, reason string) error {
	if !t.state.CanTransitionTo(next) {
		return &TransitionError{TicketID: t.id, From: t.state, To: next}
	}

	now := t.now().UTC()
	t.events = append(t.events, StateChange{
		TicketID: t.id,
		From:     t.state,
		To:       next,
		At:       now,
		Reason:   reason,
	})
	t.state = next
	t.updatedAt = now
	if next.IsTerminal() {
		t.completedAt = &now
	}
	return nil
}

// Cancel moves a non-terminal ticket to Cancelled.
func (t *Ticket) Cancel(reason string) error {
	return t.TransitionTo(StateCancelled, reason)
}

// Fail records err and moves a non-terminal ticket to Failed.
func (t *Ticket) Fail(err error) error {
	reason := "failed"
	if err != nil {
		t.RecordError(err)
		reason = err.Error()
	}
	return t.TransitionTo(StateFailed, reason)
}

// RecordError counts an error without changing state.
func (t *Ticket) RecordError(err error) {
	if err == nil {
		return
	}
	t.errorCount++
	t.lastError = err.Error()
	t.touch()
}

// =============================================================================
// Artifacts
// =============================================================================

// SetPlan records where the current plan revision lives.
func (t *Ticket) SetPlan(branch, filePath, markdown string) {
	t.planBranch = branch
	t.planFilePath = filePath
	t.planMarkdown = markdown
	t.touch()
}

// SetPullRequest records the opened pull request.
func (t *Ticket) SetPullRequest(number int, url string) {
	t.prNumber = number
	t.prURL = url
	t.touch()
}

// SetMetadata sets a free-form key.
func (t *Ticket) SetMetadata(key, value string) {
	if t.metadata == nil {
		t.metadata = make(map[string]string)
	}
	t.metadata[key] = value
	t.touch()
}

func (t *Ticket) touch() {
	t.updatedAt = t.now().UTC()
}

func copyTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
