package notify

import (
	"context"
	"time"
)

// =============================================================================
// Notification Types
// =============================================================================

// EventType represents the type of workflow event.
type EventType string

// Event type constants.
const (
	EventAwaitingApproval   EventType = "awaiting_approval"
	EventPlanApproved       EventType = "plan_approved"
	EventTooManyRejections  EventType = "too_many_rejections"
	EventImplementSkipped   EventType = "implementation_skipped"
	EventPRCreated          EventType = "pr_created"
	EventWorkflowCompleted  EventType = "workflow_completed"
	EventReviewApproved     EventType = "review_approved"
	EventAwaitingFixes      EventType = "awaiting_fixes"
	EventReviewMaxRetries   EventType = "review_max_retries"
	EventGraphFailed        EventType = "graph_failed"
	EventTicketStateChanged EventType = "ticket_state_changed"
	EventPlanPosted         EventType = "plan_posted"
	EventTicketUpdatePosted EventType = "ticket_update_posted"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Event describes a workflow event for notification.
type Event struct {
	Type      EventType      `json:"type"`
	TicketID  string         `json:"ticket_id"`
	GraphID   string         `json:"graph_id,omitempty"`
	State     string         `json:"state,omitempty"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"` // SeverityInfo, SeverityWarning, SeverityError
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// =============================================================================
// Notifier Interface
// =============================================================================

// Notifier sends notifications about workflow events.
type Notifier interface {
	// Notify sends a notification. Callers treat errors as non-fatal.
	Notify(ctx context.Context, event Event) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, event Event) error

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// =============================================================================
// Context Injection
// =============================================================================

type serviceContextKey string

const notifierServiceKey serviceContextKey = "ticketflow.notifier"

// WithNotifier adds a Notifier to the context.
func WithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, notifierServiceKey, n)
}

// NotifierFromContext extracts the Notifier from context.
// Returns nil if no notifier is configured.
func NotifierFromContext(ctx context.Context) Notifier {
	if n, ok := ctx.Value(notifierServiceKey).(Notifier); ok {
		return n
	}
	return nil
}
