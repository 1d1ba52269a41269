package checkpoint

import (
	"time"

	"github.com/randalmurphal/ticketflow/message"
)

// Common holds the fields every graph state records. A suspended checkpoint
// sets WaitingFor; a failed one sets Error to the failure text verbatim.
type Common struct {
	TicketID   string `json:"ticket_id"`
	WaitingFor string `json:"waiting_for,omitempty"`
	Error      string `json:"error,omitempty"`
	FailedStep string `json:"failed_step,omitempty"`
}

// Common decodes the shared fields of any graph state.
func (c *Checkpoint) Common() (Common, error) {
	var common Common
	err := c.Decode(&common)
	return common, err
}

// PlanningState is the state recorded by the planning graph.
type PlanningState struct {
	Common

	PlanRetryCount int                           `json:"plan_retry_count"`
	Answers        *message.AnswersReceivedMessage `json:"answers,omitempty"`
	Plan           *message.PlanGeneratedMessage   `json:"plan,omitempty"`
	Commit         *message.PlanCommittedMessage   `json:"commit,omitempty"`
	Posted         *message.MessagePostedMessage   `json:"posted,omitempty"`
	Rejection      *message.PlanRejectedMessage    `json:"rejection,omitempty"`

	ApprovedBy string     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	Completed  bool       `json:"completed,omitempty"`
	Failed     bool       `json:"failed,omitempty"`
}

// ImplementationState is the state recorded by the implementation graph.
type ImplementationState struct {
	Common

	Approval           *message.PlanApprovedMessage      `json:"approval,omitempty"`
	SkipReason         string                            `json:"skip_reason,omitempty"`
	Implementation     *message.CodeImplementedMessage   `json:"implementation,omitempty"`
	Commit             *message.CodeCommittedMessage     `json:"commit,omitempty"`
	PRNumber           int                               `json:"pr_number,omitempty"`
	PRURL              string                            `json:"pr_url,omitempty"`
	TicketUpdatePosted bool                              `json:"ticket_update_posted,omitempty"`
	Completion         *message.WorkflowCompletedMessage `json:"completion,omitempty"`
	IsCompleted        bool                              `json:"is_completed,omitempty"`
	IsFailed           bool                              `json:"is_failed,omitempty"`
}

// ReviewState is the state recorded by the code review graph.
type ReviewState struct {
	Common

	Request               *message.ReviewRequestedMessage `json:"request,omitempty"`
	Review                *message.CodeReviewedMessage    `json:"review,omitempty"`
	ReviewRetryCount      int                             `json:"review_retry_count"`
	CriticalIssues        []string                        `json:"critical_issues,omitempty"`
	Approved              bool                            `json:"approved,omitempty"`
	CompletedWithWarnings bool                            `json:"completed_with_warnings,omitempty"`
	IsFailed              bool                            `json:"is_failed,omitempty"`
}
