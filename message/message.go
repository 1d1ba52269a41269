package message

import (
	"strconv"
	"time"
)

// Kind identifies a message variant.
type Kind string

// Message kinds, one per variant.
const (
	KindTicketAnalyzed    Kind = "ticket_analyzed"
	KindAnswersReceived   Kind = "answers_received"
	KindPlanGenerated     Kind = "plan_generated"
	KindPlanCommitted     Kind = "plan_committed"
	KindMessagePosted     Kind = "message_posted"
	KindPlanApproved      Kind = "plan_approved"
	KindPlanRejected      Kind = "plan_rejected"
	KindCodeImplemented   Kind = "code_implemented"
	KindCodeCommitted     Kind = "code_committed"
	KindPRCreated         Kind = "pr_created"
	KindReviewRequested   Kind = "review_requested"
	KindCodeReviewed      Kind = "code_reviewed"
	KindWorkflowCompleted Kind = "workflow_completed"
)

// Message is the closed set of values exchanged between graphs and agent steps.
// Only types in this package implement it.
type Message interface {
	Kind() Kind
	Ticket() string
	sealed()
}

// KindOf returns the kind of m, or "" for a nil message.
func KindOf(m Message) Kind {
	if m == nil {
		return ""
	}
	return m.Kind()
}

// =============================================================================
// Analysis
// =============================================================================

// TicketAnalyzedMessage is produced by the analysis step.
type TicketAnalyzedMessage struct {
	TicketID          string   `json:"ticket_id" validate:"required"`
	Summary           string   `json:"summary"`
	Questions         []string `json:"questions,omitempty"`
	NeedsTicketUpdate bool     `json:"needs_ticket_update,omitempty"`
	ProposedUpdate    string   `json:"proposed_update,omitempty"`
}

// AnswersReceivedMessage carries clarifications for a ticket and starts planning.
type AnswersReceivedMessage struct {
	TicketID string            `json:"ticket_id" validate:"required"`
	Answers  map[string]string `json:"answers,omitempty"`
	Context  string            `json:"context,omitempty"`
}

// =============================================================================
// Planning
// =============================================================================

// PlanGeneratedMessage is the planning step's output.
type PlanGeneratedMessage struct {
	TicketID     string `json:"ticket_id" validate:"required"`
	PlanMarkdown string `json:"plan_markdown" validate:"required"`
	Summary      string `json:"summary,omitempty"`
	Revision     int    `json:"revision"`
}

// PlanCommittedMessage reports where a plan was committed.
type PlanCommittedMessage struct {
	TicketID  string `json:"ticket_id" validate:"required"`
	Branch    string `json:"branch" validate:"required"`
	FilePath  string `json:"file_path,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
}

// Post targets.
const (
	TargetPlanSummary  = "plan_summary"
	TargetTicketUpdate = "ticket_update"
)

// MessagePostedMessage reports that something was posted for humans to read.
type MessagePostedMessage struct {
	TicketID string    `json:"ticket_id" validate:"required"`
	Target   string    `json:"target" validate:"required"`
	URL      string    `json:"url,omitempty"`
	PostedAt time.Time `json:"posted_at"`
}

// PlanApprovedMessage is the human decision approving a plan.
type PlanApprovedMessage struct {
	TicketID   string    `json:"ticket_id" validate:"required"`
	ApprovedBy string    `json:"approved_by" validate:"required"`
	ApprovedAt time.Time `json:"approved_at"`
	Comment    string    `json:"comment,omitempty"`
}

// PlanRejectedMessage is the human decision rejecting a plan.
type PlanRejectedMessage struct {
	TicketID               string `json:"ticket_id" validate:"required"`
	RejectedBy             string `json:"rejected_by,omitempty"`
	Reason                 string `json:"reason" validate:"required"`
	RefinementInstructions string `json:"refinement_instructions,omitempty"`
	RegenerateCompletely   bool   `json:"regenerate_completely,omitempty"`
}

// =============================================================================
// Implementation
// =============================================================================

// CodeImplementedMessage is the implementation step's output.
type CodeImplementedMessage struct {
	TicketID     string   `json:"ticket_id" validate:"required"`
	Branch       string   `json:"branch" validate:"required"`
	Summary      string   `json:"summary,omitempty"`
	FilesChanged []string `json:"files_changed,omitempty"`
}

// CodeCommittedMessage reports the commit holding an implementation.
type CodeCommittedMessage struct {
	TicketID  string `json:"ticket_id" validate:"required"`
	Branch    string `json:"branch" validate:"required"`
	CommitSHA string `json:"commit_sha,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

// PRCreatedMessage reports an opened pull request.
type PRCreatedMessage struct {
	TicketID string `json:"ticket_id" validate:"required"`
	Number   int    `json:"number" validate:"gt=0"`
	URL      string `json:"url" validate:"required"`
	Branch   string `json:"branch,omitempty"`
}

// WorkflowCompletedMessage closes an implementation run.
type WorkflowCompletedMessage struct {
	TicketID    string    `json:"ticket_id" validate:"required"`
	PRNumber    int       `json:"pr_number"`
	PRURL       string    `json:"pr_url,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// =============================================================================
// Code review
// =============================================================================

// ReviewRequestedMessage names the pull request to review.
type ReviewRequestedMessage struct {
	TicketID string `json:"ticket_id" validate:"required"`
	PRNumber int    `json:"pr_number" validate:"gt=0"`
	PRURL    string `json:"pr_url,omitempty"`
}

// Finding severities.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Finding is a single review finding.
type Finding struct {
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
	Severity   string `json:"severity" validate:"required,oneof=critical error warning info"`
	Category   string `json:"category,omitempty"` // security, performance, style, logic, test
	Message    string `json:"message" validate:"required"`
	Suggestion string `json:"suggestion,omitempty"`
}

// CodeReviewedMessage is the review step's output.
type CodeReviewedMessage struct {
	TicketID string    `json:"ticket_id" validate:"required"`
	PRNumber int       `json:"pr_number,omitempty"`
	Approved bool      `json:"approved"`
	Summary  string    `json:"summary,omitempty"`
	Findings []Finding `json:"findings,omitempty" validate:"dive"`
}

// HasCriticalIssues reports whether any finding is critical.
func (m CodeReviewedMessage) HasCriticalIssues() bool {
	for _, f := range m.Findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// CriticalIssues returns the messages of critical findings, prefixed by location.
func (m CodeReviewedMessage) CriticalIssues() []string {
	var issues []string
	for _, f := range m.Findings {
		if f.Severity != SeverityCritical {
			continue
		}
		if f.File == "" {
			issues = append(issues, f.Message)
			continue
		}
		loc := f.File
		if f.Line > 0 {
			loc = loc + ":" + strconv.Itoa(f.Line)
		}
		issues = append(issues, loc+": "+f.Message)
	}
	return issues
}

// =============================================================================
// Message interface
// =============================================================================

func (TicketAnalyzedMessage) Kind() Kind    { return KindTicketAnalyzed }
func (AnswersReceivedMessage) Kind() Kind   { return KindAnswersReceived }
func (PlanGeneratedMessage) Kind() Kind     { return KindPlanGenerated }
func (PlanCommittedMessage) Kind() Kind     { return KindPlanCommitted }
func (MessagePostedMessage) Kind() Kind     { return KindMessagePosted }
func (PlanApprovedMessage) Kind() Kind      { return KindPlanApproved }
func (PlanRejectedMessage) Kind() Kind      { return KindPlanRejected }
func (CodeImplementedMessage) Kind() Kind   { return KindCodeImplemented }
func (CodeCommittedMessage) Kind() Kind     { return KindCodeCommitted }
func (PRCreatedMessage) Kind() Kind         { return KindPRCreated }
func (ReviewRequestedMessage) Kind() Kind   { return KindReviewRequested }
func (CodeReviewedMessage) Kind() Kind      { return KindCodeReviewed }
func (WorkflowCompletedMessage) Kind() Kind { return KindWorkflowCompleted }

func (m TicketAnalyzedMessage) Ticket() string    { return m.TicketID }
func (m AnswersReceivedMessage) Ticket() string   { return m.TicketID }
func (m PlanGeneratedMessage) Ticket() string     { return m.TicketID }
func (m PlanCommittedMessage) Ticket() string     { return m.TicketID }
func (m MessagePostedMessage) Ticket() string     { return m.TicketID }
func (m PlanApprovedMessage) Ticket() string      { return m.TicketID }
func (m PlanRejectedMessage) Ticket() string      { return m.TicketID }
func (m CodeImplementedMessage) Ticket() string   { return m.TicketID }
func (m CodeCommittedMessage) Ticket() string     { return m.TicketID }
func (m PRCreatedMessage) Ticket() string         { return m.TicketID }
func (m ReviewRequestedMessage) Ticket() string   { return m.TicketID }
func (m CodeReviewedMessage) Ticket() string      { return m.TicketID }
func (m WorkflowCompletedMessage) Ticket() string { return m.TicketID }

func (TicketAnalyzedMessage) sealed()    {}
func (AnswersReceivedMessage) sealed()   {}
func (PlanGeneratedMessage) sealed()     {}
func (PlanCommittedMessage) sealed()     {}
func (MessagePostedMessage) sealed()     {}
func (PlanApprovedMessage) sealed()      {}
func (PlanRejectedMessage) sealed()      {}
func (CodeImplementedMessage) sealed()   {}
func (CodeCommittedMessage) sealed()     {}
func (PRCreatedMessage) sealed()         {}
func (ReviewRequestedMessage) sealed()   {}
func (CodeReviewedMessage) sealed()      {}
func (WorkflowCompletedMessage) sealed() {}
