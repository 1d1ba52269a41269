package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/llmkit/model"

	"github.com/randalmurphal/ticketflow/message"
)

// StepType names one agent step in a workflow graph.
type StepType string

// Agent steps.
const (
	StepAnalysis         StepType = "analysis"
	StepPlanning         StepType = "planning"
	StepCommitPlan       StepType = "commit_plan"
	StepPostPlan         StepType = "post_plan"
	StepImplementation   StepType = "implementation"
	StepGitCommit        StepType = "git_commit"
	StepCreatePR         StepType = "create_pr"
	StepPostTicketUpdate StepType = "post_ticket_update"
	StepCompletion       StepType = "completion"
	StepCodeReview       StepType = "code_review"
)

// AllSteps lists every step type in pipeline order.
var AllSteps = []StepType{
	StepAnalysis,
	StepPlanning,
	StepCommitPlan,
	StepPostPlan,
	StepImplementation,
	StepGitCommit,
	StepCreatePR,
	StepPostTicketUpdate,
	StepCompletion,
	StepCodeReview,
}

// Valid reports whether s is a known step type.
func (s StepType) Valid() bool {
	for _, known := range AllSteps {
		if s == known {
			return true
		}
	}
	return false
}

// Errors returned by executors.
var (
	ErrUnknownStep = errors.New("unknown agent step")
	ErrNilOutput   = errors.New("agent step returned no message")
)

// Context is the per-run information a graph hands to each agent step.
// It is built fresh for every call from the graph's typed state and is never
// persisted as-is.
type Context struct {
	TicketID string
	GraphID  string

	PlanRetryCount   int
	ReviewRetryCount int

	// Rejection is the most recent plan rejection, set while re-planning.
	Rejection *message.PlanRejectedMessage

	// CriticalIssues are the previous review's blocking findings, set while
	// a fix round is under review again.
	CriticalIssues []string

	// Model overrides the model chosen for the step, when set.
	Model model.ModelName
}

// Executor runs agent steps. Implementations must honor ctx cancellation.
type Executor interface {
	Execute(ctx context.Context, step StepType, in message.Message, gc Context) (message.Message, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, step StepType, in message.Message, gc Context) (message.Message, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, step StepType, in message.Message, gc Context) (message.Message, error) {
	return f(ctx, step, in, gc)
}

// UnknownStepError reports a step with no handler.
type UnknownStepError struct {
	Step StepType
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("no handler for agent step %q", e.Step)
}

func (e *UnknownStepError) Unwrap() error {
	return ErrUnknownStep
}
