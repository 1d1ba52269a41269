package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/message"
)

// Call records one step executed by an Executor.
type Call struct {
	Step    agent.StepType
	Input   message.Message
	Context agent.Context
}

// Executor is a scripted agent.Executor for tests. Every step has a default
// handler producing a valid message; override steps with On or Fail.
type Executor struct {
	mu       sync.Mutex
	handlers map[agent.StepType]agent.Handler
	calls    []Call
}

// NewExecutor creates an Executor whose steps all succeed.
func NewExecutor() *Executor {
	return &Executor{handlers: DefaultHandlers()}
}

// On replaces the handler for step.
func (e *Executor) On(step agent.StepType, h agent.Handler) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[step] = h
	return e
}

// Fail makes step return err.
func (e *Executor) Fail(step agent.StepType, err error) *Executor {
	return e.On(step, func(context.Context, message.Message, agent.Context) (message.Message, error) {
		return nil, err
	})
}

// Execute implements agent.Executor.
func (e *Executor) Execute(ctx context.Context, step agent.StepType, in message.Message, gc agent.Context) (message.Message, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Step: step, Input: in, Context: gc})
	h, ok := e.handlers[step]
	e.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no scripted handler for %s", step)
	}
	return h(ctx, in, gc)
}

// Calls returns recorded calls, optionally filtered to one step.
func (e *Executor) Calls(step ...agent.StepType) []Call {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(step) == 0 {
		return append([]Call(nil), e.calls...)
	}
	var out []Call
	for _, c := range e.calls {
		if c.Step == step[0] {
			out = append(out, c)
		}
	}
	return out
}

// CallCount returns how many times step ran.
func (e *Executor) CallCount(step agent.StepType) int {
	return len(e.Calls(step))
}

// FixedTime is the timestamp scripted handlers put in their messages.
var FixedTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// DefaultHandlers returns happy-path handlers for every step.
func DefaultHandlers() map[agent.StepType]agent.Handler {
	return map[agent.StepType]agent.Handler{
		agent.StepAnalysis: func(_ context.Context, in message.Message, _ agent.Context) (message.Message, error) {
			return message.TicketAnalyzedMessage{TicketID: in.Ticket(), Summary: "analyzed"}, nil
		},
		agent.StepPlanning: func(_ context.Context, in message.Message, gc agent.Context) (message.Message, error) {
			return message.PlanGeneratedMessage{
				TicketID:     in.Ticket(),
				PlanMarkdown: fmt.Sprintf("# Plan for %s (revision %d)\n", in.Ticket(), gc.PlanRetryCount),
				Revision:     gc.PlanRetryCount,
			}, nil
		},
		agent.StepCommitPlan: func(_ context.Context, in message.Message, _ agent.Context) (message.Message, error) {
			return message.PlanCommittedMessage{
				TicketID:  in.Ticket(),
				Branch:    "plan/" + in.Ticket(),
				FilePath:  "plans/" + in.Ticket() + ".md",
				CommitSHA: "abc123",
			}, nil
		},
		agent.StepPostPlan: func(_ context.Context, in message.Message, _ agent.Context) (message.Message, error) {
			return message.MessagePostedMessage{TicketID: in.Ticket(), Target: message.TargetPlanSummary, PostedAt: FixedTime}, nil
		},
		agent.StepImplementation: func(_ context.Context, in message.Message, _ agent.Context) (message.Message, error) {
			return message.CodeImplementedMessage{TicketID: in.Ticket(), Branch: "feature/" + in.Ticket(), Summary: "implemented"}, nil
		},
		agent.StepGitCommit: func(_ context.Context, in message.Message, _ agent.Context) (message.Message, error) {
			return message.CodeCommittedMessage{TicketID: in.Ticket(), Branch: "feature/" + in.Ticket(), CommitSHA: "def456"}, nil
		},
		agent.StepCreatePR: func(_ context.Context, in message.Message, _ agent.Context) (message.Message, error) {
			return message.PRCreatedMessage{
				TicketID: in.Ticket(),
				Number:   42,
				URL:      "https://github.com/acme/api/pull/42",
				Branch:   "feature/" + in.Ticket(),
			}, nil
		},
		agent.StepPostTicketUpdate: func(_ context.Context, in message.Message, _ agent.Context) (message.Message, error) {
			return message.MessagePostedMessage{TicketID: in.Ticket(), Target: message.TargetTicketUpdate, PostedAt: FixedTime}, nil
		},
		agent.StepCompletion: func(_ context.Context, in message.Message, _ agent.Context) (message.Message, error) {
			pr, _ := in.(message.PRCreatedMessage)
			return message.WorkflowCompletedMessage{
				TicketID:    in.Ticket(),
				PRNumber:    pr.Number,
				PRURL:       pr.URL,
				CompletedAt: FixedTime,
			}, nil
		},
		agent.StepCodeReview: func(_ context.Context, in message.Message, _ agent.Context) (message.Message, error) {
			req, _ := in.(message.ReviewRequestedMessage)
			return message.CodeReviewedMessage{TicketID: in.Ticket(), PRNumber: req.PRNumber, Approved: true}, nil
		},
	}
}

// CriticalReview returns a code_review handler that always reports one
// critical finding.
func CriticalReview() agent.Handler {
	return func(_ context.Context, in message.Message, _ agent.Context) (message.Message, error) {
		return message.CodeReviewedMessage{
			TicketID: in.Ticket(),
			Findings: []message.Finding{{
				File:     "auth/token.go",
				Line:     12,
				Severity: message.SeverityCritical,
				Message:  "token written to logs",
			}},
		}, nil
	}
}
