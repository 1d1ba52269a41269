package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/checkpoint"
	"github.com/randalmurphal/ticketflow/message"
	"github.com/randalmurphal/ticketflow/notify"
)

// CodeReviewGraphID is the graph id of CodeReviewGraph.
const CodeReviewGraphID = "code_review"

// Code review checkpoint ids.
const (
	ReviewStateCompleted     = "review_completed"
	ReviewStateApproved      = "review_approved"
	ReviewStateAwaitingFixes = "awaiting_fixes"
	ReviewStateMaxRetries    = "max_retries_reached"
)

// MaxReviewRetries is the number of fix rounds requested before a review
// with critical issues completes with warnings instead.
const MaxReviewRetries = 3

// WaitingForFixes is recorded while critical review issues await fixes.
const WaitingForFixes = "fixes"

var reviewResume = ResumeTable{
	ReviewStateAwaitingFixes: {message.KindReviewRequested},
}

type reviewRun struct {
	state  checkpoint.ReviewState
	result Result
}

// CodeReviewGraph reviews a pull request and loops through fix rounds while
// critical issues remain, up to MaxReviewRetries.
type CodeReviewGraph struct {
	rt       *runtime
	pipeline func(ctx context.Context, run *reviewRun) (*reviewRun, error)
}

// NewCodeReviewGraph creates a CodeReviewGraph. It panics if exec or store is nil.
func NewCodeReviewGraph(exec agent.Executor, store checkpoint.Store, opts ...Option) *CodeReviewGraph {
	g := &CodeReviewGraph{rt: newRuntime(CodeReviewGraphID, exec, store, opts)}

	compiled, err := flowgraph.NewGraph[*reviewRun]().
		AddNode("review", g.reviewNode).
		AddNode("approve", g.approveNode).
		AddNode("await_fixes", g.awaitFixesNode).
		AddNode("max_retries", g.maxRetriesNode).
		AddConditionalEdge("review", g.route).
		AddEdge("approve", flowgraph.END).
		AddEdge("await_fixes", flowgraph.END).
		AddEdge("max_retries", flowgraph.END).
		SetEntry("review").
		Compile()
	if err != nil {
		panic(fmt.Sprintf("graph: compile code review pipeline: %v", err))
	}
	g.pipeline = func(ctx context.Context, run *reviewRun) (*reviewRun, error) {
		return compiled.Run(flowgraph.NewContext(ctx), run)
	}
	return g
}

// ID implements Graph.
func (g *CodeReviewGraph) ID() string { return CodeReviewGraphID }

// AcceptedInputs implements Describer.
func (g *CodeReviewGraph) AcceptedInputs() []message.Kind {
	return []message.Kind{message.KindReviewRequested}
}

// ResumeTable implements Describer.
func (g *CodeReviewGraph) ResumeTable() ResumeTable { return reviewResume }

// Execute starts a review with a zero retry count.
func (g *CodeReviewGraph) Execute(ctx context.Context, in message.Message) (Result, error) {
	defer g.rt.observe("execute", time.Now())

	req, ok := in.(message.ReviewRequestedMessage)
	if !ok {
		return g.rt.invalidInput(in, g.AcceptedInputs()...), nil
	}
	if res, ok := g.rt.checkInput(req.TicketID, req); !ok {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return g.rt.cancelled(req.TicketID, err), nil
	}
	if err := g.rt.startOver(ctx, req.TicketID); err != nil {
		return Result{}, err
	}

	return g.run(ctx, &reviewRun{state: checkpoint.ReviewState{
		Common:  checkpoint.Common{TicketID: req.TicketID},
		Request: &req,
	}})
}

// Resume reviews again after fixes, carrying the stored retry count and the
// previous critical issues.
func (g *CodeReviewGraph) Resume(ctx context.Context, ticketID string, in message.Message) (Result, error) {
	defer g.rt.observe("resume", time.Now())

	if err := ctx.Err(); err != nil {
		return g.rt.cancelled(ticketID, err), nil
	}
	cp, res, err := g.rt.loadForResume(ctx, ticketID, in, reviewResume)
	if cp == nil {
		return res, err
	}

	req, ok := in.(message.ReviewRequestedMessage)
	if !ok {
		return g.rt.invalidInput(in, reviewResume[cp.CheckpointID]...), nil
	}
	var st checkpoint.ReviewState
	if err := cp.Decode(&st); err != nil {
		return g.rt.reject(ticketID, StateResumeFailed, err), nil
	}
	st.TicketID = ticketID
	st.Request = &req
	st.WaitingFor = ""
	return g.run(ctx, &reviewRun{state: st})
}

func (g *CodeReviewGraph) run(ctx context.Context, run *reviewRun) (Result, error) {
	if _, err := g.pipeline(ctx, run); err != nil {
		return g.rt.finish(ctx, &run.state.Common, err, func() any {
			run.state.IsFailed = true
			return run.state
		})
	}
	return run.result, nil
}

// =============================================================================
// Nodes
// =============================================================================

func (g *CodeReviewGraph) reviewNode(ctx flowgraph.Context, run *reviewRun) (*reviewRun, error) {
	gc := g.rt.agentContext(run.state.TicketID)
	gc.ReviewRetryCount = run.state.ReviewRetryCount
	gc.CriticalIssues = run.state.CriticalIssues

	out, err := call[message.CodeReviewedMessage](ctx, g.rt, agent.StepCodeReview, *run.state.Request, gc)
	if err != nil {
		return run, err
	}
	run.state.Review = &out
	return run, nil
}

func (g *CodeReviewGraph) route(_ flowgraph.Context, run *reviewRun) string {
	switch {
	case !run.state.Review.HasCriticalIssues():
		return "approve"
	case run.state.ReviewRetryCount < MaxReviewRetries:
		return "await_fixes"
	default:
		return "max_retries"
	}
}

func (g *CodeReviewGraph) approveNode(ctx flowgraph.Context, run *reviewRun) (*reviewRun, error) {
	run.state.Approved = true
	run.state.CriticalIssues = nil

	for _, id := range []string{ReviewStateCompleted, ReviewStateApproved} {
		if err := g.rt.save(ctx, run.state.TicketID, id, checkpoint.Snapshot{
			Value:     run.state,
			AgentName: string(agent.StepCodeReview),
		}); err != nil {
			return run, err
		}
	}
	g.rt.notify(ctx, notify.Event{
		Type:     notify.EventReviewApproved,
		TicketID: run.state.TicketID,
		State:    ReviewStateApproved,
		Message:  "Code review passed",
		Metadata: reviewMetadata(run.state),
	})
	run.result = g.rt.succeeded(run.state.TicketID, ReviewStateApproved, *run.state.Review)
	return run, nil
}

func (g *CodeReviewGraph) awaitFixesNode(ctx flowgraph.Context, run *reviewRun) (*reviewRun, error) {
	run.state.ReviewRetryCount++
	run.state.CriticalIssues = run.state.Review.CriticalIssues()
	run.state.WaitingFor = WaitingForFixes

	if err := g.rt.save(ctx, run.state.TicketID, ReviewStateAwaitingFixes, checkpoint.Snapshot{
		Value:         run.state,
		AgentName:     string(agent.StepCodeReview),
		NextAgentType: string(agent.StepImplementation),
	}); err != nil {
		return run, err
	}
	g.rt.notify(ctx, notify.Event{
		Type:     notify.EventAwaitingFixes,
		TicketID: run.state.TicketID,
		State:    ReviewStateAwaitingFixes,
		Message:  fmt.Sprintf("%d critical issues need fixes", len(run.state.CriticalIssues)),
		Severity: notify.SeverityWarning,
		Metadata: reviewMetadata(run.state),
	})
	run.result = g.rt.suspended(run.state.TicketID, ReviewStateAwaitingFixes, *run.state.Review)
	return run, nil
}

func (g *CodeReviewGraph) maxRetriesNode(ctx flowgraph.Context, run *reviewRun) (*reviewRun, error) {
	run.state.CriticalIssues = run.state.Review.CriticalIssues()
	run.state.CompletedWithWarnings = true

	if err := g.rt.save(ctx, run.state.TicketID, ReviewStateMaxRetries, checkpoint.Snapshot{
		Value:     run.state,
		AgentName: string(agent.StepCodeReview),
	}); err != nil {
		return run, err
	}
	g.rt.notify(ctx, notify.Event{
		Type:     notify.EventReviewMaxRetries,
		TicketID: run.state.TicketID,
		State:    ReviewStateMaxRetries,
		Message:  "Review retries exhausted, completing with warnings",
		Severity: notify.SeverityWarning,
		Metadata: reviewMetadata(run.state),
	})
	run.result = g.rt.succeeded(run.state.TicketID, ReviewStateMaxRetries, *run.state.Review)
	return run, nil
}

func reviewMetadata(st checkpoint.ReviewState) map[string]any {
	meta := map[string]any{"review_retry_count": st.ReviewRetryCount}
	if st.Request != nil {
		meta["pr_number"] = st.Request.PRNumber
	}
	if n := len(st.CriticalIssues); n > 0 {
		meta["critical_issues"] = n
	}
	return meta
}
