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
	"github.com/randalmurphal/ticketflow/tenant"
)

// ImplementationGraphID is the graph id of ImplementationGraph.
const ImplementationGraphID = "implementation"

// Implementation checkpoint ids.
const (
	ImplStateSkipped         = "skipped"
	ImplStateCodeImplemented = "code_implemented"
	ImplStateCodeCommitted   = "code_committed"
	ImplStatePRCreated       = "pr_created"
	ImplStateCompleted       = "completed"
)

// Every checkpoint except completed restarts the pipeline from the top.
var implementationResume = ResumeTable{
	ImplStateSkipped:         {message.KindPlanApproved},
	StateFailed:              {message.KindPlanApproved},
	ImplStateCodeImplemented: {message.KindPlanApproved},
	ImplStateCodeCommitted:   {message.KindPlanApproved},
	ImplStatePRCreated:       {message.KindPlanApproved},
}

type implRun struct {
	state checkpoint.ImplementationState
}

// ImplementationGraph implements an approved plan and opens a pull request.
//
//	tenant check → implementation → git_commit → create_pr ∥ post_ticket_update → completion
//
// Any step failure is terminal for the run; re-delivering PlanApproved via
// Resume starts over.
type ImplementationGraph struct {
	rt       *runtime
	tenants  tenant.Provider
	pipeline func(ctx context.Context, run *implRun) (*implRun, error)
}

// NewImplementationGraph creates an ImplementationGraph. A nil tenant
// provider makes every run skip. It panics if exec or store is nil.
func NewImplementationGraph(exec agent.Executor, store checkpoint.Store, tenants tenant.Provider, opts ...Option) *ImplementationGraph {
	g := &ImplementationGraph{
		rt:      newRuntime(ImplementationGraphID, exec, store, opts),
		tenants: tenants,
	}

	compiled, err := flowgraph.NewGraph[*implRun]().
		AddNode("implement", g.implementNode).
		AddNode("commit", g.commitNode).
		AddNode("publish", g.publishNode).
		AddNode("complete", g.completeNode).
		AddEdge("implement", "commit").
		AddEdge("commit", "publish").
		AddEdge("publish", "complete").
		AddEdge("complete", flowgraph.END).
		SetEntry("implement").
		Compile()
	if err != nil {
		panic(fmt.Sprintf("graph: compile implementation pipeline: %v", err))
	}
	g.pipeline = func(ctx context.Context, run *implRun) (*implRun, error) {
		return compiled.Run(flowgraph.NewContext(ctx), run)
	}
	return g
}

// ID implements Graph.
func (g *ImplementationGraph) ID() string { return ImplementationGraphID }

// AcceptedInputs implements Describer.
func (g *ImplementationGraph) AcceptedInputs() []message.Kind {
	return []message.Kind{message.KindPlanApproved}
}

// ResumeTable implements Describer.
func (g *ImplementationGraph) ResumeTable() ResumeTable { return implementationResume }

// Execute runs the pipeline for an approved plan.
func (g *ImplementationGraph) Execute(ctx context.Context, in message.Message) (Result, error) {
	defer g.rt.observe("execute", time.Now())

	approval, ok := in.(message.PlanApprovedMessage)
	if !ok {
		return g.rt.invalidInput(in, g.AcceptedInputs()...), nil
	}
	if res, ok := g.rt.checkInput(approval.TicketID, approval); !ok {
		return res, nil
	}
	return g.start(ctx, approval)
}

// Resume restarts the whole pipeline. Partial progress is not reused.
func (g *ImplementationGraph) Resume(ctx context.Context, ticketID string, in message.Message) (Result, error) {
	defer g.rt.observe("resume", time.Now())

	if err := ctx.Err(); err != nil {
		return g.rt.cancelled(ticketID, err), nil
	}
	cp, res, err := g.rt.loadForResume(ctx, ticketID, in, implementationResume)
	if cp == nil {
		return res, err
	}
	approval, ok := in.(message.PlanApprovedMessage)
	if !ok {
		return g.rt.invalidInput(in, implementationResume[cp.CheckpointID]...), nil
	}
	g.rt.log().Info("restarting implementation", "ticket_id", ticketID, "from", cp.CheckpointID)
	return g.start(ctx, approval)
}

func (g *ImplementationGraph) start(ctx context.Context, approval message.PlanApprovedMessage) (Result, error) {
	if err := ctx.Err(); err != nil {
		return g.rt.cancelled(approval.TicketID, err), nil
	}
	if err := g.rt.startOver(ctx, approval.TicketID); err != nil {
		return Result{}, err
	}

	st := checkpoint.ImplementationState{
		Common:   checkpoint.Common{TicketID: approval.TicketID},
		Approval: &approval,
	}

	if reason := g.skipReason(ctx, approval.TicketID); reason != "" {
		st.SkipReason = reason
		if err := g.rt.save(ctx, st.TicketID, ImplStateSkipped, checkpoint.Snapshot{Value: st}); err != nil {
			return Result{}, err
		}
		g.rt.notify(ctx, notify.Event{
			Type:     notify.EventImplementSkipped,
			TicketID: st.TicketID,
			State:    ImplStateSkipped,
			Message:  reason,
			Severity: notify.SeverityWarning,
		})
		return g.rt.succeeded(st.TicketID, ImplStateSkipped, nil), nil
	}

	run := &implRun{state: st}
	if _, err := g.pipeline(ctx, run); err != nil {
		return g.rt.finish(ctx, &run.state.Common, err, func() any {
			run.state.IsFailed = true
			return run.state
		})
	}
	return g.rt.succeeded(st.TicketID, ImplStateCompleted, *run.state.Completion), nil
}

// skipReason returns why the ticket must not be implemented automatically,
// or "" when it may. Lookup errors count as disabled.
func (g *ImplementationGraph) skipReason(ctx context.Context, ticketID string) string {
	if g.tenants == nil {
		return "no tenant configuration provider"
	}
	cfg, err := g.tenants.GetConfigurationForTicket(ctx, ticketID)
	switch {
	case err != nil:
		g.rt.log().Warn("tenant lookup failed, treating as disabled", "ticket_id", ticketID, "error", err)
		return fmt.Sprintf("tenant configuration unavailable: %v", err)
	case cfg == nil:
		return "no tenant configuration for ticket"
	case !cfg.AutoImplementAfterPlanApproval:
		return fmt.Sprintf("auto-implementation disabled for tenant %s", cfg.TenantID)
	}
	return ""
}

// =============================================================================
// Nodes
// =============================================================================

func (g *ImplementationGraph) implementNode(ctx flowgraph.Context, run *implRun) (*implRun, error) {
	out, err := call[message.CodeImplementedMessage](ctx, g.rt, agent.StepImplementation,
		*run.state.Approval, g.rt.agentContext(run.state.TicketID))
	if err != nil {
		return run, err
	}
	run.state.Implementation = &out
	return run, g.rt.save(ctx, run.state.TicketID, ImplStateCodeImplemented, checkpoint.Snapshot{
		Value:         run.state,
		AgentName:     string(agent.StepImplementation),
		NextAgentType: string(agent.StepGitCommit),
	})
}

func (g *ImplementationGraph) commitNode(ctx flowgraph.Context, run *implRun) (*implRun, error) {
	out, err := call[message.CodeCommittedMessage](ctx, g.rt, agent.StepGitCommit,
		*run.state.Implementation, g.rt.agentContext(run.state.TicketID))
	if err != nil {
		return run, err
	}
	run.state.Commit = &out
	return run, g.rt.save(ctx, run.state.TicketID, ImplStateCodeCommitted, checkpoint.Snapshot{
		Value:         run.state,
		AgentName:     string(agent.StepGitCommit),
		NextAgentType: string(agent.StepCreatePR),
	})
}

func (g *ImplementationGraph) publishNode(ctx flowgraph.Context, run *implRun) (*implRun, error) {
	commit := *run.state.Commit
	gc := g.rt.agentContext(run.state.TicketID)

	pr, posted, err := fork(ctx,
		func(ctx context.Context) (message.PRCreatedMessage, error) {
			return call[message.PRCreatedMessage](ctx, g.rt, agent.StepCreatePR, commit, gc)
		},
		func(ctx context.Context) (message.MessagePostedMessage, error) {
			return call[message.MessagePostedMessage](ctx, g.rt, agent.StepPostTicketUpdate, commit, gc)
		},
	)
	if err != nil {
		return run, err
	}
	run.state.PRNumber = pr.Number
	run.state.PRURL = pr.URL
	run.state.TicketUpdatePosted = posted.Target != ""

	if err := g.rt.save(ctx, run.state.TicketID, ImplStatePRCreated, checkpoint.Snapshot{
		Value:         run.state,
		AgentName:     string(agent.StepCreatePR),
		NextAgentType: string(agent.StepCompletion),
	}); err != nil {
		return run, err
	}
	g.rt.notify(ctx, notify.Event{
		Type:     notify.EventPRCreated,
		TicketID: run.state.TicketID,
		State:    ImplStatePRCreated,
		Message:  fmt.Sprintf("Pull request #%d opened", pr.Number),
		Metadata: map[string]any{"pr_url": pr.URL, "branch": commit.Branch},
	})
	return run, nil
}

func (g *ImplementationGraph) completeNode(ctx flowgraph.Context, run *implRun) (*implRun, error) {
	in := message.PRCreatedMessage{
		TicketID: run.state.TicketID,
		Number:   run.state.PRNumber,
		URL:      run.state.PRURL,
		Branch:   run.state.Commit.Branch,
	}
	out, err := call[message.WorkflowCompletedMessage](ctx, g.rt, agent.StepCompletion, in, g.rt.agentContext(run.state.TicketID))
	if err != nil {
		return run, err
	}
	if out.CompletedAt.IsZero() {
		out.CompletedAt = g.rt.now().UTC()
	}
	run.state.Completion = &out
	run.state.IsCompleted = true

	if err := g.rt.save(ctx, run.state.TicketID, ImplStateCompleted, checkpoint.Snapshot{
		Value:     run.state,
		AgentName: string(agent.StepCompletion),
	}); err != nil {
		return run, err
	}
	g.rt.notify(ctx, notify.Event{
		Type:     notify.EventWorkflowCompleted,
		TicketID: run.state.TicketID,
		State:    ImplStateCompleted,
		Message:  "Implementation completed",
		Metadata: map[string]any{"pr_url": out.PRURL},
	})
	return run, nil
}
