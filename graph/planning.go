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

// PlanningGraphID is the graph id of PlanningGraph.
const PlanningGraphID = "planning"

// Planning checkpoint ids.
const (
	PlanStatePosted            = "plan_posted"
	PlanStateAwaitingApproval  = "awaiting_approval"
	PlanStateRejected          = "plan_rejected"
	PlanStateApproved          = "plan_approved"
	PlanStateTooManyRejections = "too_many_rejections"
)

// MaxPlanRejections is the number of rejections tolerated before planning
// fails. The check uses the incremented count, so the sixth rejection fails.
const MaxPlanRejections = 5

// WaitingForPlanApproval is recorded while a plan awaits a human decision.
const WaitingForPlanApproval = "plan_approval"

var planningResume = ResumeTable{
	PlanStateAwaitingApproval: {message.KindPlanApproved, message.KindPlanRejected},
	PlanStateRejected:         {message.KindPlanRejected},
}

// planRun is the flowgraph state for one pass through the planning pipeline.
type planRun struct {
	state checkpoint.PlanningState
}

// PlanningGraph turns clarified requirements into a plan and waits for a
// human to approve or reject it.
//
//	Execute(AnswersReceived) → planning → commit_plan ∥ post_plan → awaiting_approval
//	Resume(PlanApproved)     → plan_approved
//	Resume(PlanRejected)     → plan_rejected → planning again, or too_many_rejections
//
// A rejection is counted and checkpointed as plan_rejected before planning
// runs again. Resuming from plan_rejected repeats the interrupted re-plan
// without counting the rejection twice.
type PlanningGraph struct {
	rt       *runtime
	pipeline func(ctx context.Context, run *planRun) (*planRun, error)
}

// NewPlanningGraph creates a PlanningGraph. It panics if exec or store is nil.
func NewPlanningGraph(exec agent.Executor, store checkpoint.Store, opts ...Option) *PlanningGraph {
	g := &PlanningGraph{rt: newRuntime(PlanningGraphID, exec, store, opts)}

	compiled, err := flowgraph.NewGraph[*planRun]().
		AddNode("plan", g.planNode).
		AddNode("publish", g.publishNode).
		AddNode("await", g.awaitNode).
		AddEdge("plan", "publish").
		AddEdge("publish", "await").
		AddEdge("await", flowgraph.END).
		SetEntry("plan").
		Compile()
	if err != nil {
		panic(fmt.Sprintf("graph: compile planning pipeline: %v", err))
	}
	g.pipeline = func(ctx context.Context, run *planRun) (*planRun, error) {
		return compiled.Run(flowgraph.NewContext(ctx), run)
	}
	return g
}

// ID implements Graph.
func (g *PlanningGraph) ID() string { return PlanningGraphID }

// AcceptedInputs implements Describer.
func (g *PlanningGraph) AcceptedInputs() []message.Kind {
	return []message.Kind{message.KindAnswersReceived}
}

// ResumeTable implements Describer.
func (g *PlanningGraph) ResumeTable() ResumeTable { return planningResume }

// Execute starts planning from scratch for the ticket named by in.
func (g *PlanningGraph) Execute(ctx context.Context, in message.Message) (Result, error) {
	defer g.rt.observe("execute", time.Now())

	answers, ok := in.(message.AnswersReceivedMessage)
	if !ok {
		return g.rt.invalidInput(in, g.AcceptedInputs()...), nil
	}
	if res, ok := g.rt.checkInput(answers.TicketID, answers); !ok {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return g.rt.cancelled(answers.TicketID, err), nil
	}
	if err := g.rt.startOver(ctx, answers.TicketID); err != nil {
		return Result{}, err
	}

	run := &planRun{state: checkpoint.PlanningState{
		Common:  checkpoint.Common{TicketID: answers.TicketID},
		Answers: &answers,
	}}
	return g.run(ctx, run)
}

// Resume continues from awaiting_approval with a PlanApproved or
// PlanRejected message, or from plan_rejected with a PlanRejected message.
func (g *PlanningGraph) Resume(ctx context.Context, ticketID string, in message.Message) (Result, error) {
	defer g.rt.observe("resume", time.Now())

	if err := ctx.Err(); err != nil {
		return g.rt.cancelled(ticketID, err), nil
	}
	cp, res, err := g.rt.loadForResume(ctx, ticketID, in, planningResume)
	if cp == nil {
		return res, err
	}

	var st checkpoint.PlanningState
	if err := cp.Decode(&st); err != nil {
		return g.rt.reject(ticketID, StateResumeFailed, err), nil
	}
	st.TicketID = ticketID

	switch m := in.(type) {
	case message.PlanApprovedMessage:
		return g.approve(ctx, st, m)
	case message.PlanRejectedMessage:
		if cp.CheckpointID == PlanStateRejected {
			return g.replan(ctx, st, m)
		}
		return g.rejected(ctx, st, m)
	default:
		return g.rt.invalidInput(in, planningResume[cp.CheckpointID]...), nil
	}
}

func (g *PlanningGraph) approve(ctx context.Context, st checkpoint.PlanningState, m message.PlanApprovedMessage) (Result, error) {
	if m.ApprovedAt.IsZero() {
		m.ApprovedAt = g.rt.now().UTC()
	}
	st.ApprovedBy = m.ApprovedBy
	st.ApprovedAt = &m.ApprovedAt
	st.Completed = true
	st.WaitingFor = ""

	if err := g.rt.save(ctx, st.TicketID, PlanStateApproved, checkpoint.Snapshot{
		Value:         st,
		NextAgentType: string(agent.StepImplementation),
	}); err != nil {
		return Result{}, err
	}
	g.rt.notify(ctx, notify.Event{
		Type:     notify.EventPlanApproved,
		TicketID: st.TicketID,
		State:    PlanStateApproved,
		Message:  fmt.Sprintf("Plan approved by %s", m.ApprovedBy),
		Metadata: map[string]any{"rejections": st.PlanRetryCount},
	})
	return g.rt.succeeded(st.TicketID, PlanStateApproved, m), nil
}

func (g *PlanningGraph) rejected(ctx context.Context, st checkpoint.PlanningState, m message.PlanRejectedMessage) (Result, error) {
	count := st.PlanRetryCount + 1
	st.PlanRetryCount = count
	st.Rejection = &m
	st.WaitingFor = ""

	if count > MaxPlanRejections {
		err := fmt.Errorf("%w: plan rejected %d times", ErrTooManyRejections, count)
		st.Failed = true
		st.Error = err.Error()
		if perr := g.rt.save(ctx, st.TicketID, PlanStateTooManyRejections, checkpoint.Snapshot{Value: st}); perr != nil {
			return Result{}, perr
		}
		g.rt.notify(ctx, notify.Event{
			Type:     notify.EventTooManyRejections,
			TicketID: st.TicketID,
			State:    PlanStateTooManyRejections,
			Message:  st.Error,
			Severity: notify.SeverityError,
			Metadata: map[string]any{"last_reason": m.Reason},
		})
		return g.rt.failed(st.TicketID, PlanStateTooManyRejections, err), nil
	}

	if err := g.rt.save(ctx, st.TicketID, PlanStateRejected, checkpoint.Snapshot{
		Value:         st,
		NextAgentType: string(agent.StepPlanning),
	}); err != nil {
		return Result{}, err
	}
	g.rt.log().Info("plan rejected, replanning",
		"ticket_id", st.TicketID, "rejections", count, "regenerate", m.RegenerateCompletely)
	return g.run(ctx, &planRun{state: st})
}

// replan repeats a re-plan that stopped after its rejection was recorded.
// The stored rejection wins over m.
func (g *PlanningGraph) replan(ctx context.Context, st checkpoint.PlanningState, m message.PlanRejectedMessage) (Result, error) {
	if st.Rejection == nil {
		st.Rejection = &m
	}
	st.WaitingFor = ""
	g.rt.log().Info("continuing interrupted replan",
		"ticket_id", st.TicketID, "rejections", st.PlanRetryCount)
	return g.run(ctx, &planRun{state: st})
}

func (g *PlanningGraph) run(ctx context.Context, run *planRun) (Result, error) {
	if _, err := g.pipeline(ctx, run); err != nil {
		return g.rt.finish(ctx, &run.state.Common, err, func() any {
			run.state.Failed = true
			return run.state
		})
	}
	g.rt.notify(ctx, notify.Event{
		Type:     notify.EventAwaitingApproval,
		TicketID: run.state.TicketID,
		State:    PlanStateAwaitingApproval,
		Message:  "Plan is ready for review",
		Metadata: planMetadata(run.state),
	})
	return g.rt.suspended(run.state.TicketID, PlanStateAwaitingApproval, *run.state.Plan), nil
}

// =============================================================================
// Nodes
// =============================================================================

func (g *PlanningGraph) agentContext(st checkpoint.PlanningState) agent.Context {
	gc := g.rt.agentContext(st.TicketID)
	gc.PlanRetryCount = st.PlanRetryCount
	gc.Rejection = st.Rejection
	return gc
}

func (g *PlanningGraph) planNode(ctx flowgraph.Context, run *planRun) (*planRun, error) {
	if run.state.Answers == nil {
		return run, &StepError{GraphID: PlanningGraphID, Step: agent.StepPlanning,
			Err: fmt.Errorf("%w: no answers recorded for ticket", ErrInvalidInputType)}
	}
	plan, err := call[message.PlanGeneratedMessage](ctx, g.rt, agent.StepPlanning, *run.state.Answers, g.agentContext(run.state))
	if err != nil {
		return run, err
	}
	run.state.Plan = &plan
	return run, nil
}

func (g *PlanningGraph) publishNode(ctx flowgraph.Context, run *planRun) (*planRun, error) {
	plan := *run.state.Plan
	gc := g.agentContext(run.state)

	commit, posted, err := fork(ctx,
		func(ctx context.Context) (message.PlanCommittedMessage, error) {
			return call[message.PlanCommittedMessage](ctx, g.rt, agent.StepCommitPlan, plan, gc)
		},
		func(ctx context.Context) (message.MessagePostedMessage, error) {
			return call[message.MessagePostedMessage](ctx, g.rt, agent.StepPostPlan, plan, gc)
		},
	)
	if err != nil {
		return run, err
	}
	run.state.Commit = &commit
	run.state.Posted = &posted

	return run, g.rt.save(ctx, run.state.TicketID, PlanStatePosted, checkpoint.Snapshot{
		Value:     run.state,
		AgentName: string(agent.StepPostPlan),
	})
}

func (g *PlanningGraph) awaitNode(ctx flowgraph.Context, run *planRun) (*planRun, error) {
	run.state.WaitingFor = WaitingForPlanApproval
	return run, g.rt.save(ctx, run.state.TicketID, PlanStateAwaitingApproval, checkpoint.Snapshot{
		Value:     run.state,
		AgentName: string(agent.StepPostPlan),
	})
}

func planMetadata(st checkpoint.PlanningState) map[string]any {
	meta := map[string]any{"revision": st.PlanRetryCount}
	if st.Commit != nil {
		meta["branch"] = st.Commit.Branch
	}
	if st.Posted != nil && st.Posted.URL != "" {
		meta["url"] = st.Posted.URL
	}
	return meta
}
