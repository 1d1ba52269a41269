package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/checkpoint"
	"github.com/randalmurphal/ticketflow/message"
	"github.com/randalmurphal/ticketflow/notify"
	"github.com/randalmurphal/ticketflow/testutil"
)

func TestPlanningGraph_ExecuteSuspendsForApproval(t *testing.T) {
	exec := testutil.NewExecutor()
	store := checkpoint.NewMemoryStore()
	events := &eventLog{}
	g := NewPlanningGraph(exec, store, WithNotifier(events))

	res, err := g.Execute(testutil.TestContext(t), testutil.Answers("T-1"))
	require.NoError(t, err)

	assert.True(t, res.Suspended())
	assert.Equal(t, PlanStateAwaitingApproval, res.State)
	plan, ok := res.Output.(message.PlanGeneratedMessage)
	require.True(t, ok, "output is %T", res.Output)
	assert.Equal(t, "T-1", plan.TicketID)

	assert.Equal(t, []string{PlanStateAwaitingApproval, PlanStatePosted}, historyIDs(t, store, "T-1", PlanningGraphID))

	var st checkpoint.PlanningState
	require.NoError(t, latest(t, store, "T-1", PlanningGraphID).Decode(&st))
	assert.Equal(t, WaitingForPlanApproval, st.WaitingFor)
	require.NotNil(t, st.Commit)
	assert.Equal(t, "plan/T-1", st.Commit.Branch)
	require.NotNil(t, st.Posted)

	assert.Equal(t, 1, exec.CallCount(agent.StepPlanning))
	assert.Equal(t, 1, exec.CallCount(agent.StepCommitPlan))
	assert.Equal(t, 1, exec.CallCount(agent.StepPostPlan))
	assert.Equal(t, []notify.EventType{notify.EventAwaitingApproval}, events.types())
}

func TestPlanningGraph_Approve(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	g := NewPlanningGraph(testutil.NewExecutor(), store)
	ctx := testutil.TestContext(t)

	_, err := g.Execute(ctx, testutil.Answers("T-1"))
	require.NoError(t, err)

	res, err := g.Resume(ctx, "T-1", testutil.Approval("T-1"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, PlanStateApproved, res.State)
	assert.IsType(t, message.PlanApprovedMessage{}, res.Output)

	cp := latest(t, store, "T-1", PlanningGraphID)
	assert.Equal(t, PlanStateApproved, cp.CheckpointID)
	assert.Equal(t, string(agent.StepImplementation), cp.NextAgentType)

	var st checkpoint.PlanningState
	require.NoError(t, cp.Decode(&st))
	assert.Equal(t, "ana", st.ApprovedBy)
	assert.NotNil(t, st.ApprovedAt)
	assert.True(t, st.Completed)
	assert.Empty(t, st.WaitingFor)
}

func TestPlanningGraph_RejectionsReplanUntilLimit(t *testing.T) {
	exec := testutil.NewExecutor()
	store := checkpoint.NewMemoryStore()
	g := NewPlanningGraph(exec, store)
	ctx := testutil.TestContext(t)

	_, err := g.Execute(ctx, testutil.Answers("T-1"))
	require.NoError(t, err)

	for i := 1; i <= MaxPlanRejections; i++ {
		res, err := g.Resume(ctx, "T-1", testutil.Rejection("T-1", "too vague"))
		require.NoError(t, err)
		require.True(t, res.Suspended(), "rejection %d: %+v", i, res)
		assert.Equal(t, PlanStateAwaitingApproval, res.State)

		calls := exec.Calls(agent.StepPlanning)
		require.Len(t, calls, i+1)
		last := calls[len(calls)-1].Context
		assert.Equal(t, i, last.PlanRetryCount)
		require.NotNil(t, last.Rejection)
		assert.Equal(t, "too vague", last.Rejection.Reason)
	}

	res, err := g.Resume(ctx, "T-1", testutil.Rejection("T-1", "still vague"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, PlanStateTooManyRejections, res.State)
	assert.True(t, errors.Is(res.Err, ErrTooManyRejections))
	assert.True(t, IsRetryExhausted(res.Err))
	assert.Contains(t, res.Err.Error(), "plan rejected 6 times")
	assert.Equal(t, MaxPlanRejections+1, exec.CallCount(agent.StepPlanning))

	var st checkpoint.PlanningState
	cp := latest(t, store, "T-1", PlanningGraphID)
	assert.Equal(t, PlanStateTooManyRejections, cp.CheckpointID)
	require.NoError(t, cp.Decode(&st))
	assert.Equal(t, 6, st.PlanRetryCount)
	assert.True(t, st.Failed)
}

func TestPlanningGraph_ResumeWithoutCheckpoint(t *testing.T) {
	g := NewPlanningGraph(testutil.NewExecutor(), checkpoint.NewMemoryStore())

	inputs := []message.Message{
		testutil.Approval("T-9"),
		testutil.Rejection("T-9", "no"),
		testutil.Answers("T-9"),
	}
	for _, in := range inputs {
		t.Run(string(in.Kind()), func(t *testing.T) {
			res, err := g.Resume(context.Background(), "T-9", in)
			require.NoError(t, err)
			assert.Equal(t, StateResumeFailed, res.State)
			assert.True(t, errors.Is(res.Err, ErrNoCheckpointFound))
			assert.True(t, IsResumeError(res.Err))
		})
	}
}

func TestPlanningGraph_ResumeAfterApprovalIsInvalid(t *testing.T) {
	g := NewPlanningGraph(testutil.NewExecutor(), checkpoint.NewMemoryStore())
	ctx := testutil.TestContext(t)

	_, err := g.Execute(ctx, testutil.Answers("T-1"))
	require.NoError(t, err)
	_, err = g.Resume(ctx, "T-1", testutil.Approval("T-1"))
	require.NoError(t, err)

	res, err := g.Resume(ctx, "T-1", testutil.Approval("T-1"))
	require.NoError(t, err)
	assert.Equal(t, StateResumeFailed, res.State)
	assert.True(t, errors.Is(res.Err, ErrInvalidResumeState))
}

func TestPlanningGraph_InvalidInput(t *testing.T) {
	ctx := testutil.TestContext(t)

	t.Run("wrong entry kind", func(t *testing.T) {
		exec := testutil.NewExecutor()
		g := NewPlanningGraph(exec, checkpoint.NewMemoryStore())

		res, err := g.Execute(ctx, testutil.Approval("T-1"))
		require.NoError(t, err)
		assert.Equal(t, StateInvalidInput, res.State)
		assert.True(t, IsInputError(res.Err))
		assert.Empty(t, exec.Calls())
	})

	t.Run("nil entry message", func(t *testing.T) {
		g := NewPlanningGraph(testutil.NewExecutor(), checkpoint.NewMemoryStore())

		res, err := g.Execute(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, StateInvalidInput, res.State)
		assert.Contains(t, res.Err.Error(), "<nil>")
	})

	t.Run("wrong resume kind", func(t *testing.T) {
		g := NewPlanningGraph(testutil.NewExecutor(), checkpoint.NewMemoryStore())
		_, err := g.Execute(ctx, testutil.Answers("T-1"))
		require.NoError(t, err)

		res, err := g.Resume(ctx, "T-1", testutil.ReviewRequest("T-1"))
		require.NoError(t, err)
		assert.Equal(t, StateResumeFailed, res.State)
		assert.True(t, errors.Is(res.Err, ErrInvalidInputType))
	})

	t.Run("ticket mismatch", func(t *testing.T) {
		g := NewPlanningGraph(testutil.NewExecutor(), checkpoint.NewMemoryStore())
		_, err := g.Execute(ctx, testutil.Answers("T-1"))
		require.NoError(t, err)

		res, err := g.Resume(ctx, "T-1", testutil.Approval("T-2"))
		require.NoError(t, err)
		assert.Equal(t, StateInvalidInput, res.State)
		assert.True(t, errors.Is(res.Err, ErrTicketMismatch))
	})

	t.Run("missing required field", func(t *testing.T) {
		g := NewPlanningGraph(testutil.NewExecutor(), checkpoint.NewMemoryStore())
		_, err := g.Execute(ctx, testutil.Answers("T-1"))
		require.NoError(t, err)

		res, err := g.Resume(ctx, "T-1", message.PlanRejectedMessage{TicketID: "T-1"})
		require.NoError(t, err)
		assert.Equal(t, StateInvalidInput, res.State)
	})
}

func TestPlanningGraph_StepFailureSavesFailedCheckpoint(t *testing.T) {
	boom := errors.New("model overloaded")
	exec := testutil.NewExecutor().Fail(agent.StepPlanning, boom)
	store := checkpoint.NewMemoryStore()
	events := &eventLog{}
	g := NewPlanningGraph(exec, store, WithNotifier(events))

	res, err := g.Execute(testutil.TestContext(t), testutil.Answers("T-1"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StateFailed, res.State)
	assert.True(t, errors.Is(res.Err, ErrStepFailed))
	assert.True(t, errors.Is(res.Err, boom))
	assert.Equal(t, agent.StepPlanning, FailedStep(res.Err))

	cp := latest(t, store, "T-1", PlanningGraphID)
	assert.Equal(t, StateFailed, cp.CheckpointID)
	common, err := cp.Common()
	require.NoError(t, err)
	assert.Contains(t, common.Error, "model overloaded")
	assert.Equal(t, string(agent.StepPlanning), common.FailedStep)

	var st checkpoint.PlanningState
	require.NoError(t, cp.Decode(&st))
	assert.True(t, st.Failed)
	assert.Equal(t, []notify.EventType{notify.EventGraphFailed}, events.types())
}

func TestPlanningGraph_ParallelBranchFailure(t *testing.T) {
	exec := testutil.NewExecutor().Fail(agent.StepPostPlan, errors.New("chat api down"))
	store := checkpoint.NewMemoryStore()
	g := NewPlanningGraph(exec, store)

	res, err := g.Execute(testutil.TestContext(t), testutil.Answers("T-1"))
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, agent.StepPostPlan, FailedStep(res.Err))
	assert.Equal(t, []string{StateFailed}, historyIDs(t, store, "T-1", PlanningGraphID))
}

func TestPlanningGraph_WrongOutputKindFailsStep(t *testing.T) {
	exec := testutil.NewExecutor().On(agent.StepPlanning,
		func(_ context.Context, in message.Message, _ agent.Context) (message.Message, error) {
			return message.CodeCommittedMessage{TicketID: in.Ticket(), Branch: "b"}, nil
		})
	g := NewPlanningGraph(exec, checkpoint.NewMemoryStore())

	res, err := g.Execute(testutil.TestContext(t), testutil.Answers("T-1"))
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.True(t, errors.Is(res.Err, ErrInvalidInputType))
}

func TestPlanningGraph_PersistFailureIsReturned(t *testing.T) {
	store := &flakyStore{MemoryStore: checkpoint.NewMemoryStore(), failOn: PlanStateAwaitingApproval}
	g := NewPlanningGraph(testutil.NewExecutor(), store)

	_, err := g.Execute(testutil.TestContext(t), testutil.Answers("T-1"))
	require.Error(t, err)

	var pe *PersistError
	require.True(t, errors.As(err, &pe), "err = %v", err)
	assert.Equal(t, PlanStateAwaitingApproval, pe.Checkpoint)
	assert.True(t, errors.Is(err, errStoreDown))
}

func TestPlanningGraph_Cancelled(t *testing.T) {
	exec := testutil.NewExecutor()
	g := NewPlanningGraph(exec, checkpoint.NewMemoryStore())
	ctx, cancel := testutil.CancelableContext(t)
	cancel()

	res, err := g.Execute(ctx, testutil.Answers("T-1"))
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, res.State)
	assert.True(t, errors.Is(res.Err, context.Canceled))
	assert.Empty(t, exec.Calls())
}

func TestPlanningGraph_ExecuteSupersedesPreviousRun(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	g := NewPlanningGraph(testutil.NewExecutor(), store)
	ctx := testutil.TestContext(t)

	_, err := g.Execute(ctx, testutil.Answers("T-1"))
	require.NoError(t, err)
	_, err = g.Execute(ctx, testutil.Answers("T-1"))
	require.NoError(t, err)

	rows, err := store.GetCheckpointHistory(ctx, "T-1", PlanningGraphID)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	active := 0
	for _, r := range rows {
		if r.Status == checkpoint.StatusActive {
			active++
		}
	}
	assert.Equal(t, 2, active)
}

func TestPlanningGraph_Describer(t *testing.T) {
	var d Describer = NewPlanningGraph(testutil.NewExecutor(), checkpoint.NewMemoryStore())

	assert.Equal(t, []message.Kind{message.KindAnswersReceived}, d.AcceptedInputs())
	assert.Equal(t, []string{PlanStateAwaitingApproval, PlanStateRejected}, d.ResumeTable().States())
	assert.True(t, d.ResumeTable().Accepts(PlanStateAwaitingApproval, message.KindPlanRejected))
	assert.True(t, d.ResumeTable().Accepts(PlanStateRejected, message.KindPlanRejected))
	assert.False(t, d.ResumeTable().Accepts(PlanStateRejected, message.KindPlanApproved))
	assert.False(t, d.ResumeTable().Accepts(PlanStateApproved, message.KindPlanApproved))
}

func TestNewPlanningGraph_PanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() { NewPlanningGraph(nil, checkpoint.NewMemoryStore()) })
	assert.Panics(t, func() { NewPlanningGraph(testutil.NewExecutor(), nil) })
}

func TestPlanningGraph_CancelledReplanKeepsRejection(t *testing.T) {
	ctx, cancel := testutil.CancelableContext(t)
	exec := testutil.NewExecutor()
	store := checkpoint.NewMemoryStore()
	g := NewPlanningGraph(exec, store)

	_, err := g.Execute(ctx, testutil.Answers("T-1"))
	require.NoError(t, err)

	exec.On(agent.StepPlanning, func(ctx context.Context, _ message.Message, _ agent.Context) (message.Message, error) {
		cancel()
		return nil, ctx.Err()
	})
	res, err := g.Resume(ctx, "T-1", testutil.Rejection("T-1", "too vague"))
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, res.State)

	cp := latest(t, store, "T-1", PlanningGraphID)
	assert.Equal(t, PlanStateRejected, cp.CheckpointID)
	var st checkpoint.PlanningState
	require.NoError(t, cp.Decode(&st))
	assert.Equal(t, 1, st.PlanRetryCount)
	require.NotNil(t, st.Rejection)
	assert.Equal(t, "too vague", st.Rejection.Reason)
	assert.Empty(t, st.WaitingFor)

	ctx = testutil.TestContext(t)
	res, err = g.Resume(ctx, "T-1", testutil.Approval("T-1"))
	require.NoError(t, err)
	assert.Equal(t, StateResumeFailed, res.State)
	assert.True(t, errors.Is(res.Err, ErrInvalidInputType))

	exec.On(agent.StepPlanning, testutil.DefaultHandlers()[agent.StepPlanning])
	res, err = g.Resume(ctx, "T-1", testutil.Rejection("T-1", "resent"))
	require.NoError(t, err)
	require.True(t, res.Suspended(), "%+v", res)
	assert.Equal(t, PlanStateAwaitingApproval, res.State)

	require.NoError(t, latest(t, store, "T-1", PlanningGraphID).Decode(&st))
	assert.Equal(t, 1, st.PlanRetryCount, "the interrupted rejection is counted once")

	calls := exec.Calls(agent.StepPlanning)
	last := calls[len(calls)-1].Context
	assert.Equal(t, 1, last.PlanRetryCount)
	require.NotNil(t, last.Rejection)
	assert.Equal(t, "too vague", last.Rejection.Reason)
}

func TestPlanningGraph_RejectionCheckpointedBeforeReplan(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	g := NewPlanningGraph(testutil.NewExecutor(), store)
	ctx := testutil.TestContext(t)

	_, err := g.Execute(ctx, testutil.Answers("T-1"))
	require.NoError(t, err)
	_, err = g.Resume(ctx, "T-1", testutil.Rejection("T-1", "too vague"))
	require.NoError(t, err)

	assert.Equal(t, []string{PlanStateAwaitingApproval, PlanStatePosted, PlanStateRejected},
		historyIDs(t, store, "T-1", PlanningGraphID))
}
