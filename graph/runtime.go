package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/checkpoint"
	"github.com/randalmurphal/ticketflow/message"
	"github.com/randalmurphal/ticketflow/notify"
)

// runtime holds what every graph shares: its collaborators and the helpers
// for calling steps, saving checkpoints, and reporting outcomes.
type runtime struct {
	id    string
	exec  agent.Executor
	store checkpoint.Store
	options
}

func newRuntime(id string, exec agent.Executor, store checkpoint.Store, opts []Option) *runtime {
	if exec == nil {
		panic("graph: nil executor")
	}
	if store == nil {
		panic("graph: nil checkpoint store")
	}
	return &runtime{id: id, exec: exec, store: store, options: buildOptions(opts)}
}

func (r *runtime) log() *slog.Logger {
	return r.logger.With("graph", r.id)
}

// agentContext builds the per-call context handed to the executor.
func (r *runtime) agentContext(ticketID string) agent.Context {
	return agent.Context{TicketID: ticketID, GraphID: r.id, Model: r.model}
}

// call runs one step and checks that it produced a valid message of type T.
// Cancellation is checked first and returned unwrapped.
func call[T message.Message](ctx context.Context, r *runtime, step agent.StepType, in message.Message, gc agent.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	out, err := r.exec.Execute(ctx, step, in, gc)
	if err != nil {
		return zero, &StepError{GraphID: r.id, Step: step, Err: err}
	}
	typed, ok := out.(T)
	if !ok {
		return zero, &StepError{GraphID: r.id, Step: step, Err: &InputTypeError{
			GraphID: r.id,
			Step:    step,
			Want:    []message.Kind{zero.Kind()},
			Got:     message.KindOf(out),
		}}
	}
	if err := message.Validate(typed); err != nil {
		return zero, &StepError{GraphID: r.id, Step: step, Err: err}
	}
	return typed, nil
}

// save writes a checkpoint. Failures come back as *PersistError.
func (r *runtime) save(ctx context.Context, ticketID, checkpointID string, snap checkpoint.Snapshot) error {
	err := r.store.SaveCheckpoint(ctx, ticketID, r.id, checkpointID, snap)
	checkpointWrites.WithLabelValues(r.id, checkpointID, resultLabel(err)).Inc()
	if err != nil {
		return &PersistError{Op: "save", GraphID: r.id, TicketID: ticketID, Checkpoint: checkpointID, Err: err}
	}
	r.log().Debug("checkpoint saved", "ticket_id", ticketID, "checkpoint", checkpointID)
	return nil
}

// startOver supersedes earlier checkpoints before a fresh run.
func (r *runtime) startOver(ctx context.Context, ticketID string) error {
	if err := r.store.SupersedeCheckpoints(ctx, ticketID, r.id); err != nil {
		return &PersistError{Op: "supersede", GraphID: r.id, TicketID: ticketID, Err: err}
	}
	return nil
}

// loadForResume loads the latest checkpoint and validates it against table
// and in. When the resume cannot proceed it returns a nil checkpoint and the
// resume_failed (or invalid_input) result to hand back.
func (r *runtime) loadForResume(ctx context.Context, ticketID string, in message.Message, table ResumeTable) (*checkpoint.Checkpoint, Result, error) {
	cp, err := r.store.LoadCheckpoint(ctx, ticketID, r.id)
	if err != nil {
		return nil, Result{}, &PersistError{Op: "load", GraphID: r.id, TicketID: ticketID, Err: err}
	}
	if cp == nil {
		return nil, r.reject(ticketID, StateResumeFailed,
			fmt.Errorf("%w: ticket %s, graph %s", ErrNoCheckpointFound, ticketID, r.id)), nil
	}

	accepted, ok := table[cp.CheckpointID]
	if !ok {
		return nil, r.reject(ticketID, StateResumeFailed,
			&ResumeStateError{GraphID: r.id, TicketID: ticketID, State: cp.CheckpointID}), nil
	}
	if !table.Accepts(cp.CheckpointID, message.KindOf(in)) {
		return nil, r.reject(ticketID, StateResumeFailed,
			&InputTypeError{GraphID: r.id, Want: accepted, Got: message.KindOf(in)}), nil
	}
	if res, ok := r.checkInput(ticketID, in); !ok {
		return nil, res, nil
	}
	return cp, Result{}, nil
}

// checkInput validates a message already known to be of an accepted kind.
func (r *runtime) checkInput(ticketID string, in message.Message) (Result, bool) {
	if in.Ticket() != ticketID {
		return r.reject(ticketID, StateInvalidInput,
			fmt.Errorf("%w: want %s, got %s", ErrTicketMismatch, ticketID, in.Ticket())), false
	}
	if err := message.Validate(in); err != nil {
		return r.reject(ticketID, StateInvalidInput, err), false
	}
	return Result{}, true
}

// invalidInput reports an Execute entry message of the wrong kind.
func (r *runtime) invalidInput(in message.Message, want ...message.Kind) Result {
	ticketID := ""
	if in != nil {
		ticketID = in.Ticket()
	}
	return r.reject(ticketID, StateInvalidInput,
		&InputTypeError{GraphID: r.id, Want: want, Got: message.KindOf(in)})
}

func (r *runtime) reject(ticketID, state string, err error) Result {
	r.log().Warn("graph call rejected", "ticket_id", ticketID, "state", state, "error", err)
	return r.record(Result{State: state, Err: err})
}

// cancelled reports a run stopped by its context. Saved checkpoints stay.
func (r *runtime) cancelled(ticketID string, err error) Result {
	r.log().Info("graph cancelled", "ticket_id", ticketID, "error", err)
	return r.record(Result{State: StateCancelled, Err: err})
}

func (r *runtime) succeeded(ticketID, state string, out message.Message) Result {
	r.log().Info("graph finished", "ticket_id", ticketID, "state", state)
	return r.record(Result{Success: true, State: state, Output: out})
}

func (r *runtime) suspended(ticketID, state string, out message.Message) Result {
	r.log().Info("graph suspended", "ticket_id", ticketID, "state", state)
	return r.record(Result{State: state, Output: out})
}

func (r *runtime) failed(ticketID, state string, err error) Result {
	r.log().Error("graph failed", "ticket_id", ticketID, "state", state, "error", err)
	return r.record(Result{State: state, Err: err})
}

func (r *runtime) record(res Result) Result {
	graphResults.WithLabelValues(r.id, res.State, outcomeLabel(res)).Inc()
	return res
}

// observe records the duration of an Execute or Resume call.
func (r *runtime) observe(op string, start time.Time) {
	graphDuration.WithLabelValues(r.id, op).Observe(time.Since(start).Seconds())
}

// notify sends an event. Delivery errors are logged and otherwise ignored.
func (r *runtime) notify(ctx context.Context, ev notify.Event) {
	n := r.notifier
	if n == nil {
		n = notify.NotifierFromContext(ctx)
	}
	if n == nil {
		return
	}
	ev.GraphID = r.id
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now().UTC()
	}
	if ev.Severity == "" {
		ev.Severity = notify.SeverityInfo
	}
	if err := n.Notify(context.WithoutCancel(ctx), ev); err != nil {
		r.log().Warn("notification failed", "ticket_id", ev.TicketID, "type", ev.Type, "error", err)
	}
}

// fail records err on common, saves the failed checkpoint, and returns the
// failed result. markFailed sets graph-specific failure fields and returns
// the state to save. A save failure wins over the step failure.
func (r *runtime) fail(ctx context.Context, common *checkpoint.Common, markFailed func() any, err error) (Result, error) {
	common.Error = err.Error()
	common.WaitingFor = ""
	common.FailedStep = string(FailedStep(err))
	value := markFailed()

	if perr := r.save(ctx, common.TicketID, StateFailed, checkpoint.Snapshot{
		Value:     value,
		AgentName: common.FailedStep,
	}); perr != nil {
		return Result{}, errors.Join(perr, err)
	}
	r.notify(ctx, notify.Event{
		Type:     notify.EventGraphFailed,
		TicketID: common.TicketID,
		State:    StateFailed,
		Message:  common.Error,
		Severity: notify.SeverityError,
		Metadata: map[string]any{"step": common.FailedStep},
	})
	return r.failed(common.TicketID, StateFailed, err), nil
}

// finish maps a pipeline error to the call's return values. markFailed is
// called only for step failures.
func (r *runtime) finish(ctx context.Context, common *checkpoint.Common, err error, markFailed func() any) (Result, error) {
	kind, err := classify(ctx, r.id, err)
	switch kind {
	case outcomePersist:
		r.log().Error("checkpoint write failed", "ticket_id", common.TicketID, "error", err)
		return Result{}, err
	case outcomeCancelled:
		return r.cancelled(common.TicketID, err), nil
	}
	return r.fail(ctx, common, markFailed, err)
}
