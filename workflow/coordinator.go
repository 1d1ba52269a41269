package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/checkpoint"
	"github.com/randalmurphal/ticketflow/graph"
	"github.com/randalmurphal/ticketflow/message"
	"github.com/randalmurphal/ticketflow/notify"
	"github.com/randalmurphal/ticketflow/tenant"
	"github.com/randalmurphal/ticketflow/ticket"
)

// ErrAlreadyExists is returned by Start for a ticket id already in use.
var ErrAlreadyExists = errors.New("ticket already exists")

// DefaultLeaseTTL bounds how long one operation may hold a ticket.
const DefaultLeaseTTL = 30 * time.Minute

// Ticket metadata keys written by the coordinator.
const (
	MetaAnalysisSummary       = "analysis_summary"
	MetaProposedUpdate        = "proposed_update"
	MetaApprovedBy            = "approved_by"
	MetaImplementationSkipped = "implementation_skipped"
	MetaCriticalIssues        = "critical_issues"
	MetaReviewWarnings        = "review_warnings"
)

// Progress reports what an operation did. Graph is empty when no graph ran;
// otherwise Result is the outcome of the last graph call.
type Progress struct {
	Ticket *ticket.Ticket
	Graph  string
	Result graph.Result
}

// ReviewDecision is one reviewer's verdict on the current plan.
type ReviewDecision struct {
	ReviewerID           string
	Approved             bool
	Decision             string
	RegenerateCompletely bool
}

// Coordinator drives tickets through their lifecycle, running the planning,
// implementation, and code review graphs at the points where the ticket
// state calls for them. Every operation on a ticket holds that ticket's
// lease, so a concurrent second operation fails fast with ErrTicketBusy.
type Coordinator struct {
	tickets     ticket.Repository
	checkpoints checkpoint.Store
	options

	planning       *graph.PlanningGraph
	implementation *graph.ImplementationGraph
	review         *graph.CodeReviewGraph
}

type options struct {
	tenants   tenant.Provider
	leases    Leaser
	notifier  notify.Notifier
	logger    *slog.Logger
	leaseTTL  time.Duration
	now       func() time.Time
	graphOpts []graph.Option
}

// Option configures a Coordinator.
type Option func(*options)

// WithTenants sets the tenant configuration provider. Without one every
// implementation is skipped and no reviewers are assigned automatically.
func WithTenants(p tenant.Provider) Option {
	return func(o *options) { o.tenants = p }
}

// WithLeaser sets the lease implementation. The default is MemoryLeases.
func WithLeaser(l Leaser) Option {
	return func(o *options) { o.leases = l }
}

// WithLeaseTTL sets how long an operation may hold a ticket.
func WithLeaseTTL(d time.Duration) Option {
	return func(o *options) { o.leaseTTL = d }
}

// WithNotifier sets where ticket and graph events are sent.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the time source for ticket timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithGraphOptions passes extra options to every graph.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(o *options) { o.graphOpts = append(o.graphOpts, opts...) }
}

// New creates a Coordinator. It panics if any argument is nil.
func New(exec agent.Executor, checkpoints checkpoint.Store, tickets ticket.Repository, opts ...Option) *Coordinator {
	if tickets == nil {
		panic("workflow: nil ticket repository")
	}
	o := options{leaseTTL: DefaultLeaseTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.leases == nil {
		o.leases = NewMemoryLeases()
	}
	if o.now == nil {
		o.now = time.Now
	}

	gopts := append([]graph.Option{
		graph.WithLogger(o.logger),
		graph.WithClock(o.now),
	}, o.graphOpts...)
	if o.notifier != nil {
		gopts = append(gopts, graph.WithNotifier(o.notifier))
	}

	return &Coordinator{
		tickets:        tickets,
		checkpoints:    checkpoints,
		options:        o,
		planning:       graph.NewPlanningGraph(exec, checkpoints, gopts...),
		implementation: graph.NewImplementationGraph(exec, checkpoints, o.tenants, gopts...),
		review:         graph.NewCodeReviewGraph(exec, checkpoints, gopts...),
	}
}

// Get returns a ticket without taking its lease.
func (c *Coordinator) Get(ctx context.Context, ticketID string) (*ticket.Ticket, error) {
	return c.tickets.Get(ctx, ticketID)
}

// =============================================================================
// Analysis
// =============================================================================

// Start creates a ticket and moves it to Analyzing. An empty tenantID is
// resolved through the tenant provider, if any.
func (c *Coordinator) Start(ctx context.Context, ticketID, tenantID string) (*ticket.Ticket, error) {
	unlock, err := c.lock(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	_, err = c.tickets.Get(ctx, ticketID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, ticketID)
	case !errors.Is(err, ticket.ErrNotFound):
		return nil, err
	}

	if tenantID == "" && c.tenants != nil {
		if cfg, err := c.tenants.GetConfigurationForTicket(ctx, ticketID); err == nil && cfg != nil {
			tenantID = cfg.TenantID
		}
	}

	t, err := ticket.New(ticketID, tenantID, ticket.WithClock(c.now))
	if err != nil {
		return nil, err
	}
	if err := t.TransitionTo(ticket.StateAnalyzing, "workflow started"); err != nil {
		return nil, err
	}
	if err := c.save(ctx, t); err != nil {
		return nil, err
	}
	c.logger.Info("ticket started", "ticket_id", ticketID, "tenant_id", tenantID)
	return t, nil
}

// CompleteAnalysis records the analysis of an Analyzing ticket. When the
// analysis proposes a ticket update the ticket moves to
// TicketUpdateUnderReview; otherwise it stays ready for planning.
func (c *Coordinator) CompleteAnalysis(ctx context.Context, m message.TicketAnalyzedMessage) (*ticket.Ticket, error) {
	if err := message.Validate(m); err != nil {
		return nil, err
	}
	return c.withTicket(ctx, m.TicketID, func(t *ticket.Ticket) error {
		if t.State() != ticket.StateAnalyzing {
			return &ticket.TransitionError{TicketID: t.ID(), From: t.State(), To: ticket.StateTicketUpdateGenerated}
		}
		t.SetMetadata(MetaAnalysisSummary, m.Summary)
		if !m.NeedsTicketUpdate {
			return nil
		}
		t.SetMetadata(MetaProposedUpdate, m.ProposedUpdate)
		if err := t.TransitionTo(ticket.StateTicketUpdateGenerated, "analysis proposed a ticket update"); err != nil {
			return err
		}
		return t.TransitionTo(ticket.StateTicketUpdateUnderReview, "awaiting ticket update review")
	})
}

// DecideTicketUpdate approves (and marks posted) or rejects a proposed
// ticket update. A rejection sends the ticket back to Analyzing.
func (c *Coordinator) DecideTicketUpdate(ctx context.Context, ticketID string, approved bool, reason string) (*ticket.Ticket, error) {
	return c.withTicket(ctx, ticketID, func(t *ticket.Ticket) error {
		if !approved {
			if err := t.TransitionTo(ticket.StateTicketUpdateRejected, reason); err != nil {
				return err
			}
			return t.TransitionTo(ticket.StateAnalyzing, "reanalyzing after rejected ticket update")
		}
		if err := t.TransitionTo(ticket.StateTicketUpdateApproved, reason); err != nil {
			return err
		}
		return t.TransitionTo(ticket.StateTicketUpdatePosted, "ticket update posted")
	})
}

// =============================================================================
// Planning
// =============================================================================

// RunPlanning starts the planning graph for a ticket that finished analysis
// (or whose previous planning run was cancelled). For a ticket left in
// PlanRejected by an interrupted re-plan it continues that re-plan from the
// recorded rejection; answers then only name the ticket.
func (c *Coordinator) RunPlanning(ctx context.Context, answers message.AnswersReceivedMessage) (Progress, error) {
	if err := message.Validate(answers); err != nil {
		return Progress{}, err
	}

	var p Progress
	t, err := c.withTicket(ctx, answers.TicketID, func(t *ticket.Ticket) error {
		switch t.State() {
		case ticket.StateAnalyzing, ticket.StateTicketUpdatePosted:
			if err := t.TransitionTo(ticket.StatePlanning, "planning started"); err != nil {
				return err
			}
		case ticket.StatePlanning:
		case ticket.StatePlanRejected:
			return c.replan(ctx, t, &p)
		default:
			return &ticket.TransitionError{TicketID: t.ID(), From: t.State(), To: ticket.StatePlanning}
		}

		res, err := c.planning.Execute(ctx, answers)
		if err != nil {
			return err
		}
		p.Graph, p.Result = graph.PlanningGraphID, res
		if !res.Suspended() {
			return c.settle(t, res)
		}
		return c.planPosted(ctx, t, res, nil, nil)
	})
	p.Ticket = t
	return p, err
}

// AssignReviewers sets the plan's review set.
func (c *Coordinator) AssignReviewers(ctx context.Context, ticketID string, required, optional []string) (*ticket.Ticket, error) {
	return c.withTicket(ctx, ticketID, func(t *ticket.Ticket) error {
		return t.AssignReviewers(required, optional)
	})
}

// RecordReview records one reviewer's verdict. The first rejection sends the
// plan back to the planning graph; reaching quorum approves the plan and
// runs implementation.
func (c *Coordinator) RecordReview(ctx context.Context, ticketID string, d ReviewDecision) (Progress, error) {
	var p Progress
	t, err := c.withTicket(ctx, ticketID, func(t *ticket.Ticket) error {
		if t.State() != ticket.StatePlanUnderReview {
			return &ticket.TransitionError{TicketID: t.ID(), From: t.State(), To: ticket.StatePlanApproved}
		}
		if err := t.RecordReview(d.ReviewerID, d.Approved, d.Decision, d.RegenerateCompletely); err != nil {
			return err
		}
		switch {
		case t.HasRejections():
			return c.rejectPlan(ctx, t, &p)
		case t.HasSufficientApprovals():
			return c.approvePlan(ctx, t, &p)
		}
		c.logger.Info("review recorded, quorum not met",
			"ticket_id", t.ID(), "approvals", t.ApprovalCount(), "required", t.RequiredApprovalCount())
		return nil
	})
	p.Ticket = t
	return p, err
}

// approvePlan moves the ticket to PlanApproved before the planning graph
// records the approval. If the graph refuses the resume the ticket keeps
// PlanApproved, the graph error is returned, and Implement can take over.
func (c *Coordinator) approvePlan(ctx context.Context, t *ticket.Ticket, p *Progress) error {
	if err := t.ApprovePlan(); err != nil {
		return err
	}
	var approvers []string
	for _, r := range t.PlanReviews() {
		if r.Status == ticket.ReviewApproved {
			approvers = append(approvers, r.ReviewerID)
		}
	}
	approval := message.PlanApprovedMessage{
		TicketID:   t.ID(),
		ApprovedBy: strings.Join(approvers, ","),
		ApprovedAt: *t.PlanApprovedAt(),
	}
	t.SetMetadata(MetaApprovedBy, approval.ApprovedBy)

	res, err := c.planning.Resume(ctx, t.ID(), approval)
	if err != nil {
		return err
	}
	p.Graph, p.Result = graph.PlanningGraphID, res
	if !res.Success {
		return c.settle(t, res)
	}
	return c.implement(ctx, t, approval, p, false)
}

func (c *Coordinator) rejectPlan(ctx context.Context, t *ticket.Ticket, p *Progress) error {
	if err := t.RejectPlan(rejectionReason(t.GetRejectionDetails())); err != nil {
		return err
	}
	return c.replan(ctx, t, p)
}

// replan hands the ticket's recorded rejection to the planning graph. Until
// a new plan is posted the ticket stays in PlanRejected with its reviews
// untouched, so an interrupted run can be continued by RunPlanning.
func (c *Coordinator) replan(ctx context.Context, t *ticket.Ticket, p *Progress) error {
	details := t.GetRejectionDetails()
	if details == nil {
		return fmt.Errorf("%w: ticket %s has no rejected review", ticket.ErrInvalidTransition, t.ID())
	}

	var required, optional []string
	for _, r := range t.PlanReviews() {
		if r.IsRequired {
			required = append(required, r.ReviewerID)
		} else {
			optional = append(optional, r.ReviewerID)
		}
	}

	res, err := c.planning.Resume(ctx, t.ID(), message.PlanRejectedMessage{
		TicketID:             t.ID(),
		RejectedBy:           details.ReviewerID,
		Reason:               rejectionReason(details),
		RegenerateCompletely: details.RegenerateCompletely,
	})
	if err != nil {
		return err
	}
	p.Graph, p.Result = graph.PlanningGraphID, res
	if !res.Suspended() {
		return c.settle(t, res)
	}

	if err := t.TransitionTo(ticket.StatePlanning, "replanning after rejection"); err != nil {
		return err
	}
	t.ResetReviewsForNewPlan()
	return c.planPosted(ctx, t, res, required, optional)
}

func rejectionReason(d *ticket.RejectionDetails) string {
	if d == nil || d.Reason == "" {
		return "plan rejected"
	}
	return d.Reason
}

// planPosted records a freshly posted plan and puts it under review with the
// given reviewers, or the tenant's configured reviewers when none are given.
func (c *Coordinator) planPosted(ctx context.Context, t *ticket.Ticket, res graph.Result, required, optional []string) error {
	plan, _ := res.Output.(message.PlanGeneratedMessage)
	branch, path := c.planLocation(ctx, t.ID())
	t.SetPlan(branch, path, plan.PlanMarkdown)
	if err := t.TransitionTo(ticket.StatePlanPosted, fmt.Sprintf("plan revision %d posted", plan.Revision)); err != nil {
		return err
	}

	if len(required) == 0 && c.tenants != nil {
		cfg, err := c.tenants.GetConfigurationForTicket(ctx, t.ID())
		if err != nil {
			c.logger.Warn("tenant lookup failed, reviewers not assigned", "ticket_id", t.ID(), "error", err)
		} else if cfg != nil {
			required, optional = cfg.RequiredReviewers, cfg.OptionalReviewers
		}
	}
	if len(required) == 0 {
		return nil
	}
	return t.AssignReviewers(required, optional)
}

// planLocation reads where the plan was committed from the planning checkpoint.
func (c *Coordinator) planLocation(ctx context.Context, ticketID string) (branch, path string) {
	cp, err := c.checkpoints.LoadCheckpoint(ctx, ticketID, graph.PlanningGraphID)
	if err != nil || cp == nil {
		return "", ""
	}
	var st checkpoint.PlanningState
	if err := cp.Decode(&st); err != nil || st.Commit == nil {
		return "", ""
	}
	return st.Commit.Branch, st.Commit.FilePath
}

// =============================================================================
// Implementation
// =============================================================================

// Implement runs implementation for an approved plan whose earlier run was
// skipped or cancelled.
func (c *Coordinator) Implement(ctx context.Context, ticketID string) (Progress, error) {
	var p Progress
	t, err := c.withTicket(ctx, ticketID, func(t *ticket.Ticket) error {
		if t.State() != ticket.StatePlanApproved {
			return &ticket.TransitionError{TicketID: t.ID(), From: t.State(), To: ticket.StateImplementing}
		}
		approvedBy, _ := t.Metadata(MetaApprovedBy)
		if approvedBy == "" {
			approvedBy = "unknown"
		}
		approval := message.PlanApprovedMessage{TicketID: t.ID(), ApprovedBy: approvedBy}
		if at := t.PlanApprovedAt(); at != nil {
			approval.ApprovedAt = *at
		}
		return c.implement(ctx, t, approval, &p, true)
	})
	p.Ticket = t
	return p, err
}

func (c *Coordinator) implement(ctx context.Context, t *ticket.Ticket, approval message.PlanApprovedMessage, p *Progress, resume bool) error {
	run := c.implementation.Execute
	if resume {
		run = func(ctx context.Context, in message.Message) (graph.Result, error) {
			res, err := c.implementation.Resume(ctx, t.ID(), in)
			if err == nil && errors.Is(res.Err, graph.ErrNoCheckpointFound) {
				return c.implementation.Execute(ctx, in)
			}
			return res, err
		}
	}

	res, err := run(ctx, approval)
	if err != nil {
		return err
	}
	p.Graph, p.Result = graph.ImplementationGraphID, res

	switch res.State {
	case graph.ImplStateCompleted:
		done, _ := res.Output.(message.WorkflowCompletedMessage)
		if err := t.TransitionTo(ticket.StateImplementing, "implementation started"); err != nil {
			return err
		}
		t.SetPullRequest(done.PRNumber, done.PRURL)
		return t.TransitionTo(ticket.StatePRCreated, fmt.Sprintf("pull request #%d opened", done.PRNumber))
	case graph.ImplStateSkipped:
		t.SetMetadata(MetaImplementationSkipped, "true")
		return nil
	}
	return c.settle(t, res)
}

// =============================================================================
// Code review
// =============================================================================

// RequestCodeReview reviews the ticket's pull request. A ticket already in
// InReview had its last review interrupted; that review is run again.
func (c *Coordinator) RequestCodeReview(ctx context.Context, ticketID string) (Progress, error) {
	var p Progress
	t, err := c.withTicket(ctx, ticketID, func(t *ticket.Ticket) error {
		if t.State() == ticket.StateInReview {
			return c.rerunReview(ctx, t, &p)
		}
		if err := t.TransitionTo(ticket.StateInReview, "code review requested"); err != nil {
			return err
		}
		res, err := c.review.Execute(ctx, reviewRequest(t))
		if err != nil {
			return err
		}
		p.Graph, p.Result = graph.CodeReviewGraphID, res
		return c.reviewed(t, res)
	})
	p.Ticket = t
	return p, err
}

// SubmitFixes reports that critical review issues were addressed and
// reviews the pull request again. Like RequestCodeReview it also reruns an
// interrupted review.
func (c *Coordinator) SubmitFixes(ctx context.Context, ticketID string) (Progress, error) {
	var p Progress
	t, err := c.withTicket(ctx, ticketID, func(t *ticket.Ticket) error {
		if t.State() == ticket.StateInReview {
			return c.rerunReview(ctx, t, &p)
		}
		if t.State() != ticket.StateImplementing || t.PRNumber() == 0 {
			return &ticket.TransitionError{TicketID: t.ID(), From: t.State(), To: ticket.StateInReview}
		}
		if err := t.TransitionTo(ticket.StatePRCreated, "fixes pushed"); err != nil {
			return err
		}
		if err := t.TransitionTo(ticket.StateInReview, "re-review requested"); err != nil {
			return err
		}
		res, err := c.review.Resume(ctx, t.ID(), reviewRequest(t))
		if err != nil {
			return err
		}
		p.Graph, p.Result = graph.CodeReviewGraphID, res
		return c.reviewed(t, res)
	})
	p.Ticket = t
	return p, err
}

// rerunReview continues the review round recorded in the latest checkpoint,
// or starts a new one when the interrupted round left nothing resumable.
func (c *Coordinator) rerunReview(ctx context.Context, t *ticket.Ticket, p *Progress) error {
	res, err := c.review.Resume(ctx, t.ID(), reviewRequest(t))
	if err == nil && (errors.Is(res.Err, graph.ErrNoCheckpointFound) || errors.Is(res.Err, graph.ErrInvalidResumeState)) {
		res, err = c.review.Execute(ctx, reviewRequest(t))
	}
	if err != nil {
		return err
	}
	p.Graph, p.Result = graph.CodeReviewGraphID, res
	return c.reviewed(t, res)
}

func reviewRequest(t *ticket.Ticket) message.ReviewRequestedMessage {
	return message.ReviewRequestedMessage{TicketID: t.ID(), PRNumber: t.PRNumber(), PRURL: t.PRURL()}
}

func (c *Coordinator) reviewed(t *ticket.Ticket, res graph.Result) error {
	switch res.State {
	case graph.ReviewStateApproved:
		return t.TransitionTo(ticket.StateCompleted, "code review passed")
	case graph.ReviewStateMaxRetries:
		t.SetMetadata(MetaReviewWarnings, "true")
		return t.TransitionTo(ticket.StateCompleted, "completed with review warnings")
	case graph.ReviewStateAwaitingFixes:
		if review, ok := res.Output.(message.CodeReviewedMessage); ok {
			t.SetMetadata(MetaCriticalIssues, strings.Join(review.CriticalIssues(), "\n"))
		}
		return t.TransitionTo(ticket.StateImplementing, "critical review issues need fixes")
	}
	return c.settle(t, res)
}

// =============================================================================
// Lifecycle
// =============================================================================

// Cancel cancels a non-terminal ticket.
func (c *Coordinator) Cancel(ctx context.Context, ticketID, reason string) (*ticket.Ticket, error) {
	return c.withTicket(ctx, ticketID, func(t *ticket.Ticket) error {
		return t.Cancel(reason)
	})
}

// settle applies a graph result that did not advance the workflow. Failures
// fail the ticket; cancellation leaves it as is; rejected input is returned
// to the caller.
func (c *Coordinator) settle(t *ticket.Ticket, res graph.Result) error {
	switch res.State {
	case graph.StateCancelled:
		return nil
	case graph.StateInvalidInput, graph.StateResumeFailed:
		return res.Err
	}
	c.logger.Warn("workflow failed", "ticket_id", t.ID(), "state", res.State, "error", res.Err)
	return t.Fail(res.Err)
}

// withTicket runs fn on the ticket under its lease, then saves the ticket and
// publishes its state changes. The ticket is saved even when fn fails so
// partial progress is kept.
func (c *Coordinator) withTicket(ctx context.Context, ticketID string, fn func(*ticket.Ticket) error) (*ticket.Ticket, error) {
	unlock, err := c.lock(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := c.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	fnErr := fn(t)
	if err := c.save(ctx, t); err != nil {
		return t, errors.Join(fnErr, err)
	}
	return t, fnErr
}

func (c *Coordinator) save(ctx context.Context, t *ticket.Ticket) error {
	if err := c.tickets.Save(context.WithoutCancel(ctx), t); err != nil {
		return fmt.Errorf("save ticket %s: %w", t.ID(), err)
	}
	c.publish(ctx, t)
	return nil
}

func (c *Coordinator) lock(ctx context.Context, ticketID string) (func(), error) {
	holder, err := nanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate lease holder: %w", err)
	}
	if err := c.leases.Acquire(ctx, ticketID, holder, c.leaseTTL); err != nil {
		return nil, err
	}
	return func() {
		if err := c.leases.Release(context.WithoutCancel(ctx), ticketID, holder); err != nil {
			c.logger.Warn("lease release failed", "ticket_id", ticketID, "error", err)
		}
	}, nil
}
