package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/git"
	"github.com/randalmurphal/ticketflow/message"
	"github.com/randalmurphal/ticketflow/notify"
	"github.com/randalmurphal/ticketflow/pr"
)

// ErrNoPostTarget means a post step has neither a tracker nor a notifier.
var ErrNoPostTarget = errors.New("no tracker or notifier configured for posting")

// Tracker is the issue tracker tickets come from.
type Tracker interface {
	IssueTitle(ctx context.Context, ticketID string) (string, error)
	Comment(ctx context.Context, ticketID, markdown string) (url string, err error)
}

// Steps holds what the built-in handlers need.
type Steps struct {
	repo     *git.Context
	provider pr.Provider
	tracker  Tracker
	notifier notify.Notifier

	namer      *git.BranchNamer
	baseBranch string
	planDir    string
	push       bool
	labels     []string
	draft      bool

	now    func() time.Time
	logger *slog.Logger
}

// Option configures Steps.
type Option func(*Steps)

// WithTracker posts plans and ticket updates as tracker comments.
func WithTracker(t Tracker) Option {
	return func(s *Steps) { s.tracker = t }
}

// WithNotifier posts through n when no tracker is set.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Steps) { s.notifier = n }
}

// WithBaseBranch sets the branch plans and features start from and pull
// requests target. Default "main".
func WithBaseBranch(b string) Option {
	return func(s *Steps) {
		if b != "" {
			s.baseBranch = b
		}
	}
}

// WithPlanDir sets the repository directory plans are written to.
// Default "plans".
func WithPlanDir(dir string) Option {
	return func(s *Steps) {
		if dir != "" {
			s.planDir = dir
		}
	}
}

// WithoutPush keeps commits local.
func WithoutPush() Option {
	return func(s *Steps) { s.push = false }
}

// WithLabels labels every pull request.
func WithLabels(labels ...string) Option {
	return func(s *Steps) { s.labels = append(s.labels, labels...) }
}

// AsDraft opens pull requests as drafts.
func AsDraft() Option {
	return func(s *Steps) { s.draft = true }
}

// WithClock sets the time source for posted and completed timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Steps) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Steps) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates the built-in steps for repo. provider may be nil when
// pull requests are not opened by this process; CreatePR then fails with
// pr.ErrNoProvider.
func New(repo *git.Context, provider pr.Provider, opts ...Option) *Steps {
	if repo == nil {
		panic("steps: nil repository")
	}
	s := &Steps{
		repo:       repo,
		provider:   provider,
		namer:      git.DefaultBranchNamer(),
		baseBranch: "main",
		planDir:    "plans",
		push:       true,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlanBranch returns the branch plans for ticketID are committed to.
func (s *Steps) PlanBranch(ticketID string) string {
	return s.namer.ForPlan(ticketID)
}

// PlanPath returns the plan file path inside the repository.
func (s *Steps) PlanPath(ticketID string) string {
	return path.Join(s.planDir, ticketID+".md")
}

// FeatureBranch returns the implementation branch for ticketID.
func (s *Steps) FeatureBranch(ticketID string) string {
	return s.namer.ForTicket(ticketID, "")
}

// Register installs the built-in handlers and the configured command
// agents. A command configured for a built-in step replaces it. The
// implementation agent runs inside the ticket's feature worktree.
func Register(reg *agent.Registry, s *Steps, agents map[agent.StepType]*CommandAgent) {
	if s != nil {
		reg.Register(agent.StepCommitPlan, s.CommitPlan).
			Register(agent.StepPostPlan, s.PostPlan).
			Register(agent.StepGitCommit, s.CommitCode).
			Register(agent.StepCreatePR, s.CreatePR).
			Register(agent.StepPostTicketUpdate, s.PostTicketUpdate).
			Register(agent.StepCompletion, s.Completion)
	}
	for step, a := range agents {
		if step == agent.StepImplementation && s != nil {
			reg.Register(step, s.Implement(a))
			continue
		}
		reg.Register(step, a.Handler(step))
	}
}

// post sends markdown to the tracker, or to the notifier as a fallback,
// and returns the URL of the post when there is one.
func (s *Steps) post(ctx context.Context, ticketID string, ev notify.EventType, title, markdown string) (string, error) {
	if s.tracker != nil {
		url, err := s.tracker.Comment(ctx, ticketID, markdown)
		if err != nil {
			return "", fmt.Errorf("comment on %s: %w", ticketID, err)
		}
		return url, nil
	}
	if s.notifier != nil {
		err := s.notifier.Notify(ctx, notify.Event{
			Type:      ev,
			TicketID:  ticketID,
			Message:   title,
			Severity:  notify.SeverityInfo,
			Timestamp: s.now().UTC(),
			Metadata:  map[string]any{"body": markdown},
		})
		if err != nil {
			return "", fmt.Errorf("notify %s: %w", ev, err)
		}
		return "", nil
	}
	return "", ErrNoPostTarget
}

func inputAs[T message.Message](in message.Message) (T, error) {
	m, ok := in.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("expected %s input, got %s", zero.Kind(), message.KindOf(in))
	}
	return m, nil
}
