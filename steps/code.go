package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/git"
	"github.com/randalmurphal/ticketflow/message"
	"github.com/randalmurphal/ticketflow/notify"
	"github.com/randalmurphal/ticketflow/pr"
)

// Implement wraps the implementation agent so it runs inside the ticket's
// feature worktree, created from the base branch on first use. The agent
// sees the branch and plan location in its environment. An output that
// leaves Branch empty gets the feature branch.
func (s *Steps) Implement(a *CommandAgent) agent.Handler {
	return func(ctx context.Context, in message.Message, gc agent.Context) (message.Message, error) {
		approval, err := inputAs[message.PlanApprovedMessage](in)
		if err != nil {
			return nil, err
		}
		branch := s.FeatureBranch(approval.TicketID)
		wt, err := s.repo.EnsureWorktree(branch, s.baseBranch)
		if err != nil {
			return nil, fmt.Errorf("prepare feature worktree: %w", err)
		}

		out, err := a.run(ctx, agent.StepImplementation, in, gc, Invocation{
			Dir: wt.WorkDir(),
			Env: []string{
				"TICKETFLOW_BRANCH=" + branch,
				"TICKETFLOW_PLAN_BRANCH=" + s.PlanBranch(approval.TicketID),
				"TICKETFLOW_PLAN_PATH=" + s.PlanPath(approval.TicketID),
			},
		})
		if err != nil {
			return nil, err
		}
		if done, ok := out.(message.CodeImplementedMessage); ok && done.Branch == "" {
			done.Branch = branch
			out = done
		}
		if err := message.Validate(out); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
		}
		return out, nil
	}
}

// CommitCode commits every change in the implementation branch's worktree.
func (s *Steps) CommitCode(ctx context.Context, in message.Message, gc agent.Context) (message.Message, error) {
	impl, err := inputAs[message.CodeImplementedMessage](in)
	if err != nil {
		return nil, err
	}
	wt, err := s.repo.EnsureWorktree(impl.Branch, s.baseBranch)
	if err != nil {
		return nil, fmt.Errorf("prepare feature worktree: %w", err)
	}

	subject := impl.Summary
	if subject == "" {
		subject = "implement " + impl.TicketID
	}
	msg := git.NewCommitMessage(git.CommitTypeFeat, subject).WithTicketRef(impl.TicketID)
	if len(impl.FilesChanged) > 0 {
		msg.WithBody("Files changed:\n" + strings.Join(impl.FilesChanged, "\n"))
	}
	if gc.ReviewRetryCount > 0 {
		msg.Type = git.CommitTypeFix
		msg.Subject = fmt.Sprintf("address review findings for %s", impl.TicketID)
	}

	sha, err := s.commit(wt, msg.String())
	if err != nil {
		return nil, err
	}
	if err := s.pushIfEnabled(ctx, wt); err != nil {
		return nil, err
	}

	s.logger.Info("code committed", "ticket_id", impl.TicketID, "branch", impl.Branch, "sha", sha)
	return message.CodeCommittedMessage{
		TicketID:  impl.TicketID,
		Branch:    impl.Branch,
		CommitSHA: sha,
		Summary:   impl.Summary,
	}, nil
}

// CreatePR opens a pull request from the committed branch into the base
// branch, linking the approved plan.
func (s *Steps) CreatePR(ctx context.Context, in message.Message, gc agent.Context) (message.Message, error) {
	committed, err := inputAs[message.CodeCommittedMessage](in)
	if err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, pr.ErrNoProvider
	}

	title := s.prTitle(ctx, committed)
	opts := pr.NewBuilder(title).
		WithTicket(committed.TicketID).
		WithBase(s.baseBranch).
		WithHead(committed.Branch).
		WithLabels(s.labels...).
		WithSections(pr.BodySections{
			Summary:  committed.Summary,
			PlanLink: s.provider.FileURL(s.PlanBranch(committed.TicketID), s.PlanPath(committed.TicketID)),
			TicketID: committed.TicketID,
		})
	if s.draft {
		opts.AsDraft()
	}

	created, err := s.provider.CreatePR(ctx, opts.Build())
	if err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}
	s.logger.Info("pull request created",
		"ticket_id", committed.TicketID,
		"number", created.Number,
		"url", created.URL,
	)
	return message.PRCreatedMessage{
		TicketID: committed.TicketID,
		Number:   created.Number,
		URL:      created.URL,
		Branch:   committed.Branch,
	}, nil
}

func (s *Steps) prTitle(ctx context.Context, c message.CodeCommittedMessage) string {
	if s.tracker != nil {
		title, err := s.tracker.IssueTitle(ctx, c.TicketID)
		if err == nil && title != "" {
			return title
		}
		if err != nil {
			s.logger.Warn("ticket title lookup failed", "ticket_id", c.TicketID, "error", err)
		}
	}
	if c.Summary != "" {
		return firstLine(c.Summary)
	}
	return "Implement " + c.TicketID
}

// PostTicketUpdate tells the ticket that its implementation was committed.
func (s *Steps) PostTicketUpdate(ctx context.Context, in message.Message, gc agent.Context) (message.Message, error) {
	committed, err := inputAs[message.CodeCommittedMessage](in)
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Implementation committed for %s", committed.TicketID)
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	fmt.Fprintf(&b, "- Branch: `%s`\n", committed.Branch)
	if committed.CommitSHA != "" {
		fmt.Fprintf(&b, "- Commit: `%s`\n", shortSHA(committed.CommitSHA))
	}
	if committed.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", committed.Summary)
	}

	url, err := s.post(ctx, committed.TicketID, notify.EventTicketUpdatePosted, title, b.String())
	if err != nil {
		return nil, err
	}
	return message.MessagePostedMessage{
		TicketID: committed.TicketID,
		Target:   message.TargetTicketUpdate,
		URL:      url,
		PostedAt: s.now().UTC(),
	}, nil
}

// Completion closes the run once the pull request exists.
func (s *Steps) Completion(ctx context.Context, in message.Message, gc agent.Context) (message.Message, error) {
	created, err := inputAs[message.PRCreatedMessage](in)
	if err != nil {
		return nil, err
	}
	return message.WorkflowCompletedMessage{
		TicketID:    created.TicketID,
		PRNumber:    created.Number,
		PRURL:       created.URL,
		Summary:     fmt.Sprintf("pull request #%d opened for %s", created.Number, created.TicketID),
		CompletedAt: s.now().UTC(),
	}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
