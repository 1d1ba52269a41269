package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/ticketflow/agent"
	"github.com/randalmurphal/ticketflow/git"
	"github.com/randalmurphal/ticketflow/message"
	"github.com/randalmurphal/ticketflow/notify"
)

// CommitPlan writes the plan to its file on the ticket's plan branch and
// commits it. Committing an unchanged plan reports the existing head.
func (s *Steps) CommitPlan(ctx context.Context, in message.Message, gc agent.Context) (message.Message, error) {
	plan, err := inputAs[message.PlanGeneratedMessage](in)
	if err != nil {
		return nil, err
	}

	branch := s.PlanBranch(plan.TicketID)
	file := s.PlanPath(plan.TicketID)

	wt, err := s.repo.EnsureWorktree(branch, s.baseBranch)
	if err != nil {
		return nil, fmt.Errorf("prepare plan worktree: %w", err)
	}
	if err := wt.WriteFile(file, []byte(plan.PlanMarkdown)); err != nil {
		return nil, fmt.Errorf("write plan: %w", err)
	}

	subject := fmt.Sprintf("add implementation plan for %s", plan.TicketID)
	if plan.Revision > 1 {
		subject = fmt.Sprintf("revise implementation plan for %s (rev %d)", plan.TicketID, plan.Revision)
	}
	msg := git.NewCommitMessage(git.CommitTypeDocs, subject).
		WithScope("plan").
		WithBody(plan.Summary).
		WithTicketRef(plan.TicketID)

	sha, err := s.commit(wt, msg.String(), file)
	if err != nil {
		return nil, err
	}
	if err := s.pushIfEnabled(ctx, wt); err != nil {
		return nil, err
	}

	s.logger.Info("plan committed",
		"ticket_id", plan.TicketID,
		"branch", branch,
		"file", file,
		"sha", sha,
		"revision", plan.Revision,
	)
	return message.PlanCommittedMessage{
		TicketID:  plan.TicketID,
		Branch:    branch,
		FilePath:  file,
		CommitSHA: sha,
	}, nil
}

// PostPlan posts the plan for reviewers.
func (s *Steps) PostPlan(ctx context.Context, in message.Message, gc agent.Context) (message.Message, error) {
	plan, err := inputAs[message.PlanGeneratedMessage](in)
	if err != nil {
		return nil, err
	}

	var body string
	if s.provider != nil {
		body = fmt.Sprintf("Plan committed to [`%s`](%s).\n\n",
			s.PlanPath(plan.TicketID),
			s.provider.FileURL(s.PlanBranch(plan.TicketID), s.PlanPath(plan.TicketID)))
	}
	title := fmt.Sprintf("Implementation plan for %s", plan.TicketID)
	if plan.Revision > 1 {
		title = fmt.Sprintf("Implementation plan for %s (revision %d)", plan.TicketID, plan.Revision)
	}
	body = "## " + title + "\n\n" + body + plan.PlanMarkdown

	url, err := s.post(ctx, plan.TicketID, notify.EventPlanPosted, title, body)
	if err != nil {
		return nil, err
	}
	return message.MessagePostedMessage{
		TicketID: plan.TicketID,
		Target:   message.TargetPlanSummary,
		URL:      url,
		PostedAt: s.now().UTC(),
	}, nil
}

func (s *Steps) commit(wt *git.Context, msg string, files ...string) (string, error) {
	var (
		res *git.CommitResult
		err error
	)
	if len(files) == 0 {
		res, err = wt.CommitAll(msg)
	} else {
		res, err = wt.CommitFiles(msg, files...)
	}
	if errors.Is(err, git.ErrNothingToCommit) {
		return wt.HeadCommit()
	}
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return res.SHA, nil
}

func (s *Steps) pushIfEnabled(ctx context.Context, wt *git.Context) error {
	if !s.push {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := wt.PushCurrent()
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	s.logger.Debug("pushed", "branch", res.Branch, "remote", res.Remote, "upstream", res.SetUpstream)
	return nil
}
