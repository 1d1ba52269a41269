package steps

import (
	"context"

	"github.com/randalmurphal/ticketflow/jira"
)

// JiraTracker adapts a Jira client to Tracker.
type JiraTracker struct {
	client *jira.Client
}

// NewJiraTracker returns a Tracker backed by client.
func NewJiraTracker(client *jira.Client) *JiraTracker {
	return &JiraTracker{client: client}
}

// IssueTitle returns the issue summary.
func (t *JiraTracker) IssueTitle(ctx context.Context, ticketID string) (string, error) {
	issue, err := t.client.GetIssue(ctx, ticketID)
	if err != nil {
		return "", err
	}
	return issue.Fields.Summary, nil
}

// Comment adds markdown as an issue comment and links to it.
func (t *JiraTracker) Comment(ctx context.Context, ticketID, markdown string) (string, error) {
	c, err := t.client.AddComment(ctx, ticketID, markdown)
	if err != nil {
		return "", err
	}
	return t.client.IssueURL(ticketID) + "?focusedCommentId=" + c.ID, nil
}
