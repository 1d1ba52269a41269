package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/ticketflow/auth"
	"github.com/randalmurphal/ticketflow/config"
	"github.com/randalmurphal/ticketflow/git"
	"github.com/randalmurphal/ticketflow/graph"
	"github.com/randalmurphal/ticketflow/jira"
	"github.com/randalmurphal/ticketflow/pr"
	"github.com/randalmurphal/ticketflow/ticket"
	"github.com/randalmurphal/ticketflow/workflow"
)

// CLIError wraps an error with user-facing context.
type CLIError struct {
	Err        error
	Message    string
	Suggestion string
	Details    string // optional
}

func (e *CLIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}
	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Suggestion)
	}
	return sb.String()
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// Usage returns a usage error for bad arguments.
func Usage(format string, args ...any) error {
	return &CLIError{
		Err:        ErrUsage,
		Message:    fmt.Sprintf(format, args...),
		Suggestion: "Run with --help for usage.",
	}
}

type rule struct {
	target     error
	message    string
	suggestion string
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{ticket.ErrNotFound, "Ticket not found.",
		"Create it with 'ticketflow ticket create <id>' or check the id."},
	{workflow.ErrAlreadyExists, "A ticket with this id already exists.",
		"Inspect it with 'ticketflow ticket show <id>'."},
	{ticket.ErrBusy, "Another operation is running on this ticket.",
		"Wait for it to finish, or for its lease (lease_ttl) to expire."},
	{ticket.ErrTerminalState, "The ticket is already finished.",
		"Start a new ticket to run the workflow again."},
	{ticket.ErrInvalidTransition, "The ticket is not in a state that allows this.",
		"Check its state with 'ticketflow ticket show <id>'."},
	{ticket.ErrNoRequiredReviewers, "At least one required reviewer is needed.",
		"Pass --required, or configure required_reviewers for the tenant."},
	{ticket.ErrReviewerNotAssigned, "That reviewer is not assigned to the current plan.",
		"Assign reviewers with 'ticketflow review assign <id>'."},
	{graph.ErrTooManyRejections, "The plan was rejected too many times.",
		"The ticket has failed; refine the ticket and start a new one."},
	{config.ErrNoTokenSecret, "Decision tokens need a signing secret.",
		"Set token_secret (or TICKETFLOW_TOKEN_SECRET) to at least 32 characters."},
	{auth.ErrTokenExpired, "The decision token has expired.",
		"Issue a new one with 'ticketflow token issue <id> <reviewer>'."},
	{auth.ErrInvalidToken, "The decision token is not valid.",
		"Check that it was issued with the current token_secret."},
	{auth.ErrWrongTicket, "The decision token was issued for a different ticket.", ""},
	{git.ErrNotGitRepo, "repo_path is not a git repository.",
		"Set repo_path (or TICKETFLOW_REPO_PATH) to a clone of the target repository."},
	{pr.ErrNoProvider, "No pull request provider is configured.",
		"Set GITHUB_TOKEN or GITLAB_TOKEN for the repository's remote."},
	{pr.ErrUnknownProvider, "The remote is neither GitHub nor GitLab.",
		"Check the remote configured by 'remote' (default origin)."},
	{jira.ErrUnauthorized, "Jira rejected the credentials.",
		"Check jira_email and jira_token."},
}

// Wrap returns err as a CLIError when it matches a known cause, and err
// unchanged otherwise. CLIErrors pass through.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	for _, r := range rules {
		if errors.Is(err, r.target) {
			return &CLIError{Err: err, Message: r.message, Details: err.Error(), Suggestion: r.suggestion}
		}
	}
	if IsConnectionError(err) {
		return &CLIError{
			Err:     fmt.Errorf("%w: %w", ErrConnectionFailed, err),
			Message: "Could not reach an external service.",
			Details: err.Error(),
			Suggestion: "Check that:\n  - the service URL is correct\n" +
				"  - the service is up\n  - your network connection is working",
		}
	}
	return err
}

// ExitCode returns the process exit status for err.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case IsNotFound(err):
		return ExitNotFound
	case IsConflict(err):
		return ExitConflict
	case IsAuthError(err):
		return ExitAuth
	default:
		return ExitFailure
	}
}
