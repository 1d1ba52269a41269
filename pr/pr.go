package pr

import (
	"context"
	"fmt"
	"strings"
)

// Provider opens pull requests and comments on them. GitHubProvider and
// GitLabProvider implement it; MockProvider is for tests.
type Provider interface {
	// CreatePR opens a pull request from opts.Head into opts.Base.
	CreatePR(ctx context.Context, opts Options) (*PullRequest, error)

	// AddComment comments on pull request number and returns the comment URL.
	AddComment(ctx context.Context, number int, body string) (string, error)

	// FileURL returns the web URL of path on branch.
	FileURL(branch, path string) string
}

// Options configures pull request creation.
type Options struct {
	Title     string   // required
	Body      string   // markdown
	Base      string   // default "main"
	Head      string   // source branch
	Labels    []string
	Reviewers []string
	Draft     bool
}

// PullRequest is an opened pull request.
type PullRequest struct {
	Number int
	URL    string // web URL
	Title  string
	Head   string
	Base   string
	Draft  bool
}

// Builder constructs Options fluently.
type Builder struct {
	opts Options
}

// NewBuilder starts a pull request targeting main.
func NewBuilder(title string) *Builder {
	return &Builder{opts: Options{Title: title, Base: "main"}}
}

// WithTicket prefixes the title with the ticket reference.
// Example: "Add feature" -> "[TK-421] Add feature"
func (b *Builder) WithTicket(ticketID string) *Builder {
	b.opts.Title = fmt.Sprintf("[%s] %s", ticketID, b.opts.Title)
	return b
}

// WithBody sets the body verbatim.
func (b *Builder) WithBody(body string) *Builder {
	b.opts.Body = body
	return b
}

// BodySections are the parts of a generated pull request description.
type BodySections struct {
	Summary  string
	Changes  []string
	PlanLink string // link to the approved plan, when known
	TicketID string
}

// WithSections formats a body with summary, plan, changes, and a footer.
func (b *Builder) WithSections(s BodySections) *Builder {
	var body strings.Builder

	body.WriteString("## Summary\n\n")
	if s.Summary != "" {
		body.WriteString(s.Summary)
	} else {
		fmt.Fprintf(&body, "Implements %s.", s.TicketID)
	}

	if s.PlanLink != "" {
		fmt.Fprintf(&body, "\n\n## Plan\n\nThis change follows the [approved plan](%s).", s.PlanLink)
	}

	if len(s.Changes) > 0 {
		body.WriteString("\n\n## Changes\n\n")
		for _, change := range s.Changes {
			body.WriteString("- ")
			body.WriteString(change)
			body.WriteString("\n")
		}
	}

	body.WriteString("\n\n---\n*Generated by ticketflow*")
	if s.TicketID != "" {
		fmt.Fprintf(&body, " for %s", s.TicketID)
	}
	b.opts.Body = body.String()
	return b
}

// WithBase sets the target branch.
func (b *Builder) WithBase(base string) *Builder {
	if base != "" {
		b.opts.Base = base
	}
	return b
}

// WithHead sets the source branch.
func (b *Builder) WithHead(head string) *Builder {
	b.opts.Head = head
	return b
}

// WithLabels adds labels.
func (b *Builder) WithLabels(labels ...string) *Builder {
	b.opts.Labels = append(b.opts.Labels, labels...)
	return b
}

// WithReviewers adds reviewers.
func (b *Builder) WithReviewers(reviewers ...string) *Builder {
	b.opts.Reviewers = append(b.opts.Reviewers, reviewers...)
	return b
}

// AsDraft opens the pull request as a draft.
func (b *Builder) AsDraft() *Builder {
	b.opts.Draft = true
	return b
}

// Build returns the options.
func (b *Builder) Build() Options {
	return b.opts
}

// DetectProvider names the hosting platform of a remote URL.
func DetectProvider(remoteURL string) (string, error) {
	lower := strings.ToLower(remoteURL)
	switch {
	case strings.Contains(lower, "github"):
		return "github", nil
	case strings.Contains(lower, "gitlab"):
		return "gitlab", nil
	}
	return "", ErrUnknownProvider
}

// ParseRepoFromURL extracts owner and repository from an SSH or HTTPS
// remote URL. For nested GitLab groups the owner is the full group path.
func ParseRepoFromURL(remoteURL string) (owner, repo string, err error) {
	var path string
	switch {
	case strings.HasPrefix(remoteURL, "git@"):
		_, after, ok := strings.Cut(remoteURL, ":")
		if !ok {
			return "", "", fmt.Errorf("invalid SSH URL %q", remoteURL)
		}
		path = after
	default:
		trimmed := strings.TrimPrefix(strings.TrimPrefix(remoteURL, "https://"), "http://")
		_, after, ok := strings.Cut(trimmed, "/")
		if !ok {
			return "", "", fmt.Errorf("invalid URL %q", remoteURL)
		}
		path = after
	}

	path = strings.Trim(strings.TrimSuffix(path, ".git"), "/")
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("invalid repository path %q", path)
	}
	return path[:i], path[i+1:], nil
}

// hostFromURL returns the scheme and host of an HTTPS or SSH remote URL.
func hostFromURL(remoteURL string) string {
	if strings.HasPrefix(remoteURL, "git@") {
		host, _, _ := strings.Cut(strings.TrimPrefix(remoteURL, "git@"), ":")
		return "https://" + host
	}
	scheme := "https://"
	if strings.HasPrefix(remoteURL, "http://") {
		scheme = "http://"
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(remoteURL, "https://"), "http://")
	host, _, _ := strings.Cut(rest, "/")
	return scheme + host
}
