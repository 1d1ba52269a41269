package pr

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubProvider implements Provider for GitHub repositories.
type GitHubProvider struct {
	client *github.Client
	owner  string
	repo   string
	webURL string
	logger *slog.Logger
}

// GitHubOption configures a GitHubProvider.
type GitHubOption func(*GitHubProvider) error

// WithGitHubAPIURL points the client at a different API root, such as a
// GitHub Enterprise server or a test server.
func WithGitHubAPIURL(apiURL string) GitHubOption {
	return func(p *GitHubProvider) error {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		u, err := url.Parse(apiURL)
		if err != nil {
			return fmt.Errorf("parse GitHub API URL: %w", err)
		}
		p.client.BaseURL = u
		return nil
	}
}

// WithGitHubWebURL sets the web root used by FileURL.
func WithGitHubWebURL(webURL string) GitHubOption {
	return func(p *GitHubProvider) error {
		p.webURL = strings.TrimSuffix(webURL, "/")
		return nil
	}
}

// WithGitHubLogger sets the logger for non-fatal follow-up failures.
func WithGitHubLogger(logger *slog.Logger) GitHubOption {
	return func(p *GitHubProvider) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// NewGitHubProvider creates a provider for owner/repo authenticated with a
// personal access or app token.
func NewGitHubProvider(token, owner, repo string, opts ...GitHubOption) (*GitHubProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token is required")
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	p := &GitHubProvider{
		client: github.NewClient(oauth2.NewClient(context.Background(), ts)),
		owner:  owner,
		repo:   repo,
		webURL: "https://github.com",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewGitHubProviderFromURL creates a provider from a remote URL such as
// "git@github.com:acme/api.git".
func NewGitHubProviderFromURL(token, remoteURL string, opts ...GitHubOption) (*GitHubProvider, error) {
	owner, repo, err := ParseRepoFromURL(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote URL: %w", err)
	}
	opts = append([]GitHubOption{WithGitHubWebURL(hostFromURL(remoteURL))}, opts...)
	return NewGitHubProvider(token, owner, repo, opts...)
}

// CreatePR implements Provider. Labels and reviewers are applied after
// creation; failing to apply them is logged, not returned.
func (p *GitHubProvider) CreatePR(ctx context.Context, opts Options) (*PullRequest, error) {
	if opts.Head == "" {
		return nil, ErrMissingHead
	}
	base := opts.Base
	if base == "" {
		base = "main"
	}

	created, resp, err := p.client.PullRequests.Create(ctx, p.owner, p.repo, &github.NewPullRequest{
		Title: github.String(opts.Title),
		Body:  github.String(opts.Body),
		Base:  github.String(base),
		Head:  github.String(opts.Head),
		Draft: github.Bool(opts.Draft),
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			switch {
			case strings.Contains(err.Error(), "A pull request already exists"):
				return nil, ErrExists
			case strings.Contains(err.Error(), "No commits between"):
				return nil, ErrNoChanges
			}
		}
		return nil, fmt.Errorf("create PR: %w", err)
	}

	number := created.GetNumber()
	if len(opts.Labels) > 0 {
		if _, _, err := p.client.Issues.AddLabelsToIssue(ctx, p.owner, p.repo, number, opts.Labels); err != nil {
			p.logger.Warn("failed to add labels to PR", "error", err, "pr", number, "labels", opts.Labels)
		}
	}
	if len(opts.Reviewers) > 0 {
		if _, _, err := p.client.PullRequests.RequestReviewers(ctx, p.owner, p.repo, number,
			github.ReviewersRequest{Reviewers: opts.Reviewers}); err != nil {
			p.logger.Warn("failed to request reviewers", "error", err, "pr", number, "reviewers", opts.Reviewers)
		}
	}

	return &PullRequest{
		Number: number,
		URL:    created.GetHTMLURL(),
		Title:  created.GetTitle(),
		Head:   created.GetHead().GetRef(),
		Base:   created.GetBase().GetRef(),
		Draft:  created.GetDraft(),
	}, nil
}

// AddComment implements Provider.
func (p *GitHubProvider) AddComment(ctx context.Context, number int, body string) (string, error) {
	comment, _, err := p.client.Issues.CreateComment(ctx, p.owner, p.repo, number,
		&github.IssueComment{Body: github.String(body)})
	if err != nil {
		return "", fmt.Errorf("add comment: %w", err)
	}
	return comment.GetHTMLURL(), nil
}

// FileURL implements Provider.
func (p *GitHubProvider) FileURL(branch, path string) string {
	return fmt.Sprintf("%s/%s/%s/blob/%s/%s", p.webURL, p.owner, p.repo, branch, strings.TrimPrefix(path, "/"))
}
