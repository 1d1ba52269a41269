package pr

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/xanzy/go-gitlab"
)

// GitLabProvider implements Provider for GitLab merge requests.
type GitLabProvider struct {
	client    *gitlab.Client
	projectID string // numeric ID or "namespace/project"
	webURL    string
}

// NewGitLabProvider creates a provider. An empty baseURL means gitlab.com.
func NewGitLabProvider(token, baseURL, projectID string) (*GitLabProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("GitLab token is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}

	var opts []gitlab.ClientOptionFunc
	webURL := "https://gitlab.com"
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
		webURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/api/v4")
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	return &GitLabProvider{
		client:    client,
		projectID: projectID,
		webURL:    webURL,
	}, nil
}

// NewGitLabProviderFromURL creates a provider from a remote URL. Remotes
// not on gitlab.com are treated as self-hosted instances.
func NewGitLabProviderFromURL(token, remoteURL string) (*GitLabProvider, error) {
	owner, repo, err := ParseRepoFromURL(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote URL: %w", err)
	}
	var baseURL string
	if host := hostFromURL(remoteURL); host != "https://gitlab.com" {
		baseURL = host
	}
	return NewGitLabProvider(token, baseURL, owner+"/"+repo)
}

// CreatePR implements Provider. GitLab addresses reviewers by numeric user
// ID; non-numeric reviewer names are skipped.
func (p *GitLabProvider) CreatePR(ctx context.Context, opts Options) (*PullRequest, error) {
	if opts.Head == "" {
		return nil, ErrMissingHead
	}
	target := opts.Base
	if target == "" {
		target = "main"
	}
	title := opts.Title
	if opts.Draft {
		title = "Draft: " + title
	}

	mrOpts := &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(title),
		Description:  gitlab.Ptr(opts.Body),
		SourceBranch: gitlab.Ptr(opts.Head),
		TargetBranch: gitlab.Ptr(target),
	}
	if len(opts.Labels) > 0 {
		labels := gitlab.LabelOptions(opts.Labels)
		mrOpts.Labels = &labels
	}
	if ids := numericIDs(opts.Reviewers); len(ids) > 0 {
		mrOpts.ReviewerIDs = gitlab.Ptr(ids)
	}

	mr, resp, err := p.client.MergeRequests.CreateMergeRequest(p.projectID, mrOpts, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, ErrExists
		}
		if resp != nil && resp.StatusCode == http.StatusBadRequest && strings.Contains(err.Error(), "No commits between") {
			return nil, ErrNoChanges
		}
		return nil, fmt.Errorf("create MR: %w", err)
	}

	return &PullRequest{
		Number: mr.IID,
		URL:    mr.WebURL,
		Title:  mr.Title,
		Head:   mr.SourceBranch,
		Base:   mr.TargetBranch,
		Draft:  strings.HasPrefix(mr.Title, "Draft:"),
	}, nil
}

// AddComment implements Provider.
func (p *GitLabProvider) AddComment(ctx context.Context, number int, body string) (string, error) {
	note, _, err := p.client.Notes.CreateMergeRequestNote(p.projectID, number,
		&gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(body)}, gitlab.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("add comment: %w", err)
	}
	return fmt.Sprintf("%s/%s/-/merge_requests/%d#note_%d", p.webURL, p.projectID, number, note.ID), nil
}

// FileURL implements Provider.
func (p *GitLabProvider) FileURL(branch, path string) string {
	return fmt.Sprintf("%s/%s/-/blob/%s/%s", p.webURL, p.projectID, branch, strings.TrimPrefix(path, "/"))
}

func numericIDs(names []string) []int {
	var ids []int
	for _, n := range names {
		if id, err := strconv.Atoi(n); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
