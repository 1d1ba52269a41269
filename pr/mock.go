package pr

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a Provider for tests. Unset funcs return canned values.
type MockProvider struct {
	CreatePRFunc   func(ctx context.Context, opts Options) (*PullRequest, error)
	AddCommentFunc func(ctx context.Context, number int, body string) (string, error)

	mu       sync.Mutex
	Created  []Options
	Comments []string
}

// CreatePR implements Provider.
func (m *MockProvider) CreatePR(ctx context.Context, opts Options) (*PullRequest, error) {
	m.mu.Lock()
	m.Created = append(m.Created, opts)
	m.mu.Unlock()

	if m.CreatePRFunc != nil {
		return m.CreatePRFunc(ctx, opts)
	}
	return &PullRequest{
		Number: 1,
		URL:    "https://example.com/pr/1",
		Title:  opts.Title,
		Head:   opts.Head,
		Base:   opts.Base,
	}, nil
}

// AddComment implements Provider.
func (m *MockProvider) AddComment(ctx context.Context, number int, body string) (string, error) {
	m.mu.Lock()
	m.Comments = append(m.Comments, body)
	m.mu.Unlock()

	if m.AddCommentFunc != nil {
		return m.AddCommentFunc(ctx, number, body)
	}
	return fmt.Sprintf("https://example.com/pr/%d#comment", number), nil
}

// FileURL implements Provider.
func (m *MockProvider) FileURL(branch, path string) string {
	return "https://example.com/blob/" + branch + "/" + path
}
