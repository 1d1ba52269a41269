package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, version APIVersion, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(&Config{
		URL:        srv.URL,
		APIVersion: version,
		Auth:       AuthConfig{Type: AuthAPIToken, Email: "bot@acme.io", Token: "tok"},
	})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) {}
	return c
}

func TestGetIssue(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/issue/TK-421", r.URL.Path)
		assert.Equal(t, "summary", r.URL.Query().Get("fields"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@acme.io", user)
		assert.Equal(t, "tok", pass)
		_, _ = w.Write([]byte(`{"id":"1","key":"TK-421","fields":{"summary":"Add rate limiting"}}`))
	})

	issue, err := c.GetIssue(context.Background(), "TK-421")
	require.NoError(t, err)
	assert.Equal(t, "Add rate limiting", issue.Fields.Summary)
}

func TestGetIssue_NotFound(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorMessages":["Issue does not exist"]}`))
	})

	_, err := c.GetIssue(context.Background(), "TK-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIssueNotFound))
	assert.Contains(t, err.Error(), "Issue does not exist")
}

func TestGetIssue_InvalidKey(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.GetIssue(context.Background(), "not a key")
	assert.ErrorIs(t, err, ErrIssueKeyInvalid)
}

func TestAddComment_V3SendsADF(t *testing.T) {
	var body struct {
		Body ADFDocument `json:"body"`
	}
	c := newTestClient(t, APIVersionV3, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/3/issue/TK-421/comment", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"10","self":"https://acme.atlassian.net/rest/api/3/issue/1/comment/10"}`))
	})

	comment, err := c.AddComment(context.Background(), "TK-421", "## Plan\n\n- one\n- two")
	require.NoError(t, err)
	assert.Equal(t, "10", comment.ID)
	require.Len(t, body.Body.Content, 2)
	assert.Equal(t, "heading", body.Body.Content[0].Type)
	assert.Equal(t, "bulletList", body.Body.Content[1].Type)
}

func TestAddComment_V2SendsText(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, APIVersionV2, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":"11"}`))
	})

	_, err := c.AddComment(context.Background(), "TK-421", "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", body["body"])
}

func TestRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"key":"TK-421","fields":{"summary":"ok"}}`))
	})

	issue, err := c.GetIssue(context.Background(), "TK-421")
	require.NoError(t, err)
	assert.Equal(t, "ok", issue.Fields.Summary)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesGiveUp(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetIssue(context.Background(), "TK-421")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(defaultMaxRetries+1), calls.Load())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"no url", Config{}, ErrConfigURLRequired},
		{"no auth", Config{URL: "https://x"}, ErrConfigAuthTypeRequired},
		{"bad auth", Config{URL: "https://x", Auth: AuthConfig{Type: "oauth"}}, ErrConfigAuthTypeInvalid},
		{"token missing email", Config{URL: "https://x", Auth: AuthConfig{Type: AuthAPIToken, Token: "t"}}, ErrConfigAPITokenAuth},
		{"pat missing token", Config{URL: "https://x", Auth: AuthConfig{Type: AuthPAT}}, ErrConfigPATAuth},
		{"bad version", Config{URL: "https://x", APIVersion: "4", Auth: AuthConfig{Type: AuthPAT, Token: "t"}}, ErrConfigAPIVersionInvalid},
		{"ok", Config{URL: "https://x", Auth: AuthConfig{Type: AuthPAT, Token: "t"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), tt.want)
		})
	}
}

func TestMarkdownToADF(t *testing.T) {
	doc := MarkdownToADF("# Plan for TK-1\n\nFirst line\ncontinues here.\n\n1. step one\n2. step two\n\n```go\nfmt.Println()\n```\n---\n* bullet")

	types := make([]string, len(doc.Content))
	for i, n := range doc.Content {
		types[i] = n.Type
	}
	assert.Equal(t, []string{"heading", "paragraph", "orderedList", "codeBlock", "rule", "bulletList"}, types)
	assert.Equal(t, 1, doc.Content[0].Attrs["level"])
	assert.Equal(t, "First line continues here.", doc.Content[1].Content[0].Text)
	assert.Len(t, doc.Content[2].Content, 2)
	assert.Equal(t, "go", doc.Content[3].Attrs["language"])
	assert.Equal(t, 1, doc.Version)
}
