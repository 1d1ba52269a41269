package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var issueKeyRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[1-9][0-9]*$`)

// ValidateIssueKey reports whether key looks like "PROJ-123".
func ValidateIssueKey(key string) bool {
	return issueKeyRegex.MatchString(key)
}

// Issue is the subset of an issue the workflow reads.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the fields requested from the API.
type IssueFields struct {
	Summary string `json:"summary"`
}

// Comment is a created comment.
type Comment struct {
	ID   string `json:"id"`
	Self string `json:"self"`
}

// Client talks to the Jira REST API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient validates cfg and builds a client.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	resolved := cfg.withDefaults()
	c := &Client{
		cfg:        resolved,
		baseURL:    strings.TrimSuffix(resolved.URL, "/"),
		httpClient: &http.Client{Timeout: resolved.Timeout},
		sleep:      waitForRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueURL returns the browser URL of an issue.
func (c *Client) IssueURL(key string) string {
	return c.baseURL + "/browse/" + key
}

// GetIssue fetches an issue's summary.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	if !ValidateIssueKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrIssueKeyInvalid, key)
	}
	var issue Issue
	if err := c.do(ctx, http.MethodGet, "/issue/"+key+"?fields=summary", nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// AddComment posts markdown as a comment on the issue.
func (c *Client) AddComment(ctx context.Context, key, markdown string) (*Comment, error) {
	if !ValidateIssueKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrIssueKeyInvalid, key)
	}
	var body any = markdown
	if c.cfg.APIVersion == APIVersionV3 {
		body = MarkdownToADF(markdown)
	}

	var comment Comment
	if err := c.do(ctx, http.MethodPost, "/issue/"+key+"/comment", map[string]any{"body": body}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// do sends a JSON request, retrying rate limits and server errors with
// exponential backoff, and decodes a 2xx response into out.
func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	path := "/rest/api/" + string(c.cfg.APIVersion) + endpoint
	delay := c.cfg.RetryWaitMin
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.setAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil || attempt >= c.cfg.MaxRetries {
				return fmt.Errorf("%s %s: %w", method, endpoint, err)
			}
			c.sleep(ctx, delay)
			delay = min(delay*2, c.cfg.RetryWaitMax)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer func() { _ = resp.Body.Close() }()
			if out == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode %s response: %w", endpoint, err)
			}
			return nil
		}

		apiErr := parseAPIError(resp, path)
		_ = resp.Body.Close()
		if !retryableStatus(resp.StatusCode) || attempt >= c.cfg.MaxRetries {
			return apiErr
		}

		wait := delay
		if s := resp.Header.Get("Retry-After"); s != "" {
			if seconds, err := strconv.Atoi(s); err == nil {
				wait = time.Duration(seconds) * time.Second
			}
		}
		c.sleep(ctx, wait)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay = min(delay*2, c.cfg.RetryWaitMax)
	}
}

func (c *Client) setAuth(req *http.Request) {
	switch c.cfg.Auth.Type {
	case AuthAPIToken:
		creds := base64.StdEncoding.EncodeToString([]byte(c.cfg.Auth.Email + ":" + c.cfg.Auth.Token))
		req.Header.Set("Authorization", "Basic "+creds)
	case AuthPAT:
		req.Header.Set("Authorization", "Bearer "+c.cfg.Auth.Token)
	}
}

func waitForRetry(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
