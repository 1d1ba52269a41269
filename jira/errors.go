package jira

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Configuration errors.
var (
	ErrConfigURLRequired       = errors.New("jira url is required")
	ErrConfigAuthTypeRequired  = errors.New("jira auth type is required")
	ErrConfigAuthTypeInvalid   = errors.New("jira auth type must be api_token or pat")
	ErrConfigAPITokenAuth      = errors.New("api_token auth requires email and token")
	ErrConfigPATAuth           = errors.New("pat auth requires token")
	ErrConfigAPIVersionInvalid = errors.New("api_version must be 2 or 3")
)

// Issue errors.
var (
	ErrIssueNotFound   = errors.New("jira issue not found")
	ErrIssueKeyInvalid = errors.New("invalid issue key format")
	ErrUnauthorized    = errors.New("jira rejected the credentials")
)

// APIError is an error response from the Jira API.
type APIError struct {
	StatusCode    int               `json:"-"`
	ErrorMessages []string          `json:"errorMessages,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
	Endpoint      string            `json:"-"`
}

func (e *APIError) Error() string {
	if len(e.ErrorMessages) > 0 {
		return fmt.Sprintf("jira api error (%d) at %s: %s", e.StatusCode, e.Endpoint, e.ErrorMessages[0])
	}
	for field, msg := range e.Errors {
		return fmt.Sprintf("jira api error (%d) at %s: %s: %s", e.StatusCode, e.Endpoint, field, msg)
	}
	return fmt.Sprintf("jira api error (%d) at %s", e.StatusCode, e.Endpoint)
}

// Unwrap maps well-known statuses to sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrIssueNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}

// IsRetryable reports whether a request that failed with err may succeed
// when repeated.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return retryableStatus(apiErr.StatusCode)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func parseAPIError(resp *http.Response, endpoint string) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(body, apiErr) // body may be empty or HTML
	return apiErr
}
