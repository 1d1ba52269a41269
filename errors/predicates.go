package errors

import (
	"errors"
	"strings"

	"github.com/randalmurphal/ticketflow/auth"
	"github.com/randalmurphal/ticketflow/jira"
	"github.com/randalmurphal/ticketflow/ticket"
	"github.com/randalmurphal/ticketflow/workflow"
)

// IsNotFound reports whether err means a ticket or issue does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ticket.ErrNotFound) || errors.Is(err, jira.ErrIssueNotFound)
}

// IsConflict reports whether err means the ticket's state or lease
// prevented the operation.
func IsConflict(err error) bool {
	return errors.Is(err, ticket.ErrBusy) ||
		errors.Is(err, ticket.ErrInvalidTransition) ||
		errors.Is(err, workflow.ErrAlreadyExists)
}

// IsAuthError reports whether err is about credentials or tokens.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrWrongTicket) ||
		errors.Is(err, jira.ErrUnauthorized) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "401 bad credentials") ||
		strings.Contains(errStr, "401 unauthorized")
}

// IsConnectionError reports network, TLS, and timeout failures.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionFailed) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused", "no such host", "network is unreachable", "dial tcp",
		"x509", "tls:", "i/o timeout", "deadline exceeded",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}
