package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/randalmurphal/ticketflow/auth"
	"github.com/randalmurphal/ticketflow/config"
	"github.com/randalmurphal/ticketflow/ticket"
)

func TestCLIError(t *testing.T) {
	err := &CLIError{
		Err:        ErrNotAuthenticated,
		Message:    "Test message",
		Suggestion: "Test suggestion",
		Details:    "Test details",
	}

	if got, want := err.Error(), "Test message\nTest details\n\nTest suggestion"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Error("expected error to unwrap to ErrNotAuthenticated")
	}

	minimal := &CLIError{Err: ErrConnectionFailed, Message: "Connection failed"}
	if minimal.Error() != "Connection failed" {
		t.Errorf("Error() = %q", minimal.Error())
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		message    string
		suggestion string
		is         error
	}{
		{
			name:       "not found",
			err:        fmt.Errorf("load TK-1: %w", ticket.ErrNotFound),
			message:    "Ticket not found.",
			suggestion: "ticketflow ticket create",
			is:         ticket.ErrNotFound,
		},
		{
			name:       "busy",
			err:        ticket.ErrBusy,
			message:    "Another operation is running on this ticket.",
			suggestion: "lease_ttl",
			is:         ticket.ErrBusy,
		},
		{
			name:       "terminal beats invalid transition",
			err:        &ticket.TransitionError{TicketID: "TK-1", From: ticket.StateCompleted, To: ticket.StatePlanning},
			message:    "The ticket is already finished.",
			suggestion: "new ticket",
			is:         ticket.ErrInvalidTransition,
		},
		{
			name:       "invalid transition",
			err:        &ticket.TransitionError{TicketID: "TK-1", From: ticket.StateTriggered, To: ticket.StatePlanning},
			message:    "The ticket is not in a state that allows this.",
			suggestion: "ticketflow ticket show",
			is:         ticket.ErrInvalidTransition,
		},
		{
			name:       "token secret",
			err:        config.ErrNoTokenSecret,
			message:    "Decision tokens need a signing secret.",
			suggestion: "TICKETFLOW_TOKEN_SECRET",
			is:         config.ErrNoTokenSecret,
		},
		{
			name:       "expired token",
			err:        auth.ErrTokenExpired,
			message:    "The decision token has expired.",
			suggestion: "ticketflow token issue",
			is:         auth.ErrTokenExpired,
		},
		{
			name:       "connection",
			err:        errors.New(`Get "https://acme.atlassian.net": dial tcp: lookup acme.atlassian.net: no such host`),
			message:    "Could not reach an external service.",
			suggestion: "service URL",
			is:         ErrConnectionFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrap(tt.err)
			var cliErr *CLIError
			if !errors.As(wrapped, &cliErr) {
				t.Fatalf("Wrap() = %T, want *CLIError", wrapped)
			}
			if cliErr.Message != tt.message {
				t.Errorf("Message = %q, want %q", cliErr.Message, tt.message)
			}
			if !strings.Contains(cliErr.Suggestion, tt.suggestion) {
				t.Errorf("Suggestion = %q, want containing %q", cliErr.Suggestion, tt.suggestion)
			}
			if !errors.Is(wrapped, tt.is) {
				t.Errorf("errors.Is(wrapped, %v) = false", tt.is)
			}
		})
	}
}

func TestWrap_PassThrough(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
	plain := errors.New("disk full")
	if Wrap(plain) != plain {
		t.Error("unknown errors should pass through")
	}
	usage := Usage("ticket id is required")
	if Wrap(usage) != usage {
		t.Error("CLIErrors should pass through")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{Usage("bad"), ExitUsage},
		{Wrap(ticket.ErrNotFound), ExitNotFound},
		{ticket.ErrBusy, ExitConflict},
		{&ticket.TransitionError{From: ticket.StateTriggered, To: ticket.StateCompleted}, ExitConflict},
		{auth.ErrInvalidToken, ExitAuth},
		{errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  string
		want bool
	}{
		{"dial tcp 127.0.0.1:443: connect: connection refused", true},
		{"x509: certificate signed by unknown authority", true},
		{"context deadline exceeded", true},
		{"ticket not found", false},
	}
	for _, tt := range tests {
		if got := IsConnectionError(errors.New(tt.err)); got != tt.want {
			t.Errorf("IsConnectionError(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
