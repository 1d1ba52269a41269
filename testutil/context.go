package testutil

import (
	"context"
	"testing"
)

// TestContext returns a context canceled when the test ends.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	return t.Context()
}

// CancelableContext is TestContext with a cancel func, for tests that
// cancel a graph run midway.
func CancelableContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	t.Cleanup(cancel)
	return ctx, cancel
}
