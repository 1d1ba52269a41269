// Package notify delivers workflow events to people.
//
// Graphs and the workflow coordinator emit an Event when a ticket suspends
// for approval, gets approved, exhausts a retry ceiling, is skipped, fails,
// opens a pull request, or finishes review. Delivery errors are logged by
// callers and never fail the workflow.
//
// Implementations:
//   - SlackNotifier: Slack incoming webhooks
//   - WebhookNotifier: generic JSON webhooks, optionally HMAC-signed
//   - LogNotifier: slog output
//   - MultiNotifier: concurrent fan-out
//
// Example usage:
//
//	notifier := notify.NewMultiNotifier(
//	    notify.NewLogNotifier(logger),
//	    notify.NewSlackNotifier(url, notify.WithSlackChannel("#plans")),
//	)
package notify
