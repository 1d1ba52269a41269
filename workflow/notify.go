package workflow

import (
	"context"
	"fmt"

	"github.com/randalmurphal/ticketflow/notify"
	"github.com/randalmurphal/ticketflow/ticket"
)

// publish sends one ticket_state_changed event per recorded state change
// and clears the ticket's events. Delivery errors never fail the operation.
func (c *Coordinator) publish(ctx context.Context, t *ticket.Ticket) {
	events := t.Events()
	t.ClearEvents()
	if c.notifier == nil {
		return
	}

	for _, ev := range events {
		severity := notify.SeverityInfo
		if ev.To == ticket.StateFailed {
			severity = notify.SeverityError
		}
		err := c.notifier.Notify(context.WithoutCancel(ctx), notify.Event{
			Type:      notify.EventTicketStateChanged,
			TicketID:  ev.TicketID,
			State:     string(ev.To),
			Message:   stateMessage(ev),
			Severity:  severity,
			Timestamp: ev.At,
			Metadata:  buildMetadata(t, ev),
		})
		if err != nil {
			c.logger.Warn("notification failed", "ticket_id", ev.TicketID, "error", err)
		}
	}
}

func stateMessage(ev ticket.StateChange) string {
	if ev.Reason == "" {
		return fmt.Sprintf("%s → %s", ev.From, ev.To)
	}
	return fmt.Sprintf("%s → %s: %s", ev.From, ev.To, ev.Reason)
}

// buildMetadata builds notification metadata from the ticket.
func buildMetadata(t *ticket.Ticket, ev ticket.StateChange) map[string]any {
	meta := map[string]any{"from": string(ev.From)}

	if t.TenantID() != "" {
		meta["tenant_id"] = t.TenantID()
	}
	if t.PlanBranch() != "" {
		meta["plan_branch"] = t.PlanBranch()
	}
	if t.PRURL() != "" {
		meta["pr_url"] = t.PRURL()
	}
	if t.RetryCount() > 0 {
		meta["plan_rejections"] = t.RetryCount()
	}
	if t.LastError() != "" {
		meta["last_error"] = t.LastError()
	}
	return meta
}
