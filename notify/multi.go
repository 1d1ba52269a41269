package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// MultiNotifier delivers each event to every notifier concurrently and
// waits for all of them. Failures are logged and joined.
type MultiNotifier struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewMultiNotifier creates a MultiNotifier. Nil entries are dropped.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{logger: slog.Default()}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// WithLogger sets where delivery failures are logged.
func (m *MultiNotifier) WithLogger(l *slog.Logger) *MultiNotifier {
	if l != nil {
		m.logger = l
	}
	return m
}

// Len returns the number of notifiers.
func (m *MultiNotifier) Len() int { return len(m.notifiers) }

// Notify implements Notifier.
func (m *MultiNotifier) Notify(ctx context.Context, event Event) error {
	errs := make([]error, len(m.notifiers))
	var wg sync.WaitGroup
	for i, n := range m.notifiers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := n.Notify(ctx, event); err != nil {
				m.logger.WarnContext(ctx, "notifier failed",
					"error", err, "event", event.Type, "ticket_id", event.TicketID)
				errs[i] = err
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
