package notify

import (
	"context"
	"log/slog"
	"sort"
)

// LogNotifier writes events to a slog logger. Severity picks the level;
// metadata is flattened into meta.<key> attributes.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger means slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	msg := event.Message
	if msg == "" {
		msg = string(event.Type)
	}
	n.logger.LogAttrs(ctx, levelFor(event.Severity), msg, eventAttrs(event)...)
	return nil
}

func levelFor(severity string) slog.Level {
	switch severity {
	case SeverityError:
		return slog.LevelError
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func eventAttrs(event Event) []slog.Attr {
	attrs := []slog.Attr{slog.String("event", string(event.Type))}
	add := func(key, value string) {
		if value != "" {
			attrs = append(attrs, slog.String(key, value))
		}
	}
	add("ticket_id", event.TicketID)
	add("graph", event.GraphID)
	add("state", event.State)

	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any("meta."+k, event.Metadata[k]))
	}
	return attrs
}
