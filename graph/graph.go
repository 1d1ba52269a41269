package graph

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/randalmurphal/llmkit/model"

	"github.com/randalmurphal/ticketflow/message"
	"github.com/randalmurphal/ticketflow/notify"
)

// Graph is a named, checkpointed, resumable pipeline of agent steps.
//
// Every domain outcome, including failures, is reported in Result. The error
// return is reserved for checkpoint store failures, after which the caller
// should re-attempt the whole call or fail the workflow.
type Graph interface {
	ID() string
	Execute(ctx context.Context, in message.Message) (Result, error)
	Resume(ctx context.Context, ticketID string, in message.Message) (Result, error)
}

// Result is the outcome of Execute or Resume.
type Result struct {
	Success bool
	State   string
	Output  message.Message
	Err     error
}

// Suspended reports whether the graph stopped to wait for an external
// decision. A suspended result is neither a success nor a failure.
func (r Result) Suspended() bool {
	return !r.Success && r.Err == nil
}

// Result states shared by every graph.
const (
	StateInvalidInput = "invalid_input"
	StateResumeFailed = "resume_failed"
	StateCancelled    = "cancelled"
	StateFailed       = "failed"
)

// ResumeTable maps each resumable checkpoint id to the message kinds that
// may resume it.
type ResumeTable map[string][]message.Kind

// Accepts reports whether state can be resumed with kind.
func (t ResumeTable) Accepts(state string, kind message.Kind) bool {
	return slices.Contains(t[state], kind)
}

// States returns the resumable checkpoint ids, sorted.
func (t ResumeTable) States() []string {
	states := make([]string, 0, len(t))
	for s := range t {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// Describer is implemented by graphs that publish their message contracts.
type Describer interface {
	AcceptedInputs() []message.Kind
	ResumeTable() ResumeTable
}

// =============================================================================
// Options
// =============================================================================

type options struct {
	logger   *slog.Logger
	notifier notify.Notifier
	now      func() time.Time
	model    model.ModelName
}

// Option configures a graph.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNotifier sets where workflow events are sent. Without one, a notifier
// carried by the call's context is used, if any.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClock sets the time source for recorded timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithModel overrides the model every step of the graph runs on.
func WithModel(m model.ModelName) Option {
	return func(o *options) { o.model = m }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}
