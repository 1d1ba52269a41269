package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/ticketflow/message"
)

// =============================================================================
// Middleware
// =============================================================================

// Middleware decorates an Executor.
type Middleware func(Executor) Executor

// Chain applies middleware so that the first one listed is the outermost.
func Chain(exec Executor, mws ...Middleware) Executor {
	for i := len(mws) - 1; i >= 0; i-- {
		exec = mws[i](exec)
	}
	return exec
}

// WithLogging logs each step's duration and outcome.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, step StepType, in message.Message, gc Context) (message.Message, error) {
			start := time.Now()
			out, err := next.Execute(ctx, step, in, gc)
			attrs := []any{
				"ticket_id", gc.TicketID,
				"graph", gc.GraphID,
				"step", string(step),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.WarnContext(ctx, "agent step failed", append(attrs, "error", err)...)
				return out, err
			}
			logger.DebugContext(ctx, "agent step completed", append(attrs, "output", string(message.KindOf(out)))...)
			return out, nil
		})
	}
}

var tracer = otel.Tracer("ticketflow.agent")

// WithTracing wraps each step in a span. A nil tracer uses the global provider.
func WithTracing(t trace.Tracer) Middleware {
	if t == nil {
		t = tracer
	}
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, step StepType, in message.Message, gc Context) (message.Message, error) {
			ctx, span := t.Start(ctx, "agent."+string(step),
				trace.WithAttributes(
					attribute.String("ticket.id", gc.TicketID),
					attribute.String("graph.id", gc.GraphID),
					attribute.String("message.kind", string(message.KindOf(in))),
					attribute.Int("plan.retry_count", gc.PlanRetryCount),
					attribute.Int("review.retry_count", gc.ReviewRetryCount),
				))
			defer span.End()

			out, err := next.Execute(ctx, step, in, gc)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return out, err
			}
			span.SetAttributes(attribute.String("output.kind", string(message.KindOf(out))))
			return out, nil
		})
	}
}

var (
	stepTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketflow_agent_step_total",
		Help: "Agent step executions by step and result",
	}, []string{"step", "result"})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ticketflow_agent_step_duration_seconds",
		Help:    "Agent step duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~45min
	}, []string{"step"})
)

// WithMetrics records step counts and latency.
func WithMetrics() Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, step StepType, in message.Message, gc Context) (message.Message, error) {
			start := time.Now()
			out, err := next.Execute(ctx, step, in, gc)
			stepDuration.WithLabelValues(string(step)).Observe(time.Since(start).Seconds())
			result := "success"
			if err != nil {
				result = "error"
			}
			stepTotal.WithLabelValues(string(step), result).Inc()
			return out, err
		})
	}
}

// Instrument applies the standard logging, tracing, and metrics middleware.
func Instrument(exec Executor, logger *slog.Logger) Executor {
	return Chain(exec, WithTracing(nil), WithMetrics(), WithLogging(logger))
}
