package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span represents a logical unit of work tied to a request trace.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
}

// StartSpan derives a child span from the provided context, enriching the logger
// with tracing metadata. It returns the derived context and the span handle.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, logger := ensureTraceID(ctx, FromContext(ctx))

	parentSpanID := SpanIDFromContext(ctx)
	spanID := uuid.NewString()

	attrs := []any{
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	}
	if parentSpanID != "" {
		attrs = append(attrs, slog.String("parent_span_id", parentSpanID))
	}
	logger = logger.With(attrs...)

	ctx = WithLogger(ctx, logger)
	ctx = WithSpanID(ctx, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

func ensureTraceID(ctx context.Context, logger *slog.Logger) (context.Context, *slog.Logger) {
	if TraceIDFromContext(ctx) != "" {
		return ctx, logger
	}
	traceID := uuid.NewString()
	return WithTraceID(ctx, traceID), logger.With(slog.String("trace_id", traceID))
}

// End finalizes the span and emits a completion log entry.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.logger.Info("span completed", slog.Duration("duration", time.Since(s.start)))
}
