package database

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/lifedash-auth/pkg/database"

// QueryTracer wraps statements in client spans and warns about slow queries.
// A zero threshold or nil logger disables slow query logging.
type QueryTracer struct {
	threshold time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewQueryTracer creates a QueryTracer.
func NewQueryTracer(slowThreshold time.Duration, l *slog.Logger) *QueryTracer {
	return &QueryTracer{threshold: slowThreshold, logger: l, now: time.Now}
}

// Start opens a span for operation. Call the returned function with the
// operation's error when it completes:
//
//	ctx, end := t.Start(ctx, "GetUserByEmail", q)
//	defer func() { end(err) }()
func (t *QueryTracer) Start(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := t.clock()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if t == nil || t.threshold <= 0 || t.logger == nil {
			return
		}
		elapsed := t.clock().Sub(start)
		if elapsed < t.threshold {
			return
		}
		attrs := []any{
			slog.String("operation", operation),
			slog.String("statement", statement),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		t.logger.WarnContext(ctx, "slow query detected", attrs...)
	}
}

func (t *QueryTracer) clock() time.Time {
	if t == nil || t.now == nil {
		return time.Now()
	}
	return t.now()
}
