package liteorm

import (
	"context"
	"database/sql/driver"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jordanwade90/liteorm"

func (s *Session) startSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sqlite"),
			attribute.String("db.statement", query),
			attribute.String("liteorm.session", s.id.String()),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// traceCommand writes a command and its arguments to the debug log when
// tracing is enabled.
func (s *Session) traceCommand(ctx context.Context, query string, args []any) {
	if !s.opts.cfg.Trace {
		return
	}
	s.logger.DebugContext(ctx, "liteorm command",
		"session", s.id.String(),
		"sql", query,
		"args", logArgs(args),
	)
}

// logArgs dereferences field pointers and Valuers so the log shows values
// rather than addresses.
func logArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := driver.DefaultParameterConverter.ConvertValue(a)
		if err != nil {
			out[i] = a
			continue
		}
		out[i] = v
	}
	return out
}
