package simpledb

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/go-mizu/simpledb"

var (
	attrSystem    = attribute.Key("db.system")
	attrStatement = attribute.Key("db.statement")
	attrOperation = attribute.Key("db.operation")
	attrSession   = attribute.Key("simpledb.session")
)

// startSpan opens an internal span for one database operation.
func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attrOperation.String(op))
	return otel.Tracer(tracerName).Start(ctx, "simpledb."+op,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// endSpan records err, if any, and ends the span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
