package orchestration

import (
	"context"

	"github.com/lunavoice/luna/core/events"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// errorReporter is the single entry point components use to report
// failures. It records the error on the ambient span, logs it, and
// publishes it on the bus; the orchestrator's error subscriber owns all
// user-visible consequences.
type errorReporter struct {
	bus *Bus
}

func newErrorReporter(bus *Bus) *errorReporter {
	return &errorReporter{bus: bus}
}

func (r *errorReporter) Report(ctx context.Context, source string, err error) {
	if err == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	logger.ErrorContext(ctx, "component reported error",
		"source", source,
		"error", err,
	)

	if r.bus != nil {
		r.bus.Publish(events.NewErrorReported(source, err))
	}
}
