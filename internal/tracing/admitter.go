package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/class-booking/internal/application"
)

// Admitter wraps an application.Admitter with a span per admission attempt.
type Admitter struct {
	next   application.Admitter
	tracer trace.Tracer
}

// WrapAdmitter instruments next. A nil tp selects the global provider.
func WrapAdmitter(next application.Admitter, tp trace.TracerProvider) *Admitter {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Admitter{next: next, tracer: tp.Tracer(InstrumentationName)}
}

// Capacity implements application.Admitter.
func (a *Admitter) Capacity() int {
	return a.next.Capacity()
}

// TryAdmit implements application.Admitter.
func (a *Admitter) TryAdmit(ctx context.Context, rec application.Reservation) (application.Admission, error) {
	ctx, span := a.tracer.Start(ctx, "CapacityGuard.TryAdmit", trace.WithAttributes(
		attribute.String("booking.pool_key", rec.PoolKey),
		attribute.String("booking.date", rec.Date),
		attribute.Int("booking.capacity", a.next.Capacity()),
	))
	defer span.End()

	adm, err := a.next.TryAdmit(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, application.ErrorKind(err))
		return adm, err
	}
	span.SetAttributes(
		attribute.Bool("booking.admitted", adm.Admitted),
		attribute.Int("booking.remaining", adm.Remaining),
	)
	if !adm.Admitted {
		span.SetAttributes(attribute.String("booking.reject_reason", string(adm.Reason)))
	}
	return adm, nil
}
