package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/example/class-booking/internal/application"
)

type admitterStub struct {
	adm application.Admission
	err error
}

func (a admitterStub) TryAdmit(context.Context, application.Reservation) (application.Admission, error) {
	return a.adm, a.err
}

func (a admitterStub) Capacity() int { return 10 }

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	rec := tracetest.NewSpanRecorder()
	return rec, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
}

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestAdmitterRecordsOutcome(t *testing.T) {
	t.Parallel()

	rec, tp := newRecorder()
	admitter := WrapAdmitter(admitterStub{adm: application.Admission{Admitted: true, Remaining: 4}}, tp)

	if admitter.Capacity() != 10 {
		t.Fatalf("expected capacity to pass through")
	}
	if _, err := admitter.TryAdmit(context.Background(), application.Reservation{PoolKey: "2024-06-01", Date: "2024-06-01"}); err != nil {
		t.Fatalf("TryAdmit returned error: %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if spans[0].Name() != "CapacityGuard.TryAdmit" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}
	if v, ok := attr(spans[0], "booking.remaining"); !ok || v.AsInt64() != 4 {
		t.Fatalf("expected remaining attribute, got %v", v)
	}
	if v, ok := attr(spans[0], "booking.pool_key"); !ok || v.AsString() != "2024-06-01" {
		t.Fatalf("expected pool key attribute, got %v", v)
	}
}

func TestAdmitterMarksErrors(t *testing.T) {
	t.Parallel()

	rec, tp := newRecorder()
	failure := errors.Join(application.ErrServiceUnavailable, errors.New("store down"))
	admitter := WrapAdmitter(admitterStub{err: failure}, tp)

	if _, err := admitter.TryAdmit(context.Background(), application.Reservation{PoolKey: "2024-06-01"}); !errors.Is(err, application.ErrServiceUnavailable) {
		t.Fatalf("expected error to pass through, got %v", err)
	}
	span := rec.Ended()[0]
	if span.Status().Code != codes.Error || span.Status().Description != "service_unavailable" {
		t.Fatalf("unexpected status %+v", span.Status())
	}
}

func TestMiddlewareRecordsServerSpan(t *testing.T) {
	t.Parallel()

	rec, tp := newRecorder()
	handler := Middleware(tp)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/reservations", nil))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if spans[0].Name() != "POST /api/reservations" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}
	if v, _ := attr(spans[0], "http.response.status_code"); v.AsInt64() != 503 {
		t.Fatalf("expected 503 status attribute, got %v", v)
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected error status for 5xx")
	}
}

func TestShutdownToleratesNil(t *testing.T) {
	t.Parallel()

	if err := Shutdown(context.Background(), nil); err != nil {
		t.Fatalf("Shutdown(nil) returned error: %v", err)
	}
	_, tp := newRecorder()
	if err := Shutdown(context.Background(), tp); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}
