package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_WithoutEndpointUsesNoop(t *testing.T) {
	shutdown, err := Init("", "hotel-reservation")
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	End(span, nil)

	assert.NoError(t, shutdown(context.Background()))
}

func TestStartEnd_RecordsError(t *testing.T) {
	original := otel.GetTracerProvider()
	defer otel.SetTracerProvider(original)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)

	_, ok := Start(context.Background(), "BookingService.CreateBooking")
	End(ok, nil)
	_, failed := Start(context.Background(), "ReservationService.Cancel")
	End(failed, errors.New("invalid transition"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "BookingService.CreateBooking", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "invalid transition", spans[1].Status().Description)
}

func TestNewTracerProvider(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := newTracerProvider(exp, "hotel-reservation")
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "span")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "span", spans[0].Name)
	require.NoError(t, tp.Shutdown(context.Background()))
}
