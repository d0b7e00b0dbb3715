package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), &Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_HTTP(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := &Config{
		Enabled:     true,
		ServiceName: "vitrin-test",
		Protocol:    "http",
		Insecure:    true,
		SamplerRate: 2.5,
		Environment: "dev",
		Headers:     map[string]string{"x-test": "1"},
	}
	shutdown, err := InitTracing(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestBuilder_WithInMemoryProvider(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	scope := Tracer("vitrin/test").Start(context.Background(), "presence.register")
	scope.WithAttrs(attribute.String("visitor.session_id", "visitor_1_a"))
	scope.Fail(errors.New("history write failed"))
	scope.Fail(nil)
	scope.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "presence.register", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("visitor.session_id", "visitor_1_a"))
	assert.Len(t, spans[0].Events(), 1)
}

func TestSpanScope_NilSafe(t *testing.T) {
	var s *SpanScope
	assert.NotPanics(t, func() {
		s.WithAttrs(attribute.Int("n", 1))
		s.Fail(errors.New("x"))
		s.End()
	})
}
