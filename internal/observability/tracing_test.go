package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	shutdown, err := NewTracerProvider(TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewTracerProvider() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
	if _, ok := otel.GetTracerProvider().(noop.TracerProvider); !ok {
		t.Errorf("global provider replaced while disabled: %T", otel.GetTracerProvider())
	}
}

func TestNewTracerProvider_Stdout(t *testing.T) {
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	var buf bytes.Buffer
	shutdown, err := NewTracerProvider(TracingConfig{
		Enabled:     true,
		Exporter:    "stdout",
		SampleRate:  1,
		ServiceName: "kafeventsink",
		Writer:      &buf,
	})
	if err != nil {
		t.Fatalf("NewTracerProvider() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "insert")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"Name":"insert"`) {
		t.Errorf("exported spans missing insert span: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "kafeventsink") {
		t.Errorf("exported spans missing service name: %s", buf.String())
	}
}

func TestNewTracerProvider_UnknownExporter(t *testing.T) {
	if _, err := NewTracerProvider(TracingConfig{Enabled: true, Exporter: "zipkin"}); err == nil {
		t.Error("expected error for unknown exporter")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}
