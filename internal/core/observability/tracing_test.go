package observability

import (
	"context"
	"testing"
)

func TestInitTracing_NoEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{ServiceName: "test", ServiceVersion: "dev"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "probe")
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a recording span from the sdk provider")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
