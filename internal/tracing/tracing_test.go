package tracing

import (
	"context"
	"net/http/httptest"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/relaygate/relaygate/internal/proxy"
)

func newTestTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewTracer(tp), recorder
}

func TestWrapStageProducesChildSpan(t *testing.T) {
	tr, recorder := newTestTracer(t)

	req := httptest.NewRequest("GET", "/x", nil)
	ctx := &proxy.Context{Req: req}

	wrapped := tr.WrapStage("web", "stream", func(*proxy.Context) bool { return true })
	if !wrapped(ctx) {
		t.Fatal("expected wrapped stage to return true")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d ended spans, want 1", len(spans))
	}
	if got, want := spans[0].Name(), "proxy.pass/stream"; got != want {
		t.Errorf("span name = %q, want %q", got, want)
	}
}

func TestWrapPipelineStartsAndEndsSpan(t *testing.T) {
	tr, recorder := newTestTracer(t)

	_, end := tr.WrapPipeline(context.Background(), "web")
	end()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d ended spans, want 1", len(spans))
	}
	if got, want := spans[0].Name(), "proxy.pipeline/web"; got != want {
		t.Errorf("span name = %q, want %q", got, want)
	}
}

func TestNilTracerWrapStageIsPassthrough(t *testing.T) {
	var tr *Tracer
	stage := func(*proxy.Context) bool { return false }
	wrapped := tr.WrapStage("web", "deleteLength", stage)
	if wrapped(nil) {
		t.Fatal("expected underlying stage's return value")
	}
}
