// Package tracing instruments the proxy pipeline with OpenTelemetry spans:
// one span per pass carrying the pass name, pipeline kind, and whether it
// short-circuited the remaining passes. Pass spans start from the
// request's context; WrapPipeline can open a per-invocation span, but
// Server.Web/WS do not call it.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/relaygate/relaygate/internal/proxy"
)

// Tracer wraps an otel trace.Tracer scoped to the pipeline.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer builds a Tracer from the given otel TracerProvider.
func NewTracer(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer("github.com/relaygate/relaygate/internal/proxy")}
}

// WrapStage starts a child span around one pass invocation. It is applied
// to every pass via Server.Instrument, the same hook internal/metrics
// uses, so tracing and metrics compose without either depending on the
// other.
func (t *Tracer) WrapStage(pipelineKind, passName string, stage proxy.Stage) proxy.Stage {
	if t == nil {
		return stage
	}
	return func(ctx *proxy.Context) bool {
		reqCtx := context.Background()
		if ctx != nil && ctx.Req != nil {
			reqCtx = ctx.Req.Context()
		}
		_, span := t.tracer.Start(reqCtx, "proxy.pass/"+passName,
			trace.WithAttributes(
				attribute.String("proxy.pipeline", pipelineKind),
				attribute.String("proxy.pass", passName),
			),
		)
		defer span.End()

		shortCircuited := stage(ctx)
		span.SetAttributes(attribute.Bool("proxy.short_circuited", shortCircuited))
		span.SetStatus(codes.Ok, "")
		return shortCircuited
	}
}

// WrapPipeline starts a top-level span for one pipeline invocation. It
// returns the span's context and a function to end the span. Server.Web/WS
// do not call it, and pass spans from WrapStage start from the request's
// own context, so they are children of this span only if the caller puts
// the returned context on the request.
func (t *Tracer) WrapPipeline(ctx context.Context, kind string) (context.Context, func()) {
	if t == nil {
		return ctx, func() {}
	}
	spanCtx, span := t.tracer.Start(ctx, "proxy.pipeline/"+kind)
	return spanCtx, span.End
}
