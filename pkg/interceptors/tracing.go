package interceptors

import (
	"context"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NewTracingInterceptor opens a server span per RPC.
func NewTracingInterceptor(tracer trace.Tracer) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			kind := trace.SpanKindServer
			if req.Spec().IsClient {
				kind = trace.SpanKindClient
			}
			ctx, span := tracer.Start(ctx, req.Spec().Procedure, trace.WithSpanKind(kind), trace.WithAttributes(
				attribute.String("rpc.system", "connect_rpc"),
				attribute.String("rpc.method", req.Spec().Procedure),
			))
			defer span.End()

			resp, err := next(ctx, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, connect.CodeOf(err).String())
			}
			return resp, err
		}
	}
}
