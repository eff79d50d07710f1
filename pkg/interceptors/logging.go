package interceptors

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// NewLoggingInterceptor logs one line per RPC. Caller mistakes (bad input,
// missing documents, denied writes) are logged at warn, everything else that
// fails at error.
func NewLoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			attrs := []slog.Attr{
				slog.String("procedure", req.Spec().Procedure),
				slog.String("peer", req.Peer().Addr),
				slog.Int64("duration_ms", elapsed.Milliseconds()),
				slog.Int("request_size_bytes", messageSize(req.Any())),
			}
			if collection := collectionOf(req.Any()); collection != "" {
				attrs = append(attrs, slog.String("collection", collection))
			}
			if requestID, ok := RequestIDFromContext(ctx); ok {
				attrs = append(attrs, slog.String("request_id", requestID))
			}
			if userID, ok := GetUserIDFromContext(ctx); ok {
				attrs = append(attrs, slog.String("user_id", userID))
			}

			if err == nil {
				if resp != nil {
					attrs = append(attrs, slog.Int("response_size_bytes", messageSize(resp.Any())))
				}
				logger.LogAttrs(ctx, slog.LevelInfo, "RPC completed", attrs...)
				return resp, nil
			}

			code := connect.CodeOf(err)
			attrs = append(attrs, slog.String("code", code.String()), slog.Any("error", err))
			level := slog.LevelError
			switch code {
			case connect.CodeInvalidArgument, connect.CodeNotFound, connect.CodeAlreadyExists,
				connect.CodePermissionDenied, connect.CodeUnauthenticated, connect.CodeResourceExhausted:
				level = slog.LevelWarn
			}
			logger.LogAttrs(ctx, level, "RPC failed", attrs...)
			return resp, err
		}
	}
}

func messageSize(v any) int {
	if msg, ok := v.(proto.Message); ok && msg != nil {
		return proto.Size(msg)
	}
	return 0
}

// collectionOf reads the "collection" field of document requests.
func collectionOf(v any) string {
	msg, ok := v.(*structpb.Struct)
	if !ok || msg == nil {
		return ""
	}
	return msg.GetFields()["collection"].GetStringValue()
}
