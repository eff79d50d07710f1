package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FACorreiaa/bungmap/internal/rpc"
	"github.com/FACorreiaa/bungmap/internal/types"
)

var _ Store = (*ConnectStore)(nil)

type unaryClient = connect.Client[structpb.Struct, structpb.Struct]

// ConnectStore talks to the document service over connect RPC.
type ConnectStore struct {
	logger *slog.Logger
	list   *unaryClient
	create *unaryClient
	update *unaryClient
	delete *unaryClient
	query  *unaryClient
}

// NewConnectStore builds a client for the document service at baseURL. The
// bearer token is read from tokens on every call.
func NewConnectStore(httpClient connect.HTTPClient, baseURL string, tokens TokenSource, logger *slog.Logger, opts ...connect.ClientOption) *ConnectStore {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithInterceptors(NewBearerInterceptor(tokens))}, opts...)
	newClient := func(procedure string) *unaryClient {
		return connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+procedure, opts...)
	}
	return &ConnectStore{
		logger: logger,
		list:   newClient(rpc.DocumentServiceListProcedure),
		create: newClient(rpc.DocumentServiceCreateProcedure),
		update: newClient(rpc.DocumentServiceUpdateProcedure),
		delete: newClient(rpc.DocumentServiceDeleteProcedure),
		query:  newClient(rpc.DocumentServiceQueryProcedure),
	}
}

// NewBearerInterceptor attaches the current token as an Authorization header.
func NewBearerInterceptor(tokens TokenSource) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient && tokens != nil {
				if token := tokens.Token(); token != "" {
					req.Header().Set("Authorization", "Bearer "+token)
				}
			}
			return next(ctx, req)
		}
	}
}

func (s *ConnectStore) call(ctx context.Context, client *unaryClient, method, collection string, in, out any) error {
	ctx, span := otel.Tracer("ConnectStore").Start(ctx, method, trace.WithAttributes(
		attribute.String("collection", collection),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", method), slog.String("collection", collection))
	l.DebugContext(ctx, "Calling document service")

	msg, err := rpc.Encode(in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return fmt.Errorf("%w: %w", types.ErrUnknown, err)
	}
	resp, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		err = rpc.FromConnectError(err)
		l.ErrorContext(ctx, "Document service call failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")
		return err
	}
	if out != nil {
		if err := rpc.Decode(resp.Msg, out); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode failed")
			return fmt.Errorf("%w: %w", types.ErrUnknown, err)
		}
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *ConnectStore) List(ctx context.Context, collection string) ([]types.Document, error) {
	var out rpc.DocumentsResponse
	if err := s.call(ctx, s.list, "List", collection, rpc.ListRequest{Collection: collection}, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (s *ConnectStore) Create(ctx context.Context, collection string, fields types.Fields) (string, error) {
	var out rpc.CreateResponse
	if err := s.call(ctx, s.create, "Create", collection, rpc.CreateRequest{Collection: collection, Fields: fields}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("create returned no id: %w", types.ErrUnknown)
	}
	return out.ID, nil
}

func (s *ConnectStore) Update(ctx context.Context, collection, id string, patch types.Fields) error {
	return s.call(ctx, s.update, "Update", collection, rpc.UpdateRequest{Collection: collection, ID: id, Patch: patch}, nil)
}

func (s *ConnectStore) Delete(ctx context.Context, collection, id string) error {
	return s.call(ctx, s.delete, "Delete", collection, rpc.DeleteRequest{Collection: collection, ID: id}, nil)
}

func (s *ConnectStore) Query(ctx context.Context, collection string, filter types.Filter) ([]types.Document, error) {
	var out rpc.DocumentsResponse
	if err := s.call(ctx, s.query, "Query", collection, rpc.QueryRequest{Collection: collection, Filter: filter}, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

