package documents

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FACorreiaa/bungmap/internal/rpc"
	"github.com/FACorreiaa/bungmap/pkg/interceptors"
	"github.com/FACorreiaa/bungmap/pkg/observability"
)

type (
	request  = connect.Request[structpb.Struct]
	response = connect.Response[structpb.Struct]
)

// Handler implements the DocumentService RPCs.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

func NewHandler(svc Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// Routes mounts the service procedures under their common path prefix.
func (h *Handler) Routes(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(rpc.DocumentServiceListProcedure, connect.NewUnaryHandler(rpc.DocumentServiceListProcedure, h.List, opts...))
	mux.Handle(rpc.DocumentServiceCreateProcedure, connect.NewUnaryHandler(rpc.DocumentServiceCreateProcedure, h.Create, opts...))
	mux.Handle(rpc.DocumentServiceUpdateProcedure, connect.NewUnaryHandler(rpc.DocumentServiceUpdateProcedure, h.Update, opts...))
	mux.Handle(rpc.DocumentServiceDeleteProcedure, connect.NewUnaryHandler(rpc.DocumentServiceDeleteProcedure, h.Delete, opts...))
	mux.Handle(rpc.DocumentServiceQueryProcedure, connect.NewUnaryHandler(rpc.DocumentServiceQueryProcedure, h.Query, opts...))
	return "/" + rpc.DocumentServiceName + "/", mux
}

func reply(v any) (*response, error) {
	msg, err := rpc.Encode(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func (h *Handler) List(ctx context.Context, req *request) (*response, error) {
	var in rpc.ListRequest
	if err := rpc.Decode(req.Msg, &in); err != nil {
		return nil, rpc.ToConnectError(err)
	}

	docs, err := h.svc.List(ctx, interceptors.IdentityFromContext(ctx), in.Collection)
	if err != nil {
		return nil, rpc.ToConnectError(err)
	}
	return reply(rpc.DocumentsResponse{Documents: docs})
}

func (h *Handler) Query(ctx context.Context, req *request) (*response, error) {
	var in rpc.QueryRequest
	if err := rpc.Decode(req.Msg, &in); err != nil {
		return nil, rpc.ToConnectError(err)
	}

	docs, err := h.svc.Query(ctx, interceptors.IdentityFromContext(ctx), in.Collection, in.Filter)
	if err != nil {
		return nil, rpc.ToConnectError(err)
	}
	return reply(rpc.DocumentsResponse{Documents: docs})
}

func (h *Handler) Create(ctx context.Context, req *request) (*response, error) {
	var in rpc.CreateRequest
	if err := rpc.Decode(req.Msg, &in); err != nil {
		return nil, rpc.ToConnectError(err)
	}

	id, err := h.svc.Create(ctx, interceptors.IdentityFromContext(ctx), in.Collection, in.Fields)
	if err != nil {
		return nil, rpc.ToConnectError(err)
	}
	observability.DocumentWrites.WithLabelValues(in.Collection, "create").Inc()
	return reply(rpc.CreateResponse{ID: id})
}

func (h *Handler) Update(ctx context.Context, req *request) (*response, error) {
	var in rpc.UpdateRequest
	if err := rpc.Decode(req.Msg, &in); err != nil {
		return nil, rpc.ToConnectError(err)
	}

	if err := h.svc.Update(ctx, interceptors.IdentityFromContext(ctx), in.Collection, in.ID, in.Patch); err != nil {
		return nil, rpc.ToConnectError(err)
	}
	observability.DocumentWrites.WithLabelValues(in.Collection, "update").Inc()
	return reply(rpc.Empty{})
}

func (h *Handler) Delete(ctx context.Context, req *request) (*response, error) {
	var in rpc.DeleteRequest
	if err := rpc.Decode(req.Msg, &in); err != nil {
		return nil, rpc.ToConnectError(err)
	}

	if err := h.svc.Delete(ctx, interceptors.IdentityFromContext(ctx), in.Collection, in.ID); err != nil {
		return nil, rpc.ToConnectError(err)
	}
	observability.DocumentWrites.WithLabelValues(in.Collection, "delete").Inc()
	return reply(rpc.Empty{})
}
