package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FACorreiaa/bungmap/internal/domain/auth/presenter"
	"github.com/FACorreiaa/bungmap/internal/domain/auth/service"
	"github.com/FACorreiaa/bungmap/internal/rpc"
	"github.com/FACorreiaa/bungmap/internal/types"
	"github.com/FACorreiaa/bungmap/pkg/interceptors"
)

type (
	request  = connect.Request[structpb.Struct]
	response = connect.Response[structpb.Struct]
)

// AuthHandler implements the AuthService RPCs.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
	}
}

// PublicProcedures are reachable without a bearer token.
func PublicProcedures() []string {
	return []string{
		rpc.AuthServiceSignUpProcedure,
		rpc.AuthServiceSignInProcedure,
	}
}

// Routes mounts the service procedures under their common path prefix.
func (h *AuthHandler) Routes(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(rpc.AuthServiceSignUpProcedure, connect.NewUnaryHandler(rpc.AuthServiceSignUpProcedure, h.SignUp, opts...))
	mux.Handle(rpc.AuthServiceSignInProcedure, connect.NewUnaryHandler(rpc.AuthServiceSignInProcedure, h.SignIn, opts...))
	mux.Handle(rpc.AuthServiceSessionProcedure, connect.NewUnaryHandler(rpc.AuthServiceSessionProcedure, h.Session, opts...))
	return "/" + rpc.AuthServiceName + "/", mux
}

func reply(session *service.Session) (*response, error) {
	msg, err := rpc.Encode(presenter.SessionResponse(session))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func (h *AuthHandler) SignUp(ctx context.Context, req *request) (*response, error) {
	var in rpc.SignUpRequest
	if err := rpc.Decode(req.Msg, &in); err != nil {
		return nil, rpc.ToConnectError(err)
	}
	if in.Email == "" || in.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("email and password are required"))
	}

	session, err := h.svc.SignUp(ctx, service.SignUpParams{
		Email:       in.Email,
		Password:    in.Password,
		DisplayName: in.DisplayName,
	})
	if err != nil {
		return nil, rpc.ToConnectError(err)
	}
	return reply(session)
}

func (h *AuthHandler) SignIn(ctx context.Context, req *request) (*response, error) {
	var in rpc.SignInRequest
	if err := rpc.Decode(req.Msg, &in); err != nil {
		return nil, rpc.ToConnectError(err)
	}
	if in.Email == "" || in.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("email and password are required"))
	}

	session, err := h.svc.SignIn(ctx, in.Email, in.Password)
	if err != nil {
		return nil, rpc.ToConnectError(err)
	}
	return reply(session)
}

// Session reissues a token for the caller identified by the bearer token.
func (h *AuthHandler) Session(ctx context.Context, _ *request) (*response, error) {
	userID, ok := interceptors.GetUserIDFromContext(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, types.ErrUnauthenticated)
	}

	session, err := h.svc.Session(ctx, userID)
	if err != nil {
		return nil, rpc.ToConnectError(err)
	}
	return reply(session)
}
