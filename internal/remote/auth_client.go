package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FACorreiaa/bungmap/internal/rpc"
	"github.com/FACorreiaa/bungmap/internal/types"
)

var _ TokenSource = (*AuthClient)(nil)

// AuthClient signs in against the auth service and keeps the issued bearer
// token for the document client.
type AuthClient struct {
	logger  *slog.Logger
	signUp  *unaryClient
	signIn  *unaryClient
	session *unaryClient

	mu    sync.RWMutex
	token string
}

func NewAuthClient(httpClient connect.HTTPClient, baseURL string, logger *slog.Logger, opts ...connect.ClientOption) *AuthClient {
	baseURL = strings.TrimRight(baseURL, "/")
	c := &AuthClient{logger: logger}
	opts = append([]connect.ClientOption{connect.WithInterceptors(NewBearerInterceptor(c))}, opts...)
	newClient := func(procedure string) *unaryClient {
		return connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+procedure, opts...)
	}
	c.signUp = newClient(rpc.AuthServiceSignUpProcedure)
	c.signIn = newClient(rpc.AuthServiceSignInProcedure)
	c.session = newClient(rpc.AuthServiceSessionProcedure)
	return c
}

// Token returns the current bearer token.
func (c *AuthClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken restores a token kept from an earlier run.
func (c *AuthClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SignIn exchanges credentials for a session, registering first when asked.
func (c *AuthClient) SignIn(ctx context.Context, creds types.Credentials) (*types.Identity, error) {
	l := c.logger.With(slog.String("method", "SignIn"), slog.Bool("sign_up", creds.SignUp))
	l.DebugContext(ctx, "Signing in")

	client, req := c.signIn, any(rpc.SignInRequest{Email: creds.Email, Password: creds.Password})
	if creds.SignUp {
		client = c.signUp
		req = rpc.SignUpRequest{Email: creds.Email, Password: creds.Password, DisplayName: creds.DisplayName}
	}
	identity, err := c.exchange(ctx, client, req)
	if err != nil {
		err = rpc.FromConnectError(err)
		l.ErrorContext(ctx, "Sign in failed", slog.Any("error", err))
		return nil, err
	}
	l.InfoContext(ctx, "Signed in", slog.String("user_id", identity.ID))
	return identity, nil
}

// Resume validates the stored token and returns its identity, nil when there
// is no usable token.
func (c *AuthClient) Resume(ctx context.Context) (*types.Identity, error) {
	if c.Token() == "" {
		return nil, nil
	}
	identity, err := c.exchange(ctx, c.session, rpc.Empty{})
	if err != nil {
		c.SetToken("")
		if connect.CodeOf(err) == connect.CodeUnauthenticated {
			return nil, nil
		}
		return nil, rpc.FromConnectError(err)
	}
	return identity, nil
}

// SignOut forgets the token. Tokens are stateless so there is nothing to
// revoke remotely.
func (c *AuthClient) SignOut(_ context.Context) error {
	c.SetToken("")
	return nil
}

func (c *AuthClient) exchange(ctx context.Context, client *unaryClient, req any) (*types.Identity, error) {
	msg, err := rpc.Encode(req)
	if err != nil {
		return nil, err
	}
	resp, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	var out rpc.SessionResponse
	if err := rpc.Decode(resp.Msg, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" || out.Identity == nil {
		return nil, fmt.Errorf("auth service returned an empty session: %w", types.ErrUnauthenticated)
	}
	c.SetToken(out.AccessToken)
	return out.Identity, nil
}
