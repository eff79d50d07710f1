package interceptors

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"connectrpc.com/connect"
	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/bungmap/internal/types"
)

type contextKey string

// UserIDKey holds the authenticated user id.
const UserIDKey contextKey = "user_id"

const identityKey contextKey = "identity"

// Access token claim names.
const (
	ClaimEmail   = "email"
	ClaimName    = "name"
	ClaimPicture = "picture"
	ClaimAdmin   = "admin"
)

// NewAuthInterceptor validates bearer tokens signed with jwtSecret. Calls
// without a token pass through anonymously and are judged by the service;
// calls with an invalid token are rejected. Public procedures skip the check.
func NewAuthInterceptor(jwtSecret []byte, publicProcedures ...string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient || slices.Contains(publicProcedures, req.Spec().Procedure) {
				return next(ctx, req)
			}

			header := req.Header().Get("Authorization")
			if header == "" {
				return next(ctx, req)
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("malformed authorization header"))
			}

			identity, err := ParseAccessToken(jwtSecret, token)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}
			return next(WithIdentity(ctx, identity), req)
		}
	}
}

// ParseAccessToken verifies an HS256 access token and returns its subject.
func ParseAccessToken(secret []byte, token string) (*types.Identity, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token signing secret not configured: %w", types.ErrUnauthenticated)
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %v: %w", err, types.ErrUnauthenticated)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("access token has no subject: %w", types.ErrUnauthenticated)
	}
	identity := &types.Identity{ID: subject}
	identity.Email, _ = claims[ClaimEmail].(string)
	identity.DisplayName, _ = claims[ClaimName].(string)
	identity.AvatarURL, _ = claims[ClaimPicture].(string)
	identity.IsAdmin, _ = claims[ClaimAdmin].(bool)
	return identity, nil
}

// WithIdentity stores the caller on ctx.
func WithIdentity(ctx context.Context, identity *types.Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey, identity)
	return context.WithValue(ctx, UserIDKey, identity.ID)
}

// IdentityFromContext returns the caller, nil when anonymous.
func IdentityFromContext(ctx context.Context) *types.Identity {
	identity, _ := ctx.Value(identityKey).(*types.Identity)
	return identity
}

// GetUserIDFromContext returns the authenticated user id.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}
