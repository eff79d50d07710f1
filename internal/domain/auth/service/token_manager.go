package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/bungmap/internal/types"
	"github.com/FACorreiaa/bungmap/pkg/interceptors"
)

var _ TokenManager = (*JWTTokenManager)(nil)

// AccessToken is a signed bearer token.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenManager issues and checks access tokens.
type TokenManager interface {
	GenerateAccessToken(identity *types.Identity) (*AccessToken, error)
	ValidateAccessToken(token string) (*types.Identity, error)
}

// JWTTokenManager signs HS256 tokens carrying the identity as claims.
type JWTTokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret []byte, ttl time.Duration) *JWTTokenManager {
	return &JWTTokenManager{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *JWTTokenManager) GenerateAccessToken(identity *types.Identity) (*AccessToken, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := jwt.MapClaims{
		"sub":                     identity.ID,
		"iat":                     now.Unix(),
		"exp":                     expiresAt.Unix(),
		interceptors.ClaimEmail:   identity.Email,
		interceptors.ClaimName:    identity.DisplayName,
		interceptors.ClaimPicture: identity.AvatarURL,
		interceptors.ClaimAdmin:   identity.IsAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	return &AccessToken{Token: token, ExpiresAt: expiresAt}, nil
}

func (m *JWTTokenManager) ValidateAccessToken(token string) (*types.Identity, error) {
	return interceptors.ParseAccessToken(m.secret, token)
}
