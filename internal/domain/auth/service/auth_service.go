package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bungmap/internal/domain/auth"
	"github.com/FACorreiaa/bungmap/internal/domain/auth/common"
	"github.com/FACorreiaa/bungmap/internal/domain/auth/repository"
	"github.com/FACorreiaa/bungmap/internal/types"
)

// SignUpParams are the fields of a new password account.
type SignUpParams struct {
	Email       string
	Password    string
	DisplayName string
}

// OAuthProfile is the identity returned by an OAuth provider.
type OAuthProfile struct {
	Provider     string
	UserID       string
	Email        string
	Name         string
	AvatarURL    string
	AccessToken  string
	RefreshToken string
}

// Session is a signed-in identity and the token that proves it.
type Session struct {
	Identity *types.Identity
	Token    *AccessToken
}

// AuthService signs users up and in, and issues access tokens. The admin
// flag on every identity comes from the allow-listed email.
type AuthService struct {
	repo       repository.AuthRepository
	tokens     TokenManager
	adminEmail string
	logger     *slog.Logger
}

func NewAuthService(repo repository.AuthRepository, tokens TokenManager, adminEmail string, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:       repo,
		tokens:     tokens,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

func (s *AuthService) SignUp(ctx context.Context, params SignUpParams) (*Session, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "SignUp")
	defer span.End()

	l := s.logger.With(slog.String("method", "SignUp"))
	l.DebugContext(ctx, "Creating account")

	if err := validateSignUp(params.Email, params.Password); err != nil {
		span.SetStatus(codes.Error, "invalid sign up")
		return nil, err
	}
	hash, err := HashPassword(params.Password)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, params.Email, hash, strings.TrimSpace(params.DisplayName), nil)
	if err != nil {
		if !errors.Is(err, common.ErrUserAlreadyExists) {
			l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "create user failed")
		return nil, fmt.Errorf("sign up: %w", err)
	}

	l.InfoContext(ctx, "Account created", slog.String("user_id", user.ID.String()))
	span.SetStatus(codes.Ok, "")
	return s.issue(ctx, user)
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "SignIn")
	defer span.End()

	l := s.logger.With(slog.String("method", "SignIn"))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			span.SetStatus(codes.Error, "unknown user")
			return nil, common.ErrInvalidCredentials
		}
		l.ErrorContext(ctx, "Failed to look up user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if err := CheckPassword(user.HashedPassword, password); err != nil {
		l.WarnContext(ctx, "Rejected sign in", slog.String("user_id", user.ID.String()))
		span.SetStatus(codes.Error, "bad credentials")
		return nil, err
	}
	if !user.IsActive {
		span.SetStatus(codes.Error, "inactive")
		return nil, common.ErrUserInactive
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		l.WarnContext(ctx, "Failed to record last login", slog.Any("error", err))
	}

	span.SetStatus(codes.Ok, "")
	return s.issue(ctx, user)
}

// Session reissues a token for an already authenticated user.
func (s *AuthService) Session(ctx context.Context, userID string) (*Session, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Session", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	id, err := uuid.Parse(userID)
	if err != nil {
		span.SetStatus(codes.Error, "bad subject")
		return nil, common.ErrInvalidToken
	}
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return nil, common.ErrInvalidToken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("session: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrUserInactive
	}
	span.SetStatus(codes.Ok, "")
	return s.issue(ctx, user)
}

// SignInWithOAuth finds or creates the account linked to a provider profile.
// An existing password account with the same email is linked, not duplicated.
func (s *AuthService) SignInWithOAuth(ctx context.Context, profile OAuthProfile) (*Session, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "SignInWithOAuth", trace.WithAttributes(
		attribute.String("oauth.provider", profile.Provider),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SignInWithOAuth"), slog.String("provider", profile.Provider))

	user, err := s.repo.GetUserByOAuthIdentity(ctx, profile.Provider, profile.UserID)
	if errors.Is(err, common.ErrUserNotFound) {
		user, err = s.repo.GetUserByEmail(ctx, profile.Email)
		if errors.Is(err, common.ErrUserNotFound) {
			var avatar *string
			if profile.AvatarURL != "" {
				avatar = &profile.AvatarURL
			}
			user, err = s.repo.CreateUser(ctx, profile.Email, "", profile.Name, avatar)
		}
	}
	if err != nil {
		l.ErrorContext(ctx, "Failed to resolve oauth user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return nil, fmt.Errorf("oauth sign in: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrUserInactive
	}

	var refresh *string
	if profile.RefreshToken != "" {
		refresh = &profile.RefreshToken
	}
	if err := s.repo.CreateOrUpdateOAuthIdentity(ctx, profile.Provider, profile.UserID, user.ID, &profile.AccessToken, refresh); err != nil {
		l.ErrorContext(ctx, "Failed to link oauth identity", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "link failed")
		return nil, fmt.Errorf("oauth sign in: %w", err)
	}
	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		l.WarnContext(ctx, "Failed to record last login", slog.Any("error", err))
	}

	span.SetStatus(codes.Ok, "")
	return s.issue(ctx, user)
}

func (s *AuthService) issue(ctx context.Context, user *repository.User) (*Session, error) {
	identity := s.Identity(user)
	token, err := s.tokens.GenerateAccessToken(identity)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to issue token", slog.Any("error", err))
		return nil, err
	}
	return &Session{Identity: identity, Token: token}, nil
}

// Identity projects a stored user onto the client identity.
func (s *AuthService) Identity(user *repository.User) *types.Identity {
	identity := &types.Identity{
		ID:          user.ID.String(),
		DisplayName: user.DisplayName,
		Email:       user.Email,
		IsAdmin:     auth.IsAdminEmail(user.Email, s.adminEmail),
	}
	if user.AvatarURL != nil {
		identity.AvatarURL = *user.AvatarURL
	}
	return identity
}
