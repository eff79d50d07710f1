package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FACorreiaa/bungmap/internal/domain/auth/common"
	"github.com/FACorreiaa/bungmap/internal/domain/auth/service"
	"github.com/FACorreiaa/bungmap/internal/domain/auth/servicetest"
	"github.com/FACorreiaa/bungmap/internal/types"
)

func TestAuthService_SignUp_Success(t *testing.T) {
	ctx := context.Background()
	svc, repo, tokens := servicetest.NewTestAuthService()

	tokens.GenerateFunc = func(identity *types.Identity) (*service.AccessToken, error) {
		return &service.AccessToken{Token: "signed-" + identity.Email, ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	session, err := svc.SignUp(ctx, service.SignUpParams{
		Email:       "Jane@Example.com",
		Password:    "secret1",
		DisplayName: " Jane ",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if session.Token.Token != "signed-jane@example.com" {
		t.Fatalf("unexpected token %q", session.Token.Token)
	}
	if session.Identity.DisplayName != "Jane" || session.Identity.IsAdmin {
		t.Fatalf("unexpected identity %+v", session.Identity)
	}
	user, err := repo.GetUserByEmail(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("user persisted not found: %v", err)
	}
	if user.HashedPassword == "" || user.HashedPassword == "secret1" {
		t.Fatalf("expected hashed password to be stored")
	}
}

func TestAuthService_SignUp_Validation(t *testing.T) {
	svc, _, _ := servicetest.NewTestAuthService()
	ctx := context.Background()

	tests := []struct {
		name    string
		params  service.SignUpParams
		wantErr error
	}{
		{name: "bad email", params: service.SignUpParams{Email: "nope", Password: "secret1"}, wantErr: common.ErrInvalidEmail},
		{name: "short password", params: service.SignUpParams{Email: "a@b.co", Password: "12345"}, wantErr: common.ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(ctx, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, types.ErrBadRequest) {
				t.Fatalf("expected bad request, got %v", err)
			}
		})
	}
}

func TestAuthService_SignUp_DuplicateEmail(t *testing.T) {
	svc, _, _ := servicetest.NewTestAuthService()
	ctx := context.Background()
	params := service.SignUpParams{Email: "jane@example.com", Password: "secret1"}
	if _, err := svc.SignUp(ctx, params); err != nil {
		t.Fatalf("unexpected error signing up: %v", err)
	}
	_, err := svc.SignUp(ctx, params)
	if !errors.Is(err, common.ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestAuthService_SignIn_InvalidPassword(t *testing.T) {
	svc, repo, _ := servicetest.NewTestAuthService()
	ctx := context.Background()
	servicetest.AddUser(repo, t, "jane@example.com", true, servicetest.MustHash(t, "secret1"))

	_, err := svc.SignIn(ctx, "jane@example.com", "wrong-password")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if repo.Logins != 0 {
		t.Fatalf("last login should not be updated on failed sign in")
	}
}

func TestAuthService_SignIn_UnknownUser(t *testing.T) {
	svc, _, _ := servicetest.NewTestAuthService()

	_, err := svc.SignIn(context.Background(), "ghost@example.com", "secret1")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_SignIn_Inactive(t *testing.T) {
	svc, repo, _ := servicetest.NewTestAuthService()
	servicetest.AddUser(repo, t, "jane@example.com", false, servicetest.MustHash(t, "secret1"))

	_, err := svc.SignIn(context.Background(), "jane@example.com", "secret1")
	if !errors.Is(err, common.ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestAuthService_SignIn_AdminFlag(t *testing.T) {
	svc, repo, _ := servicetest.NewTestAuthService()
	ctx := context.Background()
	servicetest.AddUser(repo, t, servicetest.AdminEmail, true, servicetest.MustHash(t, "secret1"))
	servicetest.AddUser(repo, t, "kim@example.com", true, servicetest.MustHash(t, "secret1"))

	admin, err := svc.SignIn(ctx, servicetest.AdminEmail, "secret1")
	if err != nil {
		t.Fatalf("SignIn admin: %v", err)
	}
	member, err := svc.SignIn(ctx, "kim@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn member: %v", err)
	}
	if !admin.Identity.IsAdmin || member.Identity.IsAdmin {
		t.Fatalf("admin flag wrong: admin=%v member=%v", admin.Identity.IsAdmin, member.Identity.IsAdmin)
	}
	if repo.Logins != 2 {
		t.Fatalf("expected two recorded logins, got %d", repo.Logins)
	}
}

func TestAuthService_Session(t *testing.T) {
	svc, repo, _ := servicetest.NewTestAuthService()
	user := servicetest.AddUser(repo, t, "jane@example.com", true, "")

	session, err := svc.Session(context.Background(), user.ID.String())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if session.Identity.ID != user.ID.String() {
		t.Fatalf("unexpected identity %+v", session.Identity)
	}

	if _, err := svc.Session(context.Background(), "not-a-uuid"); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthService_SignInWithOAuth_LinksExistingAccount(t *testing.T) {
	svc, repo, _ := servicetest.NewTestAuthService()
	ctx := context.Background()
	existing := servicetest.AddUser(repo, t, "jane@example.com", true, servicetest.MustHash(t, "secret1"))
	profile := service.OAuthProfile{
		Provider: "google", UserID: "g-1", Email: "jane@example.com", Name: "Jane", AccessToken: "tok",
	}

	first, err := svc.SignInWithOAuth(ctx, profile)
	if err != nil {
		t.Fatalf("SignInWithOAuth: %v", err)
	}
	second, err := svc.SignInWithOAuth(ctx, profile)
	if err != nil {
		t.Fatalf("SignInWithOAuth again: %v", err)
	}
	if first.Identity.ID != existing.ID.String() || second.Identity.ID != existing.ID.String() {
		t.Fatalf("expected linked account %s, got %s and %s", existing.ID, first.Identity.ID, second.Identity.ID)
	}
	if len(repo.Users) != 1 {
		t.Fatalf("expected no duplicate account, got %d users", len(repo.Users))
	}
}

func TestAuthService_SignInWithOAuth_CreatesAccount(t *testing.T) {
	svc, repo, _ := servicetest.NewTestAuthService()

	session, err := svc.SignInWithOAuth(context.Background(), service.OAuthProfile{
		Provider: "google", UserID: "g-2", Email: "new@example.com", Name: "New", AvatarURL: "https://img.example.com/a.png",
	})
	if err != nil {
		t.Fatalf("SignInWithOAuth: %v", err)
	}
	if session.Identity.AvatarURL != "https://img.example.com/a.png" || session.Identity.DisplayName != "New" {
		t.Fatalf("profile not copied: %+v", session.Identity)
	}
	if _, ok := repo.Users["new@example.com"]; !ok {
		t.Fatalf("account not created")
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	manager := service.NewTokenManager([]byte("secret"), time.Hour)
	identity := &types.Identity{ID: "u1", Email: "kim@example.com", DisplayName: "Kim", IsAdmin: true}

	token, err := manager.GenerateAccessToken(identity)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	got, err := manager.ValidateAccessToken(token.Token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if *got != *identity {
		t.Fatalf("expected %+v, got %+v", identity, got)
	}

	other := service.NewTokenManager([]byte("other"), time.Hour)
	if _, err := other.ValidateAccessToken(token.Token); !errors.Is(err, types.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for foreign signature, got %v", err)
	}
}
