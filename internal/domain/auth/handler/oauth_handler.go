package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"

	"github.com/FACorreiaa/bungmap/internal/domain/auth/presenter"
	"github.com/FACorreiaa/bungmap/internal/domain/auth/service"
)

const (
	OAuthLoginPath    = "/auth/google/login"
	OAuthCallbackPath = "/auth/google/callback"

	googleProvider = "google"
)

// OAuthConfig holds the Google client registration.
type OAuthConfig struct {
	ClientID      string
	ClientSecret  string
	CallbackURL   string
	SessionSecret string
	Secure        bool
}

// Enabled reports whether a Google client is configured.
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// OAuthSignIner completes an OAuth sign-in.
type OAuthSignIner interface {
	SignInWithOAuth(ctx context.Context, profile service.OAuthProfile) (*service.Session, error)
}

// completeFunc finishes the provider handshake for a callback request.
type completeFunc func(w http.ResponseWriter, r *http.Request) (goth.User, error)

// OAuthHandler runs the Google redirect flow and answers the callback with
// the same session payload as the SignIn RPC.
type OAuthHandler struct {
	svc      OAuthSignIner
	logger   *slog.Logger
	begin    http.HandlerFunc
	complete completeFunc
}

// NewOAuthHandler registers the Google provider and the cookie store gothic
// keeps the OAuth state in.
func NewOAuthHandler(cfg OAuthConfig, svc OAuthSignIner, logger *slog.Logger) *OAuthHandler {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = store
	goth.UseProviders(google.New(cfg.ClientID, cfg.ClientSecret, cfg.CallbackURL, "email", "profile"))

	return &OAuthHandler{
		svc:      svc,
		logger:   logger,
		begin:    gothic.BeginAuthHandler,
		complete: gothic.CompleteUserAuth,
	}
}

// Register mounts the login and callback routes.
func (h *OAuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+OAuthLoginPath, h.Login)
	mux.HandleFunc("GET "+OAuthCallbackPath, h.Callback)
}

func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.begin(w, gothic.GetContextWithProvider(r, googleProvider))
}

func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("method", "OAuthCallback"))

	user, err := h.complete(w, gothic.GetContextWithProvider(r, googleProvider))
	if err != nil {
		l.WarnContext(ctx, "OAuth handshake failed", slog.Any("error", err))
		http.Error(w, "oauth sign in failed", http.StatusUnauthorized)
		return
	}
	if user.Email == "" {
		http.Error(w, "provider returned no email", http.StatusUnauthorized)
		return
	}

	session, err := h.svc.SignInWithOAuth(ctx, service.OAuthProfile{
		Provider:     user.Provider,
		UserID:       user.UserID,
		Email:        user.Email,
		Name:         user.Name,
		AvatarURL:    user.AvatarURL,
		AccessToken:  user.AccessToken,
		RefreshToken: user.RefreshToken,
	})
	if err != nil {
		l.ErrorContext(ctx, "OAuth sign in failed", slog.Any("error", err))
		http.Error(w, "oauth sign in failed", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(presenter.SessionResponse(session)); err != nil {
		l.ErrorContext(ctx, "Failed to write session", slog.Any("error", err))
	}
}
