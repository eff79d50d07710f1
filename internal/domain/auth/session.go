package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/FACorreiaa/bungmap/internal/types"
)

// Provider is the authentication backend used by a Session.
type Provider interface {
	SignIn(ctx context.Context, creds types.Credentials) (*types.Identity, error)
	SignOut(ctx context.Context) error
}

// Resumer is implemented by providers that can restore an earlier sign-in.
type Resumer interface {
	Resume(ctx context.Context) (*types.Identity, error)
}

// Session is the process-wide view of who is signed in. Subscribers are told
// about every change, and about the current identity as soon as it is known.
type Session struct {
	logger     *slog.Logger
	provider   Provider
	adminEmail string

	mu          sync.Mutex
	resolved    bool
	identity    *types.Identity
	nextSub     int
	subscribers map[int]func(*types.Identity)
}

func NewSession(provider Provider, adminEmail string, logger *slog.Logger) *Session {
	return &Session{
		logger:      logger,
		provider:    provider,
		adminEmail:  adminEmail,
		subscribers: make(map[int]func(*types.Identity)),
	}
}

// Start resolves the initial identity, signed out unless the provider can
// resume a previous session.
func (s *Session) Start(ctx context.Context) error {
	l := s.logger.With(slog.String("method", "Start"))
	var identity *types.Identity
	if r, ok := s.provider.(Resumer); ok {
		resumed, err := r.Resume(ctx)
		if err != nil {
			l.WarnContext(ctx, "Could not resume session", slog.Any("error", err))
		} else {
			identity = resumed
		}
	}
	s.set(identity)
	l.InfoContext(ctx, "Session resolved", slog.Bool("signed_in", identity != nil))
	return nil
}

// Subscribe registers fn and returns a function that unregisters it. If the
// session is already resolved fn is called right away with the current
// identity.
func (s *Session) Subscribe(fn func(*types.Identity)) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subscribers[id] = fn
	resolved, current := s.resolved, s.identity.Clone()
	s.mu.Unlock()

	if resolved {
		fn(current)
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// SignIn authenticates with the provider and publishes the new identity.
func (s *Session) SignIn(ctx context.Context, creds types.Credentials) (*types.Identity, error) {
	l := s.logger.With(slog.String("method", "SignIn"))
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("email and password are required: %w", types.ErrBadRequest)
	}

	identity, err := s.provider.SignIn(ctx, creds)
	if err != nil {
		l.ErrorContext(ctx, "Sign in failed", slog.Any("error", err))
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}
	s.set(identity)
	l.InfoContext(ctx, "Signed in", slog.String("user_id", identity.ID))
	return s.Current(), nil
}

// SignOut ends the session and publishes the signed-out state.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Sign out failed", slog.Any("error", err))
		return fmt.Errorf("failed to sign out: %w", err)
	}
	s.set(nil)
	return nil
}

// Current returns a copy of the signed-in identity, nil when signed out.
func (s *Session) Current() *types.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.Clone()
}

// Close drops every subscriber.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.subscribers)
}

func (s *Session) set(identity *types.Identity) {
	identity = identity.Clone()
	if identity != nil {
		identity.IsAdmin = IsAdminEmail(identity.Email, s.adminEmail)
	}

	s.mu.Lock()
	s.resolved = true
	s.identity = identity
	subs := make([]func(*types.Identity), 0, len(s.subscribers))
	for id := 1; id <= s.nextSub; id++ {
		if fn, ok := s.subscribers[id]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(identity.Clone())
	}
}

var _ Provider = LocalProvider{}

// LocalProvider signs in offline. It trusts the credentials and derives a
// stable user id from the email.
type LocalProvider struct{}

func (LocalProvider) SignIn(_ context.Context, creds types.Credentials) (*types.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	return &types.Identity{
		ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String(),
		DisplayName: strings.TrimSpace(creds.DisplayName),
		Email:       strings.TrimSpace(creds.Email),
	}, nil
}

func (LocalProvider) SignOut(context.Context) error { return nil }
