package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/bungmap/internal/domain/auth/common"
)

var _ AuthRepository = (*PostgresAuthRepository)(nil)

// User is a row of the users table. HashedPassword is empty for accounts
// created through an OAuth provider.
type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	DisplayName    string
	AvatarURL      *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLoginAt    *time.Time
}

// AuthRepository persists accounts and their linked OAuth identities.
type AuthRepository interface {
	CreateUser(ctx context.Context, email, hashedPassword, displayName string, avatarURL *string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
	CreateOrUpdateOAuthIdentity(ctx context.Context, provider, providerUserID string, userID uuid.UUID, accessToken, refreshToken *string) error
	GetUserByOAuthIdentity(ctx context.Context, provider, providerUserID string) (*User, error)
}

type PostgresAuthRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{
		db:  db,
		now: time.Now,
	}
}

const userColumns = `id, email, hashed_password, display_name, avatar_url, is_active, created_at, updated_at, last_login_at`

func (r *PostgresAuthRepository) CreateUser(ctx context.Context, email, hashedPassword, displayName string, avatarURL *string) (*User, error) {
	now := r.now().UTC()
	user := &User{
		ID:             uuid.New(),
		Email:          strings.ToLower(strings.TrimSpace(email)),
		HashedPassword: hashedPassword,
		DisplayName:    displayName,
		AvatarURL:      avatarURL,
		IsActive:       true,
	}

	query := `
		INSERT INTO users (id, email, hashed_password, display_name, avatar_url, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, nullString(hashedPassword), displayName, avatarURL, true, now, now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, common.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (r *PostgresAuthRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getUser(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *PostgresAuthRepository) GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getUser(ctx, query, userID)
}

func (r *PostgresAuthRepository) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var (
		user     User
		password sql.NullString
		avatar   sql.NullString
		lastSeen sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &password, &user.DisplayName, &avatar,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt, &lastSeen,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.HashedPassword = password.String
	if avatar.Valid {
		user.AvatarURL = &avatar.String
	}
	if lastSeen.Valid {
		user.LastLoginAt = &lastSeen.Time
	}
	return &user, nil
}

func (r *PostgresAuthRepository) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, r.now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return common.ErrUserNotFound
	}
	return nil
}

func (r *PostgresAuthRepository) CreateOrUpdateOAuthIdentity(ctx context.Context, provider, providerUserID string, userID uuid.UUID, accessToken, refreshToken *string) error {
	query := `
		INSERT INTO user_oauth_identities (provider_name, provider_user_id, user_id, access_token, refresh_token, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_name, provider_user_id)
		DO UPDATE SET access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, provider, providerUserID, userID, accessToken, refreshToken, r.now().UTC()); err != nil {
		return fmt.Errorf("failed to link oauth identity: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepository) GetUserByOAuthIdentity(ctx context.Context, provider, providerUserID string) (*User, error) {
	var (
		user     User
		password sql.NullString
		avatar   sql.NullString
		lastSeen sql.NullTime
	)
	query := `
		SELECT u.id, u.email, u.hashed_password, u.display_name, u.avatar_url,
		       u.is_active, u.created_at, u.updated_at, u.last_login_at
		FROM users u
		INNER JOIN user_oauth_identities o ON u.id = o.user_id
		WHERE o.provider_name = $1 AND o.provider_user_id = $2
	`
	err := r.db.QueryRowContext(ctx, query, provider, providerUserID).Scan(
		&user.ID, &user.Email, &password, &user.DisplayName, &avatar,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt, &lastSeen,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by oauth identity: %w", err)
	}
	user.HashedPassword = password.String
	if avatar.Valid {
		user.AvatarURL = &avatar.String
	}
	if lastSeen.Valid {
		user.LastLoginAt = &lastSeen.Time
	}
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
