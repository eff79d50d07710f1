// Package common holds the errors shared by the auth repository, service
// and handlers.
package common

import (
	"fmt"

	"github.com/FACorreiaa/bungmap/internal/types"
)

var (
	ErrUserNotFound       = fmt.Errorf("user not found: %w", types.ErrNotFound)
	ErrUserAlreadyExists  = fmt.Errorf("user already exists: %w", types.ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", types.ErrUnauthenticated)
	ErrInvalidToken       = fmt.Errorf("invalid or expired token: %w", types.ErrUnauthenticated)
	ErrUserInactive       = fmt.Errorf("user account is disabled: %w", types.ErrPermissionDenied)
	ErrWeakPassword       = fmt.Errorf("password must be at least 6 characters: %w", types.ErrBadRequest)
	ErrInvalidEmail       = fmt.Errorf("email address is invalid: %w", types.ErrBadRequest)
)
