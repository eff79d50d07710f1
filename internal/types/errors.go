package types

import (
	"errors"
	"fmt"
)

// Domain specific errors shared by the client core and the document service.
var (
	ErrNotFound          = errors.New("requested item not found")
	ErrConflict          = errors.New("item already exists or conflict")
	ErrUnauthenticated   = errors.New("authentication required or invalid credentials")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrBadRequest        = errors.New("bad request")
	ErrUnknown           = errors.New("unknown remote failure")
	ErrInvalidTransition = errors.New("transition not allowed in current mode")
)

// ClassifyRemote folds any remote failure into the three client-facing
// classes. Permission and not-found failures keep their identity, everything
// else becomes ErrUnknown while still wrapping the cause.
func ClassifyRemote(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknown):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUnknown, err)
	}
}
