package remote

import (
	"context"

	"github.com/FACorreiaa/bungmap/internal/types"
)

// Store abstracts the hosted document database the client replicates from.
// Implementations classify failures as types.ErrPermissionDenied,
// types.ErrNotFound or types.ErrUnknown.
type Store interface {
	List(ctx context.Context, collection string) ([]types.Document, error)
	Create(ctx context.Context, collection string, fields types.Fields) (string, error)
	Update(ctx context.Context, collection, id string, patch types.Fields) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filter types.Filter) ([]types.Document, error)
}

// TokenSource supplies the bearer token of the signed-in user, empty when
// signed out.
type TokenSource interface {
	Token() string
}
