// Package rpc holds the procedure names, message shapes and error mapping
// shared by the connect handlers in cmd/api and the connect clients used by
// the map client. Messages travel as google.protobuf.Struct so no generated
// code is needed on either side.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FACorreiaa/bungmap/internal/types"
)

// Encode renders a Go value as a protobuf Struct through its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return msg, nil
}

// Decode fills v from a protobuf Struct.
func Decode(msg *structpb.Struct, v any) error {
	if msg == nil {
		return fmt.Errorf("decode message: empty payload: %w", types.ErrBadRequest)
	}
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode message: %v: %w", err, types.ErrBadRequest)
	}
	return nil
}

// ToConnectError maps domain errors onto connect codes.
func ToConnectError(err error) error {
	if err == nil {
		return nil
	}
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return err
	}
	switch {
	case errors.Is(err, types.ErrUnauthenticated):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, types.ErrPermissionDenied):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, types.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, types.ErrBadRequest):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, types.ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// FromConnectError maps a connect failure back onto the client taxonomy.
// Unauthenticated calls are rejected by the store's policy, so they surface
// as permission failures too.
func FromConnectError(err error) error {
	if err == nil {
		return nil
	}
	switch connect.CodeOf(err) {
	case connect.CodeUnauthenticated:
		return fmt.Errorf("%w: %w: %w", types.ErrPermissionDenied, types.ErrUnauthenticated, err)
	case connect.CodePermissionDenied:
		return fmt.Errorf("%w: %w", types.ErrPermissionDenied, err)
	case connect.CodeNotFound:
		return fmt.Errorf("%w: %w", types.ErrNotFound, err)
	case connect.CodeInvalidArgument:
		return fmt.Errorf("%w: %w: %w", types.ErrUnknown, types.ErrBadRequest, err)
	case connect.CodeAlreadyExists:
		return fmt.Errorf("%w: %w: %w", types.ErrUnknown, types.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", types.ErrUnknown, err)
	}
}
