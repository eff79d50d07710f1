package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bungmap/internal/remote"
	"github.com/FACorreiaa/bungmap/internal/types"
)

// Store is the client-side replica of the places collection. Mutations are
// applied locally only after the remote store confirms them.
type Store struct {
	logger *slog.Logger
	remote remote.Store
	now    func() time.Time

	mu     sync.RWMutex
	places []types.Place
}

func NewStore(remoteStore remote.Store, logger *slog.Logger) *Store {
	return &Store{
		logger: logger,
		remote: remoteStore,
		now:    time.Now,
	}
}

// WithClock overrides the clock used for creation timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Load replaces the whole local collection with the remote one. On failure
// the previous collection is kept and the error is ErrPermissionDenied or
// ErrUnknown.
func (s *Store) Load(ctx context.Context) error {
	ctx, span := otel.Tracer("PlaceStore").Start(ctx, "Load")
	defer span.End()

	l := s.logger.With(slog.String("method", "Load"))
	l.DebugContext(ctx, "Loading places")

	docs, err := s.remote.List(ctx, types.CollectionPlaces)
	if err != nil {
		err = remoteError(err)
		l.ErrorContext(ctx, "Failed to load places", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return fmt.Errorf("failed to load places: %w", err)
	}

	loaded := make([]types.Place, 0, len(docs))
	for _, doc := range docs {
		place, err := types.PlaceFromFields(doc.ID, doc.Fields)
		if err != nil {
			l.WarnContext(ctx, "Skipping unreadable place document", slog.String("id", doc.ID), slog.Any("error", err))
			continue
		}
		loaded = append(loaded, place)
	}

	s.mu.Lock()
	s.places = loaded
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("places.count", len(loaded)))
	span.SetStatus(codes.Ok, "")
	l.InfoContext(ctx, "Places loaded", slog.Int("count", len(loaded)))
	return nil
}

// Create sends the draft to the remote store and, once it answers with an id,
// appends the new place with the same fields that were sent. A Load that
// finished meanwhile may already hold it, in which case it is replaced.
func (s *Store) Create(ctx context.Context, draft types.PlaceDraft, authorID string) (types.Place, error) {
	ctx, span := otel.Tracer("PlaceStore").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("place.name", draft.Name),
		attribute.String("place.category", string(draft.Category)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Create"), slog.String("name", draft.Name))
	l.DebugContext(ctx, "Creating place")

	place, err := s.createRemote(ctx, draft, authorID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create place", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return types.Place{}, err
	}

	s.mu.Lock()
	if i := s.indexOf(place.ID); i >= 0 {
		s.places[i] = place
	} else {
		s.places = append(s.places, place)
	}
	s.mu.Unlock()

	span.SetAttributes(attribute.String("place.id", place.ID))
	span.SetStatus(codes.Ok, "")
	l.InfoContext(ctx, "Place created", slog.String("id", place.ID))
	return place, nil
}

func (s *Store) createRemote(ctx context.Context, draft types.PlaceDraft, authorID string) (types.Place, error) {
	if authorID == "" {
		return types.Place{}, fmt.Errorf("%w: %w", types.ErrPermissionDenied, types.ErrUnauthenticated)
	}
	draft.PaymentMethods = types.NormalizePaymentMethods(draft.PaymentMethods)
	if err := draft.Validate(); err != nil {
		return types.Place{}, fmt.Errorf("invalid place: %w", err)
	}
	fields, err := types.NewPlaceFields(draft, authorID, s.now().UnixMilli())
	if err != nil {
		return types.Place{}, fmt.Errorf("%w: %w", types.ErrUnknown, err)
	}
	id, err := s.remote.Create(ctx, types.CollectionPlaces, fields)
	if err != nil {
		return types.Place{}, fmt.Errorf("failed to create place: %w", remoteError(err))
	}
	place, err := types.PlaceFromFields(id, fields)
	if err != nil {
		return types.Place{}, fmt.Errorf("%w: %w", types.ErrUnknown, err)
	}
	return place, nil
}

// Update patches the remote record and then merges the patch over the local
// one. Only places already in the local collection can be updated.
func (s *Store) Update(ctx context.Context, id string, patch types.PlacePatch) (types.Place, error) {
	ctx, span := otel.Tracer("PlaceStore").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("place.id", id),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Update"), slog.String("id", id))
	l.DebugContext(ctx, "Updating place")

	if _, ok := s.Get(id); !ok {
		err := fmt.Errorf("place %s: %w", id, types.ErrNotFound)
		l.WarnContext(ctx, "Place not in local collection", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown place")
		return types.Place{}, err
	}
	if patch.PaymentMethods != nil {
		patch.PaymentMethods = types.NormalizePaymentMethods(patch.PaymentMethods)
	}
	if err := patch.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid patch")
		return types.Place{}, fmt.Errorf("invalid place update: %w", err)
	}
	if patch.Empty() {
		place, _ := s.Get(id)
		return place, nil
	}

	if err := s.remote.Update(ctx, types.CollectionPlaces, id, types.PlacePatchFields(patch)); err != nil {
		err = remoteError(err)
		l.ErrorContext(ctx, "Failed to update place", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return types.Place{}, fmt.Errorf("failed to update place: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		// Deleted locally while the update was in flight.
		span.SetStatus(codes.Ok, "")
		return types.Place{}, fmt.Errorf("place %s: %w", id, types.ErrNotFound)
	}
	s.places[idx] = s.places[idx].Merge(patch)

	span.SetStatus(codes.Ok, "")
	l.InfoContext(ctx, "Place updated")
	return clonePlace(s.places[idx]), nil
}

// Delete removes the place remotely and then locally. A place that is already
// gone remotely is treated as deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("PlaceStore").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("place.id", id),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Delete"), slog.String("id", id))
	l.DebugContext(ctx, "Deleting place")

	if err := s.remote.Delete(ctx, types.CollectionPlaces, id); err != nil {
		if !errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrPermissionDenied) {
			err = remoteError(err)
			l.ErrorContext(ctx, "Failed to delete place", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete failed")
			return fmt.Errorf("failed to delete place: %w", err)
		}
		l.InfoContext(ctx, "Place already deleted remotely")
	}

	s.mu.Lock()
	if idx := s.indexOf(id); idx >= 0 {
		s.places = slices.Delete(s.places, idx, idx+1)
	}
	s.mu.Unlock()

	span.SetStatus(codes.Ok, "")
	l.InfoContext(ctx, "Place deleted")
	return nil
}

// Places returns a copy of the local collection in load/creation order.
func (s *Store) Places() []types.Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Place, len(s.places))
	for i, p := range s.places {
		out[i] = clonePlace(p)
	}
	return out
}

// Get returns the place with the given id.
func (s *Store) Get(id string) (types.Place, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOf(id); idx >= 0 {
		return clonePlace(s.places[idx]), true
	}
	return types.Place{}, false
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.places, func(p types.Place) bool { return p.ID == id })
}

func (s *Store) appendPlaces(places ...types.Place) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, place := range places {
		if i := s.indexOf(place.ID); i >= 0 {
			s.places[i] = place
			continue
		}
		s.places = append(s.places, place)
	}
}

func clonePlace(p types.Place) types.Place {
	p.PaymentMethods = slices.Clone(p.PaymentMethods)
	return p
}

// remoteError narrows a remote failure to ErrPermissionDenied or ErrUnknown.
func remoteError(err error) error {
	if errors.Is(err, types.ErrPermissionDenied) || errors.Is(err, types.ErrUnknown) {
		return err
	}
	return fmt.Errorf("%w: %w", types.ErrUnknown, err)
}
