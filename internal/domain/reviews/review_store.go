package reviews

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

// Store holds the reviews of the currently selected place, newest first.
// Every selection change bumps a generation counter; results of a fetch or
// mutation that finish after the counter moved on are dropped.
type Store struct {
	logger *slog.Logger
	remote remote.Store
	now    func() time.Time

	mu         sync.RWMutex
	placeID    string
	generation uint64
	reviews    []types.Review
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

// Ticket identifies one selection of a place. Fetch results are applied only
// while the ticket is still the latest one handed out.
type Ticket struct {
	PlaceID    string
	generation uint64
}

// Select makes placeID current and empties the list without fetching.
func (s *Store) Select(placeID string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.placeID = placeID
	s.reviews = nil
	return Ticket{PlaceID: placeID, generation: s.generation}
}

// LoadFor makes placeID current and replaces the list with its reviews.
// Failures are logged and leave the list empty. It reports whether the
// result was applied, false when another selection happened meanwhile.
func (s *Store) LoadFor(ctx context.Context, placeID string) bool {
	return s.Fetch(ctx, s.Select(placeID))
}

// Fetch loads the reviews for a ticket obtained from Select.
func (s *Store) Fetch(ctx context.Context, ticket Ticket) bool {
	placeID, gen := ticket.PlaceID, ticket.generation
	ctx, span := otel.Tracer("ReviewStore").Start(ctx, "Fetch", trace.WithAttributes(
		attribute.String("place.id", placeID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Fetch"), slog.String("place_id", placeID))
	l.DebugContext(ctx, "Loading reviews")

	docs, err := s.remote.Query(ctx, types.CollectionReviews, types.Filter{
		Field:   types.ReviewPlaceField,
		Value:   placeID,
		OrderBy: "createdAt",
		Desc:    true,
	})
	var loaded []types.Review
	if err != nil {
		l.ErrorContext(ctx, "Failed to load reviews", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
	} else {
		loaded = make([]types.Review, 0, len(docs))
		for _, doc := range docs {
			review, err := types.ReviewFromFields(doc.ID, doc.Fields)
			if err != nil {
				l.WarnContext(ctx, "Skipping unreadable review document", slog.String("id", doc.ID), slog.Any("error", err))
				continue
			}
			loaded = append(loaded, review)
		}
		types.SortReviewsNewestFirst(loaded)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		l.DebugContext(ctx, "Discarding stale reviews", slog.Uint64("generation", gen))
		span.SetAttributes(attribute.Bool("reviews.stale", true))
		return false
	}
	s.reviews = loaded
	if err == nil {
		span.SetStatus(codes.Ok, "")
		l.InfoContext(ctx, "Reviews loaded", slog.Int("count", len(loaded)))
	}
	return true
}

// Clear drops the current place and its reviews.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.placeID = ""
	s.reviews = nil
}

// Create stores a review for draft.PlaceID. The local list only changes when
// the selection that was current at the call is still current.
func (s *Store) Create(ctx context.Context, draft types.ReviewDraft, authorID string) (types.Review, error) {
	ctx, span := otel.Tracer("ReviewStore").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("place.id", draft.PlaceID),
		attribute.Int("review.rating", draft.Rating),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Create"), slog.String("place_id", draft.PlaceID))
	l.DebugContext(ctx, "Creating review")

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	review, err := s.create(ctx, draft, authorID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create review", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return types.Review{}, err
	}

	s.mu.Lock()
	if gen == s.generation && s.placeID == review.PlaceID {
		if i := s.indexOf(review.ID); i >= 0 {
			s.reviews[i] = review
		} else {
			s.reviews = append(s.reviews, review)
		}
		types.SortReviewsNewestFirst(s.reviews)
	} else {
		l.DebugContext(ctx, "Selection changed during create, not applied", slog.String("id", review.ID))
	}
	s.mu.Unlock()

	span.SetStatus(codes.Ok, "")
	l.InfoContext(ctx, "Review created", slog.String("id", review.ID))
	return review, nil
}

func (s *Store) create(ctx context.Context, draft types.ReviewDraft, authorID string) (types.Review, error) {
	if authorID == "" {
		return types.Review{}, fmt.Errorf("%w: %w", types.ErrPermissionDenied, types.ErrUnauthenticated)
	}
	if err := draft.Validate(); err != nil {
		return types.Review{}, fmt.Errorf("invalid review: %w", err)
	}
	fields, err := types.NewReviewFields(draft, authorID, s.now().UnixMilli())
	if err != nil {
		return types.Review{}, fmt.Errorf("%w: %w", types.ErrUnknown, err)
	}
	id, err := s.remote.Create(ctx, types.CollectionReviews, fields)
	if err != nil {
		return types.Review{}, fmt.Errorf("failed to create review: %w", remoteError(err))
	}
	return types.ReviewFromFields(id, fields)
}

// Update patches a review of the current place.
func (s *Store) Update(ctx context.Context, id string, patch types.ReviewPatch) (types.Review, error) {
	ctx, span := otel.Tracer("ReviewStore").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("review.id", id),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Update"), slog.String("id", id))
	l.DebugContext(ctx, "Updating review")

	current, ok := s.get(id)
	if !ok {
		err := fmt.Errorf("review %s: %w", id, types.ErrNotFound)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown review")
		return types.Review{}, err
	}
	if err := patch.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid patch")
		return types.Review{}, fmt.Errorf("invalid review update: %w", err)
	}

	if err := s.remote.Update(ctx, types.CollectionReviews, id, types.ReviewPatchFields(patch)); err != nil {
		err = remoteError(err)
		l.ErrorContext(ctx, "Failed to update review", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return types.Review{}, fmt.Errorf("failed to update review: %w", err)
	}

	updated := current.Merge(patch)
	s.mu.Lock()
	if idx := s.indexOf(id); idx >= 0 {
		s.reviews[idx] = updated
		types.SortReviewsNewestFirst(s.reviews)
	}
	s.mu.Unlock()

	span.SetStatus(codes.Ok, "")
	l.InfoContext(ctx, "Review updated")
	return updated, nil
}

// Delete removes a review. A review already gone remotely counts as deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("ReviewStore").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("review.id", id),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Delete"), slog.String("id", id))
	l.DebugContext(ctx, "Deleting review")

	if err := s.remote.Delete(ctx, types.CollectionReviews, id); err != nil {
		if !errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrPermissionDenied) {
			err = remoteError(err)
			l.ErrorContext(ctx, "Failed to delete review", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete failed")
			return fmt.Errorf("failed to delete review: %w", err)
		}
	}

	s.mu.Lock()
	if idx := s.indexOf(id); idx >= 0 {
		s.reviews = slices.Delete(s.reviews, idx, idx+1)
	}
	s.mu.Unlock()

	span.SetStatus(codes.Ok, "")
	l.InfoContext(ctx, "Review deleted")
	return nil
}

// PlaceID is the place whose reviews are held, empty when none is selected.
func (s *Store) PlaceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.placeID
}

// Reviews returns a copy of the list, newest first.
func (s *Store) Reviews() []types.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.reviews)
}

// Summary aggregates the ratings currently held.
func (s *Store) Summary() types.ReviewSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.SummarizeReviews(s.reviews)
}

func (s *Store) get(id string) (types.Review, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.reviews[idx], true
	}
	return types.Review{}, false
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.reviews, func(r types.Review) bool { return r.ID == id })
}

func remoteError(err error) error {
	if errors.Is(err, types.ErrPermissionDenied) || errors.Is(err, types.ErrUnknown) {
		return err
	}
	return fmt.Errorf("%w: %w", types.ErrUnknown, err)
}
