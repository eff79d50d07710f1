package documents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bungmap/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the document store behind the map client. Every call carries
// the caller resolved from the access token, nil when anonymous.
type Service interface {
	List(ctx context.Context, caller *types.Identity, collection string) ([]types.Document, error)
	Query(ctx context.Context, caller *types.Identity, collection string, filter types.Filter) ([]types.Document, error)
	Create(ctx context.Context, caller *types.Identity, collection string, fields types.Fields) (string, error)
	Update(ctx context.Context, caller *types.Identity, collection, id string, patch types.Fields) error
	Delete(ctx context.Context, caller *types.Identity, collection, id string) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	cache  *cache.Cache
	newID  func() string
}

func NewService(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  cache.New(time.Minute, 5*time.Minute),
		newID:  uuid.NewString,
	}
}

func listKey(collection string) string {
	return "list:" + collection
}

func (s *ServiceImpl) start(ctx context.Context, method, collection string, caller *types.Identity) (context.Context, trace.Span, *slog.Logger) {
	callerID := ""
	if caller != nil {
		callerID = caller.ID
	}
	ctx, span := otel.Tracer("DocumentsService").Start(ctx, method, trace.WithAttributes(
		attribute.String("documents.collection", collection),
		attribute.String("caller.id", callerID),
	))
	l := s.logger.With(slog.String("method", method), slog.String("collection", collection))
	return ctx, span, l
}

func (s *ServiceImpl) authorizeRead(caller *types.Identity, collection string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	return requireCaller(caller)
}

func (s *ServiceImpl) List(ctx context.Context, caller *types.Identity, collection string) ([]types.Document, error) {
	ctx, span, l := s.start(ctx, "List", collection, caller)
	defer span.End()

	if err := s.authorizeRead(caller, collection); err != nil {
		span.SetStatus(codes.Error, "rejected")
		return nil, err
	}

	if cached, found := s.cache.Get(listKey(collection)); found {
		l.DebugContext(ctx, "Serving documents from cache")
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cloneDocuments(cached.([]types.Document)), nil
	}

	docs, err := s.repo.List(ctx, collection)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list documents", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	s.cache.Set(listKey(collection), docs, cache.DefaultExpiration)
	span.SetStatus(codes.Ok, "")
	return cloneDocuments(docs), nil
}

func (s *ServiceImpl) Query(ctx context.Context, caller *types.Identity, collection string, filter types.Filter) ([]types.Document, error) {
	ctx, span, l := s.start(ctx, "Query", collection, caller)
	defer span.End()

	if err := s.authorizeRead(caller, collection); err != nil {
		span.SetStatus(codes.Error, "rejected")
		return nil, err
	}

	docs, err := s.repo.Query(ctx, collection, filter)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query documents", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "")
	return docs, nil
}

// Create stores a new document owned by the caller. The owner field is
// always the caller, whatever the client sent.
func (s *ServiceImpl) Create(ctx context.Context, caller *types.Identity, collection string, fields types.Fields) (string, error) {
	ctx, span, l := s.start(ctx, "Create", collection, caller)
	defer span.End()

	if err := s.authorizeRead(caller, collection); err != nil {
		span.SetStatus(codes.Error, "rejected")
		return "", err
	}

	body := fields.Clone()
	body[ownerField] = caller.ID
	if _, ok := body["createdAt"]; !ok {
		body["createdAt"] = time.Now().UnixMilli()
	}
	if err := validateNew(collection, body); err != nil {
		span.SetStatus(codes.Error, "invalid document")
		return "", err
	}

	id := s.newID()
	if err := s.repo.Create(ctx, collection, types.Document{ID: id, Fields: body}); err != nil {
		l.ErrorContext(ctx, "Failed to create document", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return "", fmt.Errorf("failed to create %s document: %w", collection, err)
	}
	s.cache.Delete(listKey(collection))

	l.InfoContext(ctx, "Document created", slog.String("id", id))
	span.SetStatus(codes.Ok, "")
	return id, nil
}

func (s *ServiceImpl) Update(ctx context.Context, caller *types.Identity, collection, id string, patch types.Fields) error {
	ctx, span, l := s.start(ctx, "Update", collection, caller)
	defer span.End()
	span.SetAttributes(attribute.String("documents.id", id))

	if err := s.authorizeRead(caller, collection); err != nil {
		span.SetStatus(codes.Error, "rejected")
		return err
	}
	if err := validatePatch(patch); err != nil {
		span.SetStatus(codes.Error, "invalid patch")
		return err
	}

	existing, err := s.repo.Get(ctx, collection, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if err := authorizeWrite(caller, existing); err != nil {
		l.WarnContext(ctx, "Update rejected", slog.String("id", id), slog.String("caller", caller.ID))
		span.SetStatus(codes.Error, "forbidden")
		return err
	}
	if err := validateUpdate(collection, existing.Fields, patch); err != nil {
		l.WarnContext(ctx, "Update rejected", slog.String("id", id), slog.Any("error", err))
		span.SetStatus(codes.Error, "invalid patch")
		return err
	}

	if err := s.repo.Update(ctx, collection, id, patch); err != nil {
		l.ErrorContext(ctx, "Failed to update document", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	s.cache.Delete(listKey(collection))

	l.InfoContext(ctx, "Document updated", slog.String("id", id))
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *ServiceImpl) Delete(ctx context.Context, caller *types.Identity, collection, id string) error {
	ctx, span, l := s.start(ctx, "Delete", collection, caller)
	defer span.End()
	span.SetAttributes(attribute.String("documents.id", id))

	if err := s.authorizeRead(caller, collection); err != nil {
		span.SetStatus(codes.Error, "rejected")
		return err
	}

	existing, err := s.repo.Get(ctx, collection, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if err := authorizeWrite(caller, existing); err != nil {
		l.WarnContext(ctx, "Delete rejected", slog.String("id", id), slog.String("caller", caller.ID))
		span.SetStatus(codes.Error, "forbidden")
		return err
	}

	if err := s.repo.Delete(ctx, collection, id); err != nil {
		l.ErrorContext(ctx, "Failed to delete document", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	s.cache.Delete(listKey(collection))

	l.InfoContext(ctx, "Document deleted", slog.String("id", id))
	span.SetStatus(codes.Ok, "")
	return nil
}

func cloneDocuments(docs []types.Document) []types.Document {
	out := make([]types.Document, len(docs))
	for i, d := range docs {
		out[i] = types.Document{ID: d.ID, Fields: d.Fields.Clone()}
	}
	return out
}
