package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bungmap/internal/types"
)

const table = "documents"

var (
	_ Repository = (*RepositoryImpl)(nil)

	fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	psql      = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists documents as JSONB rows keyed by collection and id.
type Repository interface {
	// List returns every document of a collection in insertion order.
	List(ctx context.Context, collection string) ([]types.Document, error)

	// Query returns the documents whose field equals the filter value.
	Query(ctx context.Context, collection string, filter types.Filter) ([]types.Document, error)

	// Get returns one document.
	Get(ctx context.Context, collection, id string) (types.Document, error)

	// Create stores a document under a caller-chosen id.
	Create(ctx context.Context, collection string, doc types.Document) error

	// Update merges patch into the stored body, top-level keys only.
	Update(ctx context.Context, collection, id string, patch types.Fields) error

	// Delete removes a document.
	Delete(ctx context.Context, collection, id string) error
}

type RepositoryImpl struct {
	logger *slog.Logger
	db     DB
}

func NewRepositoryImpl(db DB, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		db:     db,
	}
}

func dbSpan(ctx context.Context, name, collection string) (context.Context, trace.Span) {
	return otel.Tracer("DocumentsRepo").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", table),
		attribute.String("documents.collection", collection),
	))
}

func (r *RepositoryImpl) List(ctx context.Context, collection string) ([]types.Document, error) {
	ctx, span := dbSpan(ctx, "List", collection)
	defer span.End()

	l := r.logger.With(slog.String("method", "List"), slog.String("collection", collection))
	l.DebugContext(ctx, "Listing documents")

	query, args, err := psql.Select("id", "data").
		From(table).
		Where(squirrel.Eq{"collection": collection}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	docs, err := r.collect(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list documents", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error listing %s: %w", collection, err)
	}

	l.DebugContext(ctx, "Listed documents", slog.Int("count", len(docs)))
	span.SetStatus(codes.Ok, "Documents listed")
	return docs, nil
}

func (r *RepositoryImpl) Query(ctx context.Context, collection string, filter types.Filter) ([]types.Document, error) {
	ctx, span := dbSpan(ctx, "Query", collection)
	defer span.End()

	l := r.logger.With(slog.String("method", "Query"), slog.String("collection", collection),
		slog.String("field", filter.Field))
	l.DebugContext(ctx, "Querying documents")

	if !fieldName.MatchString(filter.Field) || (filter.OrderBy != "" && !fieldName.MatchString(filter.OrderBy)) {
		return nil, fmt.Errorf("invalid filter field: %w", types.ErrBadRequest)
	}
	match, err := json.Marshal(map[string]any{filter.Field: filter.Value})
	if err != nil {
		return nil, fmt.Errorf("invalid filter value: %v: %w", err, types.ErrBadRequest)
	}

	builder := psql.Select("id", "data").
		From(table).
		Where(squirrel.Eq{"collection": collection}).
		Where(squirrel.Expr("data @> ?::jsonb", string(match)))
	if filter.OrderBy != "" {
		dir := "ASC"
		if filter.Desc {
			dir = "DESC"
		}
		builder = builder.OrderBy(fmt.Sprintf("data->'%s' %s", filter.OrderBy, dir), "seq")
	} else {
		builder = builder.OrderBy("seq")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build filter query: %w", err)
	}

	docs, err := r.collect(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query documents", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("database error querying %s: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "Documents queried")
	return docs, nil
}

func (r *RepositoryImpl) collect(ctx context.Context, query string, args ...any) ([]types.Document, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []types.Document{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields := types.Fields{}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		docs = append(docs, types.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return docs, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, collection, id string) (types.Document, error) {
	ctx, span := dbSpan(ctx, "Get", collection)
	defer span.End()
	span.SetAttributes(attribute.String("documents.id", id))

	l := r.logger.With(slog.String("method", "Get"), slog.String("collection", collection), slog.String("id", id))

	query, args, err := psql.Select("data").
		From(table).
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return types.Document{}, fmt.Errorf("failed to build get query: %w", err)
	}

	var data []byte
	if err := r.db.QueryRow(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "Document not found")
			return types.Document{}, fmt.Errorf("document %s/%s: %w", collection, id, types.ErrNotFound)
		}
		l.ErrorContext(ctx, "Failed to fetch document", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return types.Document{}, fmt.Errorf("database error fetching document: %w", err)
	}

	fields := types.Fields{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return types.Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	span.SetStatus(codes.Ok, "Document fetched")
	return types.Document{ID: id, Fields: fields}, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, collection string, doc types.Document) error {
	ctx, span := dbSpan(ctx, "Create", collection)
	defer span.End()
	span.SetAttributes(attribute.String("documents.id", doc.ID))

	l := r.logger.With(slog.String("method", "Create"), slog.String("collection", collection), slog.String("id", doc.ID))
	l.DebugContext(ctx, "Inserting document")

	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode document: %v: %w", err, types.ErrBadRequest)
	}
	query, args, err := psql.Insert(table).
		Columns("id", "collection", "data").
		Values(doc.ID, collection, squirrel.Expr("?::jsonb", string(data))).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			span.SetStatus(codes.Error, "Document id conflict")
			return fmt.Errorf("document %s/%s: %w", collection, doc.ID, types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to insert document", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insert failed")
		return fmt.Errorf("database error inserting document: %w", err)
	}

	l.InfoContext(ctx, "Document inserted")
	span.SetStatus(codes.Ok, "Document inserted")
	return nil
}

func (r *RepositoryImpl) Update(ctx context.Context, collection, id string, patch types.Fields) error {
	ctx, span := dbSpan(ctx, "Update", collection)
	defer span.End()
	span.SetAttributes(attribute.String("documents.id", id))

	l := r.logger.With(slog.String("method", "Update"), slog.String("collection", collection), slog.String("id", id))
	l.DebugContext(ctx, "Updating document")

	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode patch: %v: %w", err, types.ErrBadRequest)
	}
	query, args, err := psql.Update(table).
		Set("data", squirrel.Expr("data || ?::jsonb", string(data))).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update document", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB update failed")
		return fmt.Errorf("database error updating document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Document not found")
		return fmt.Errorf("document %s/%s: %w", collection, id, types.ErrNotFound)
	}

	l.InfoContext(ctx, "Document updated")
	span.SetStatus(codes.Ok, "Document updated")
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, collection, id string) error {
	ctx, span := dbSpan(ctx, "Delete", collection)
	defer span.End()
	span.SetAttributes(attribute.String("documents.id", id))

	l := r.logger.With(slog.String("method", "Delete"), slog.String("collection", collection), slog.String("id", id))
	l.DebugContext(ctx, "Deleting document")

	query, args, err := psql.Delete(table).
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to delete document", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB delete failed")
		return fmt.Errorf("database error deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "Document not found")
		return fmt.Errorf("document %s/%s: %w", collection, id, types.ErrNotFound)
	}

	l.InfoContext(ctx, "Document deleted")
	span.SetStatus(codes.Ok, "Document deleted")
	return nil
}
