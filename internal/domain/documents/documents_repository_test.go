package documents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/bungmap/internal/types"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRepo(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepositoryImpl(mock, newTestLogger()), mock
}

func TestRepository_List(t *testing.T) {
	repo, mock := setupRepo(t)

	rows := pgxmock.NewRows([]string{"id", "data"}).
		AddRow("p1", []byte(`{"name":"A","lat":37.5}`)).
		AddRow("p2", []byte(`{"name":"B","lat":35.1}`))
	mock.ExpectQuery(`SELECT id, data FROM documents WHERE collection = \$1 ORDER BY seq`).
		WithArgs(types.CollectionPlaces).
		WillReturnRows(rows)

	docs, err := repo.List(context.Background(), types.CollectionPlaces)

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "p1", docs[0].ID)
	assert.Equal(t, "A", docs[0].Fields["name"])
	assert.Equal(t, 35.1, docs[1].Fields["lat"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListEmpty(t *testing.T) {
	repo, mock := setupRepo(t)
	mock.ExpectQuery(`SELECT id, data FROM documents`).
		WithArgs(types.CollectionReviews).
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}))

	docs, err := repo.List(context.Background(), types.CollectionReviews)

	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestRepository_ListFailure(t *testing.T) {
	repo, mock := setupRepo(t)
	mock.ExpectQuery(`SELECT id, data FROM documents`).
		WithArgs(types.CollectionPlaces).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.List(context.Background(), types.CollectionPlaces)

	assert.ErrorContains(t, err, "connection reset")
}

func TestRepository_Query(t *testing.T) {
	repo, mock := setupRepo(t)

	rows := pgxmock.NewRows([]string{"id", "data"}).
		AddRow("r2", []byte(`{"placeId":"p1","createdAt":300}`))
	mock.ExpectQuery(`SELECT id, data FROM documents WHERE collection = \$1 AND data @> \$2::jsonb ORDER BY data->'createdAt' DESC, seq`).
		WithArgs(types.CollectionReviews, `{"placeId":"p1"}`).
		WillReturnRows(rows)

	docs, err := repo.Query(context.Background(), types.CollectionReviews, types.Filter{
		Field: "placeId", Value: "p1", OrderBy: "createdAt", Desc: true,
	})

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "r2", docs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_QueryRejectsUnsafeField(t *testing.T) {
	repo, mock := setupRepo(t)

	_, err := repo.Query(context.Background(), types.CollectionReviews, types.Filter{
		Field: "placeId", Value: "p1", OrderBy: "createdAt'; DROP TABLE documents; --",
	})

	assert.ErrorIs(t, err, types.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND id = \$2`).
			WithArgs(types.CollectionPlaces, "p1").
			WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"userId":"u1"}`)))

		doc, err := repo.Get(context.Background(), types.CollectionPlaces, "p1")

		require.NoError(t, err)
		assert.Equal(t, "u1", doc.Fields["userId"])
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectQuery(`SELECT data FROM documents`).
			WithArgs(types.CollectionPlaces, "nope").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Get(context.Background(), types.CollectionPlaces, "nope")

		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestRepository_Create(t *testing.T) {
	t.Run("inserted", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectExec(`INSERT INTO documents \(id,collection,data\) VALUES \(\$1,\$2,\$3::jsonb\)`).
			WithArgs("p1", types.CollectionPlaces, `{"name":"A"}`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(context.Background(), types.CollectionPlaces, types.Document{
			ID: "p1", Fields: types.Fields{"name": "A"},
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate id", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectExec(`INSERT INTO documents`).
			WithArgs("p1", types.CollectionPlaces, pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Create(context.Background(), types.CollectionPlaces, types.Document{ID: "p1", Fields: types.Fields{}})

		assert.ErrorIs(t, err, types.ErrConflict)
	})
}

func TestRepository_Update(t *testing.T) {
	t.Run("merged", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectExec(`UPDATE documents SET data = data \|\| \$1::jsonb, updated_at = now\(\) WHERE collection = \$2 AND id = \$3`).
			WithArgs(`{"name":"B"}`, types.CollectionPlaces, "p1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(context.Background(), types.CollectionPlaces, "p1", types.Fields{"name": "B"})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectExec(`UPDATE documents`).
			WithArgs(pgxmock.AnyArg(), types.CollectionPlaces, "nope").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(context.Background(), types.CollectionPlaces, "nope", types.Fields{"name": "B"})

		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestRepository_Delete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectExec(`DELETE FROM documents WHERE collection = \$1 AND id = \$2`).
			WithArgs(types.CollectionReviews, "r1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(context.Background(), types.CollectionReviews, "r1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already gone", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectExec(`DELETE FROM documents`).
			WithArgs(types.CollectionReviews, "r1").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := repo.Delete(context.Background(), types.CollectionReviews, "r1")

		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}
