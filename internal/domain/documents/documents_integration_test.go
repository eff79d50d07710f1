//go:build integration

package documents

import (
	"context"
	"log"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/bungmap/internal/types"
	"github.com/FACorreiaa/bungmap/pkg/db"
)

var testDocumentsDB *db.DB

func TestMain(m *testing.M) {
	if err := godotenv.Load("../../../.env.test"); err != nil {
		log.Println("Warning: .env.test file not found for documents integration tests.")
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		log.Fatal("TEST_DATABASE_URL environment variable is not set for documents integration tests")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	testDocumentsDB, err = db.New(db.Config{DSN: dbURL, MaxConns: 5}, logger)
	if err != nil {
		log.Fatalf("Unable to connect to test database: %v\n", err)
	}
	if err := testDocumentsDB.RunMigrations(); err != nil {
		log.Fatalf("Unable to migrate test database: %v\n", err)
	}

	exitCode := m.Run()
	testDocumentsDB.Close()
	os.Exit(exitCode)
}

func clearDocuments(t *testing.T) {
	t.Helper()
	_, err := testDocumentsDB.Pool.Exec(context.Background(), "DELETE FROM documents")
	require.NoError(t, err, "Failed to clear documents table")
}

func TestDocumentsRepository_Integration(t *testing.T) {
	ctx := context.Background()
	clearDocuments(t)

	repo := NewRepositoryImpl(testDocumentsDB.Pool, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	placeID := uuid.NewString()

	t.Run("Create and list in insertion order", func(t *testing.T) {
		for i, id := range []string{placeID, uuid.NewString()} {
			err := repo.Create(ctx, types.CollectionPlaces, types.Document{ID: id, Fields: types.Fields{
				"name":      "붕어빵",
				"createdAt": float64(1000 + i),
				"userId":    "u1",
			}})
			require.NoError(t, err)
		}

		docs, err := repo.List(ctx, types.CollectionPlaces)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, placeID, docs[0].ID)
	})

	t.Run("Duplicate id conflicts", func(t *testing.T) {
		err := repo.Create(ctx, types.CollectionPlaces, types.Document{ID: placeID, Fields: types.Fields{}})
		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("Update merges top-level keys", func(t *testing.T) {
		require.NoError(t, repo.Update(ctx, types.CollectionPlaces, placeID, types.Fields{"name": "슈크림"}))

		doc, err := repo.Get(ctx, types.CollectionPlaces, placeID)
		require.NoError(t, err)
		assert.Equal(t, "슈크림", doc.Fields["name"])
		assert.Equal(t, "u1", doc.Fields["userId"])
	})

	t.Run("Query filters and orders", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			err := repo.Create(ctx, types.CollectionReviews, types.Document{ID: uuid.NewString(), Fields: types.Fields{
				"placeId":   placeID,
				"rating":    float64(i + 1),
				"createdAt": float64(i),
			}})
			require.NoError(t, err)
		}

		docs, err := repo.Query(ctx, types.CollectionReviews, types.Filter{
			Field: "placeId", Value: placeID, OrderBy: "createdAt", Desc: true,
		})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, float64(2), docs[0].Fields["createdAt"])
	})

	t.Run("Delete then delete again", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, types.CollectionPlaces, placeID))
		assert.ErrorIs(t, repo.Delete(ctx, types.CollectionPlaces, placeID), types.ErrNotFound)
		_, err := repo.Get(ctx, types.CollectionPlaces, placeID)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}
