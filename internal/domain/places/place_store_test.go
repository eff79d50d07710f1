package places

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/bungmap/internal/remote"
	"github.com/FACorreiaa/bungmap/internal/types"
)

// MockRemoteStore is a mock implementation of remote.Store
type MockRemoteStore struct {
	mock.Mock
}

var _ remote.Store = (*MockRemoteStore)(nil)

func (m *MockRemoteStore) List(ctx context.Context, collection string) ([]types.Document, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Document), args.Error(1)
}

func (m *MockRemoteStore) Create(ctx context.Context, collection string, fields types.Fields) (string, error) {
	args := m.Called(ctx, collection, fields)
	return args.String(0), args.Error(1)
}

func (m *MockRemoteStore) Update(ctx context.Context, collection, id string, patch types.Fields) error {
	args := m.Called(ctx, collection, id, patch)
	return args.Error(0)
}

func (m *MockRemoteStore) Delete(ctx context.Context, collection, id string) error {
	args := m.Called(ctx, collection, id)
	return args.Error(0)
}

func (m *MockRemoteStore) Query(ctx context.Context, collection string, filter types.Filter) ([]types.Document, error) {
	args := m.Called(ctx, collection, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Document), args.Error(1)
}

var fixedNow = time.UnixMilli(1700000000000)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func setupMemoryStore() (*Store, *remote.MemoryStore) {
	mem := remote.NewMemoryStore().WithIDs(sequentialIDs("p"))
	store := NewStore(mem, newTestLogger()).WithClock(func() time.Time { return fixedNow })
	return store, mem
}

func redBeanDraft(name string, at types.Coordinate) types.PlaceDraft {
	return types.PlaceDraft{
		Name:      name,
		Location:  at,
		Category:  types.CategoryRedBean,
		PriceInfo: "1000원",
	}
}

func TestStore_CreateAppendsPlaceWithServerID(t *testing.T) {
	ctx := context.Background()
	store, _ := setupMemoryStore()

	place, err := store.Create(ctx, redBeanDraft("A", types.Coordinate{Lat: 37.50, Lng: 127.03}), "u1")

	require.NoError(t, err)
	assert.Equal(t, "p1", place.ID)
	assert.Equal(t, fixedNow.UnixMilli(), place.CreatedAt)
	assert.Equal(t, "u1", place.UserID)
	require.Len(t, store.Places(), 1)
	got := store.Places()[0]
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, 37.50, got.Location.Lat)
	assert.Equal(t, 127.03, got.Location.Lng)
}

func TestStore_CreateFailureLeavesCollection(t *testing.T) {
	ctx := context.Background()
	store, mem := setupMemoryStore()
	mem.FailOn(remote.OpCreate, types.ErrPermissionDenied)

	_, err := store.Create(ctx, redBeanDraft("A", types.DefaultCenter), "u1")

	assert.ErrorIs(t, err, types.ErrPermissionDenied)
	assert.Empty(t, store.Places())

	mem.FailOn(remote.OpCreate, errors.New("network down"))
	_, err = store.Create(ctx, redBeanDraft("A", types.DefaultCenter), "u1")
	assert.ErrorIs(t, err, types.ErrUnknown)
	assert.Empty(t, store.Places())
}

func TestStore_CreateRejectsInvalidDraftWithoutRemoteCall(t *testing.T) {
	mockRemote := new(MockRemoteStore)
	store := NewStore(mockRemote, newTestLogger())

	_, err := store.Create(context.Background(), types.PlaceDraft{Name: "A", Category: "mint", PriceInfo: "1"}, "u1")
	assert.ErrorIs(t, err, types.ErrBadRequest)

	_, err = store.Create(context.Background(), redBeanDraft("A", types.DefaultCenter), "")
	assert.ErrorIs(t, err, types.ErrPermissionDenied)

	mockRemote.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, store.Places())
}

func TestStore_LoadReplacesCollection(t *testing.T) {
	ctx := context.Background()
	store, mem := setupMemoryStore()
	_, err := store.Create(ctx, redBeanDraft("local", types.DefaultCenter), "u1")
	require.NoError(t, err)

	fields, err := types.NewPlaceFields(redBeanDraft("remote", types.DefaultCenter), "u2", 1)
	require.NoError(t, err)
	mem.Put(types.CollectionPlaces, "p1", fields)
	mem.Put(types.CollectionPlaces, "legacy", types.Fields{"lat": "not a number"})

	require.NoError(t, store.Load(ctx))

	places := store.Places()
	require.Len(t, places, 1)
	assert.Equal(t, "remote", places[0].Name)
}

func TestStore_LoadSkipsOutOfRangeRecords(t *testing.T) {
	ctx := context.Background()
	store, mem := setupMemoryStore()

	good, err := types.NewPlaceFields(redBeanDraft("good", types.DefaultCenter), "u1", 1)
	require.NoError(t, err)
	mem.Put(types.CollectionPlaces, "good", good)

	farNorth := good.Clone()
	farNorth["lat"] = 500.0
	mem.Put(types.CollectionPlaces, "far-north", farNorth)

	bogus := good.Clone()
	bogus["category"] = "bogus"
	mem.Put(types.CollectionPlaces, "bogus", bogus)

	require.NoError(t, store.Load(ctx))

	places := store.Places()
	require.Len(t, places, 1)
	assert.Equal(t, "good", places[0].ID)
}

func TestStore_LoadFailureKeepsPreviousCollection(t *testing.T) {
	ctx := context.Background()
	store, mem := setupMemoryStore()
	_, err := store.Create(ctx, redBeanDraft("A", types.DefaultCenter), "u1")
	require.NoError(t, err)

	mem.FailOn(remote.OpList, fmt.Errorf("rules rejected read: %w", types.ErrPermissionDenied))
	err = store.Load(ctx)
	assert.ErrorIs(t, err, types.ErrPermissionDenied)
	assert.Len(t, store.Places(), 1)

	mem.FailOn(remote.OpList, errors.New("timeout"))
	err = store.Load(ctx)
	assert.ErrorIs(t, err, types.ErrUnknown)
	assert.False(t, errors.Is(err, types.ErrPermissionDenied))
	assert.Len(t, store.Places(), 1)
}

func TestStore_UpdateMergesPatch(t *testing.T) {
	ctx := context.Background()
	store, _ := setupMemoryStore()
	created, err := store.Create(ctx, redBeanDraft("A", types.DefaultCenter), "u1")
	require.NoError(t, err)

	name := "B"
	updated, err := store.Update(ctx, created.ID, types.PlacePatch{Name: &name})

	require.NoError(t, err)
	assert.Equal(t, "B", updated.Name)
	assert.Equal(t, "1000원", updated.PriceInfo)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	got, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "B", got.Name)
}

func TestStore_UpdateFailureLeavesRecord(t *testing.T) {
	ctx := context.Background()
	store, mem := setupMemoryStore()
	created, err := store.Create(ctx, redBeanDraft("A", types.DefaultCenter), "u1")
	require.NoError(t, err)
	mem.FailOn(remote.OpUpdate, errors.New("boom"))

	name := "B"
	_, err = store.Update(ctx, created.ID, types.PlacePatch{Name: &name})

	assert.ErrorIs(t, err, types.ErrUnknown)
	got, _ := store.Get(created.ID)
	assert.Equal(t, "A", got.Name)
}

func TestStore_UpdateUnknownPlace(t *testing.T) {
	mockRemote := new(MockRemoteStore)
	store := NewStore(mockRemote, newTestLogger())

	name := "B"
	_, err := store.Update(context.Background(), "missing", types.PlacePatch{Name: &name})

	assert.ErrorIs(t, err, types.ErrNotFound)
	mockRemote.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_UpdateSendsOnlyPatchedFields(t *testing.T) {
	ctx := context.Background()
	mockRemote := new(MockRemoteStore)
	store := NewStore(mockRemote, newTestLogger())

	fields, err := types.NewPlaceFields(redBeanDraft("A", types.DefaultCenter), "u1", 1)
	require.NoError(t, err)
	mockRemote.On("List", mock.Anything, types.CollectionPlaces).
		Return([]types.Document{{ID: "p1", Fields: fields}}, nil).Once()
	require.NoError(t, store.Load(ctx))

	moved := types.Coordinate{Lat: 37.1, Lng: 127.1}
	mockRemote.On("Update", mock.Anything, types.CollectionPlaces, "p1", types.Fields{"lat": 37.1, "lng": 127.1}).
		Return(nil).Once()

	updated, err := store.Update(ctx, "p1", types.PlacePatch{Location: &moved})

	require.NoError(t, err)
	assert.Equal(t, moved, updated.Location)
	assert.Equal(t, "A", updated.Name)
	mockRemote.AssertExpectations(t)
}

func TestStore_DeleteRemovesPlace(t *testing.T) {
	ctx := context.Background()
	store, _ := setupMemoryStore()
	a, err := store.Create(ctx, redBeanDraft("A", types.DefaultCenter), "u1")
	require.NoError(t, err)
	b, err := store.Create(ctx, redBeanDraft("B", types.DefaultCenter), "u1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, a.ID))

	places := store.Places()
	require.Len(t, places, 1)
	assert.Equal(t, b.ID, places[0].ID)
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	store, _ := setupMemoryStore()
	a, err := store.Create(ctx, redBeanDraft("A", types.DefaultCenter), "u1")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		assert.NoError(t, store.Delete(ctx, "p-unknown"))
	})
	require.NoError(t, store.Delete(ctx, a.ID))
	assert.NoError(t, store.Delete(ctx, a.ID))
	assert.Empty(t, store.Places())
}

func TestStore_DeleteFailureKeepsPlace(t *testing.T) {
	ctx := context.Background()
	store, mem := setupMemoryStore()
	a, err := store.Create(ctx, redBeanDraft("A", types.DefaultCenter), "u1")
	require.NoError(t, err)
	mem.FailOn(remote.OpDelete, types.ErrPermissionDenied)

	err = store.Delete(ctx, a.ID)

	assert.ErrorIs(t, err, types.ErrPermissionDenied)
	assert.Len(t, store.Places(), 1)
}

func TestStore_LocalStateMatchesFreshLoad(t *testing.T) {
	ctx := context.Background()
	store, mem := setupMemoryStore()

	a, err := store.Create(ctx, types.PlaceDraft{
		Name: " A ", Location: types.Coordinate{Lat: 37.5, Lng: 127.0}, Category: types.CategoryShuCream,
		PriceInfo: "3개 2000원", PaymentMethods: []string{types.PaymentCash, types.PaymentCash, types.PaymentCard},
	}, "u1")
	require.NoError(t, err)
	b, err := store.Create(ctx, redBeanDraft("B", types.Coordinate{Lat: 35.1, Lng: 129.1}), "u2")
	require.NoError(t, err)
	_, err = store.Create(ctx, redBeanDraft("C", types.Coordinate{Lat: 33.5, Lng: 126.5}), "u3")
	require.NoError(t, err)

	price := " 2개 1000원 "
	category := types.CategoryPizza
	moved := types.Coordinate{Lat: 36.3, Lng: 127.4}
	_, err = store.Update(ctx, a.ID, types.PlacePatch{PriceInfo: &price, Category: &category, PaymentMethods: []string{types.PaymentTransfer}})
	require.NoError(t, err)
	_, err = store.Update(ctx, b.ID, types.PlacePatch{Location: &moved})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, b.ID))

	fresh := NewStore(mem, newTestLogger())
	require.NoError(t, fresh.Load(ctx))

	assert.Equal(t, fresh.Places(), store.Places())
}

// blockingCreateStore stores the document, then holds the Create call open
// until released.
type blockingCreateStore struct {
	*remote.MemoryStore
	created chan struct{}
	release chan struct{}
}

func (b *blockingCreateStore) Create(ctx context.Context, collection string, fields types.Fields) (string, error) {
	id, err := b.MemoryStore.Create(ctx, collection, fields)
	close(b.created)
	<-b.release
	return id, err
}

func TestStore_CreateDuringLoadKeepsIDsUnique(t *testing.T) {
	ctx := context.Background()
	mem := remote.NewMemoryStore().WithIDs(sequentialIDs("p"))
	blocking := &blockingCreateStore{MemoryStore: mem, created: make(chan struct{}), release: make(chan struct{})}
	store := NewStore(blocking, newTestLogger()).WithClock(func() time.Time { return fixedNow })

	type result struct {
		place types.Place
		err   error
	}
	done := make(chan result, 1)
	go func() {
		place, err := store.Create(ctx, redBeanDraft("A", types.Coordinate{Lat: 37.5, Lng: 127.0}), "u1")
		done <- result{place, err}
	}()

	<-blocking.created
	require.NoError(t, store.Load(ctx))
	require.Len(t, store.Places(), 1)
	close(blocking.release)

	res := <-done
	require.NoError(t, res.err)
	require.Len(t, store.Places(), 1)
	assert.Equal(t, res.place.ID, store.Places()[0].ID)

	fresh := NewStore(mem, newTestLogger())
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, fresh.Places(), store.Places())
}

func TestStore_PlacesReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store, _ := setupMemoryStore()
	_, err := store.Create(ctx, types.PlaceDraft{
		Name: "A", Location: types.DefaultCenter, Category: types.CategoryRedBean,
		PriceInfo: "1000원", PaymentMethods: []string{types.PaymentCash},
	}, "u1")
	require.NoError(t, err)

	places := store.Places()
	places[0].Name = "mutated"
	places[0].PaymentMethods[0] = "mutated"

	got := store.Places()[0]
	assert.Equal(t, "A", got.Name)
	assert.Equal(t, []string{types.PaymentCash}, got.PaymentMethods)
}
