package places

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/bungmap/internal/remote"
	"github.com/FACorreiaa/bungmap/internal/types"
)

func TestSeedSamples_RequiresAdmin(t *testing.T) {
	store, mem := setupMemoryStore()

	_, err := store.SeedSamples(context.Background(), &types.Identity{ID: "u1"}, SampleDrafts)
	assert.ErrorIs(t, err, types.ErrPermissionDenied)

	_, err = store.SeedSamples(context.Background(), nil, SampleDrafts)
	assert.ErrorIs(t, err, types.ErrPermissionDenied)

	assert.Zero(t, mem.Calls(remote.OpCreate))
}

func TestSeedSamples_CreatesInDraftOrder(t *testing.T) {
	ctx := context.Background()
	store, _ := setupMemoryStore()
	admin := &types.Identity{ID: "admin", IsAdmin: true}

	created, err := store.SeedSamples(ctx, admin, SampleDrafts)

	require.NoError(t, err)
	require.Len(t, created, len(SampleDrafts))
	places := store.Places()
	require.Len(t, places, len(SampleDrafts))
	for i, draft := range SampleDrafts {
		assert.Equal(t, draft.Name, places[i].Name)
		assert.Equal(t, "admin", places[i].UserID)
		assert.NotEmpty(t, places[i].ID)
	}
}

func TestSeedSamples_FailureKeepsNothingUnconfirmed(t *testing.T) {
	store, mem := setupMemoryStore()
	mem.FailOn(remote.OpCreate, errors.New("quota exceeded"))

	created, err := store.SeedSamples(context.Background(), &types.Identity{ID: "admin", IsAdmin: true}, SampleDrafts)

	assert.ErrorIs(t, err, types.ErrUnknown)
	assert.Empty(t, created)
	assert.Empty(t, store.Places())
}

func TestSampleDrafts_AreValid(t *testing.T) {
	for _, draft := range SampleDrafts {
		assert.NoError(t, draft.Validate(), draft.Name)
	}
}

func TestSuggestCategory(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   types.Category
		wantOK bool
	}{
		{name: "custard compound", text: "홍대 슈크림붕어빵", want: types.CategoryShuCream, wantOK: true},
		{name: "red bean", text: "옛날 단팥 붕어빵", want: types.CategoryRedBean, wantOK: true},
		{name: "pizza beats red bean", text: "팥이랑 피자 붕어빵", want: types.CategoryPizza, wantOK: true},
		{name: "english keyword", text: "Custard Fish Bread", want: types.CategoryShuCream, wantOK: true},
		{name: "other filling", text: "고구마 붕어빵", want: types.CategoryOther, wantOK: true},
		{name: "no keyword", text: "강남역 붕어빵", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SuggestCategory(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
