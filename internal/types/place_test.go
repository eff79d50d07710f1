package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPlaceFields() Fields {
	return Fields{
		"name":      "A",
		"lat":       37.5,
		"lng":       127.03,
		"category":  "redbean",
		"priceInfo": "1000원",
		"createdAt": 1700000000000,
		"userId":    "u1",
	}
}

func TestPlaceFromFields(t *testing.T) {
	place, err := PlaceFromFields("p1", validPlaceFields())

	require.NoError(t, err)
	assert.Equal(t, "p1", place.ID)
	assert.Equal(t, Coordinate{Lat: 37.5, Lng: 127.03}, place.Location)
	assert.Equal(t, CategoryRedBean, place.Category)
}

func TestPlaceFromFieldsRejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "latitude out of range", key: "lat", value: 500.0},
		{name: "longitude out of range", key: "lng", value: -181.0},
		{name: "unknown category", key: "category", value: "bogus"},
		{name: "missing category", key: "category", value: ""},
		{name: "latitude not a number", key: "lat", value: "north"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validPlaceFields()
			fields[tt.key] = tt.value

			_, err := PlaceFromFields("p1", fields)

			assert.Error(t, err)
		})
	}
}

func TestReviewFromFieldsRejectsRatingOutOfRange(t *testing.T) {
	fields := Fields{"placeId": "p1", "nickname": "kim", "comment": "good", "createdAt": 1, "userId": "u1"}

	for _, rating := range []int{0, 6, 42} {
		fields["rating"] = rating
		_, err := ReviewFromFields("r1", fields)
		assert.ErrorIs(t, err, ErrBadRequest, "rating %d", rating)
	}

	fields["rating"] = 5
	review, err := ReviewFromFields("r1", fields)
	require.NoError(t, err)
	assert.Equal(t, 5, review.Rating)
}
