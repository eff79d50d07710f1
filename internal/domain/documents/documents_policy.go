package documents

import (
	"fmt"
	"maps"
	"strings"

	"github.com/FACorreiaa/bungmap/internal/domain/auth"
	"github.com/FACorreiaa/bungmap/internal/types"
)

// ownerField holds the id of the user who created a document.
const ownerField = "userId"

// immutableFields may only be written on creation.
var immutableFields = []string{ownerField, "createdAt", types.ReviewPlaceField}

func checkCollection(collection string) error {
	switch collection {
	case types.CollectionPlaces, types.CollectionReviews:
		return nil
	default:
		return fmt.Errorf("unknown collection %q: %w", collection, types.ErrBadRequest)
	}
}

func requireCaller(caller *types.Identity) error {
	if caller == nil || strings.TrimSpace(caller.ID) == "" {
		return fmt.Errorf("sign in required: %w", types.ErrUnauthenticated)
	}
	return nil
}

func ownerOf(doc types.Document) string {
	owner, _ := doc.Fields[ownerField].(string)
	return owner
}

// authorizeWrite lets the owner or an admin change an existing document.
func authorizeWrite(caller *types.Identity, existing types.Document) error {
	if !auth.CanModify(caller, ownerOf(existing)) {
		return fmt.Errorf("document %s belongs to another user: %w", existing.ID, types.ErrPermissionDenied)
	}
	return nil
}

// validateNew checks that a new document decodes into its domain record.
func validateNew(collection string, fields types.Fields) error {
	switch collection {
	case types.CollectionPlaces:
		place, err := types.PlaceFromFields("", fields)
		if err != nil {
			return fmt.Errorf("%v: %w", err, types.ErrBadRequest)
		}
		return types.PlaceDraft{
			Name:           place.Name,
			Description:    place.Description,
			Location:       place.Location,
			Category:       place.Category,
			PriceInfo:      place.PriceInfo,
			PaymentMethods: place.PaymentMethods,
			ImageURL:       place.ImageURL,
		}.Validate()
	case types.CollectionReviews:
		review, err := types.ReviewFromFields("", fields)
		if err != nil {
			return fmt.Errorf("%v: %w", err, types.ErrBadRequest)
		}
		return types.ReviewDraft{
			PlaceID:  review.PlaceID,
			Nickname: review.Nickname,
			Rating:   review.Rating,
			Comment:  review.Comment,
		}.Validate()
	}
	return nil
}

func validatePatch(patch types.Fields) error {
	if len(patch) == 0 {
		return fmt.Errorf("empty patch: %w", types.ErrBadRequest)
	}
	for _, key := range immutableFields {
		if _, ok := patch[key]; ok {
			return fmt.Errorf("field %s cannot be changed: %w", key, types.ErrBadRequest)
		}
	}
	return nil
}

// validateUpdate checks the document a patch would leave behind.
func validateUpdate(collection string, existing, patch types.Fields) error {
	merged := existing.Clone()
	maps.Copy(merged, patch)
	return validateNew(collection, merged)
}
