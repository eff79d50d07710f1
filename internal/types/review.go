package types

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a star rating with a comment attached to one place.
type Review struct {
	ID        string `json:"id"`
	PlaceID   string `json:"place_id"`
	Nickname  string `json:"nickname"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	CreatedAt int64  `json:"created_at"` // epoch milliseconds
	UserID    string `json:"user_id"`
}

// ReviewDraft is the user-supplied part of a new review.
type ReviewDraft struct {
	PlaceID  string `json:"place_id"`
	Nickname string `json:"nickname"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// Validate checks the draft before it is sent to the remote store.
func (d ReviewDraft) Validate() error {
	if strings.TrimSpace(d.PlaceID) == "" {
		return fmt.Errorf("place id is required: %w", ErrBadRequest)
	}
	if strings.TrimSpace(d.Nickname) == "" {
		return fmt.Errorf("nickname is required: %w", ErrBadRequest)
	}
	if strings.TrimSpace(d.Comment) == "" {
		return fmt.Errorf("comment is required: %w", ErrBadRequest)
	}
	return validateRating(d.Rating)
}

// ReviewPatch is a shallow update of a review.
type ReviewPatch struct {
	Nickname *string `json:"nickname,omitempty"`
	Rating   *int    `json:"rating,omitempty"`
	Comment  *string `json:"comment,omitempty"`
}

// Validate checks the fields present in the patch.
func (p ReviewPatch) Validate() error {
	if p.Nickname != nil && strings.TrimSpace(*p.Nickname) == "" {
		return fmt.Errorf("nickname cannot be blank: %w", ErrBadRequest)
	}
	if p.Comment != nil && strings.TrimSpace(*p.Comment) == "" {
		return fmt.Errorf("comment cannot be blank: %w", ErrBadRequest)
	}
	if p.Rating != nil {
		return validateRating(*p.Rating)
	}
	return nil
}

// Merge applies the patch over r.
func (r Review) Merge(patch ReviewPatch) Review {
	out := r
	if patch.Nickname != nil {
		out.Nickname = strings.TrimSpace(*patch.Nickname)
	}
	if patch.Rating != nil {
		out.Rating = *patch.Rating
	}
	if patch.Comment != nil {
		out.Comment = strings.TrimSpace(*patch.Comment)
	}
	return out
}

func validateRating(r int) error {
	if r < MinRating || r > MaxRating {
		return fmt.Errorf("rating %d outside %d-%d: %w", r, MinRating, MaxRating, ErrBadRequest)
	}
	return nil
}

// SortReviewsNewestFirst orders reviews by creation time descending. Equal
// timestamps fall back to the id so the order is stable across loads.
func SortReviewsNewestFirst(reviews []Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		if reviews[i].CreatedAt != reviews[j].CreatedAt {
			return reviews[i].CreatedAt > reviews[j].CreatedAt
		}
		return reviews[i].ID > reviews[j].ID
	})
}

// ReviewSummary aggregates the ratings of one place.
type ReviewSummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// SummarizeReviews averages ratings rounded to one decimal; zero when empty.
func SummarizeReviews(reviews []Review) ReviewSummary {
	if len(reviews) == 0 {
		return ReviewSummary{}
	}
	total := 0
	for _, r := range reviews {
		total += r.Rating
	}
	avg := float64(total) / float64(len(reviews))
	return ReviewSummary{Count: len(reviews), Average: math.Round(avg*10) / 10}
}

type reviewDocument struct {
	PlaceID   string `json:"placeId"`
	Nickname  string `json:"nickname"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	CreatedAt int64  `json:"createdAt"`
	UserID    string `json:"userId"`
}

// ReviewPlaceField is the document field that links a review to its place.
const ReviewPlaceField = "placeId"

// NewReviewFields builds the document body sent on creation.
func NewReviewFields(d ReviewDraft, userID string, createdAt int64) (Fields, error) {
	return encodeFields(reviewDocument{
		PlaceID:   d.PlaceID,
		Nickname:  strings.TrimSpace(d.Nickname),
		Rating:    d.Rating,
		Comment:   strings.TrimSpace(d.Comment),
		CreatedAt: createdAt,
		UserID:    userID,
	})
}

// ReviewFromFields rebuilds a Review from a stored document body. Ratings
// outside the accepted range are rejected.
func ReviewFromFields(id string, fields Fields) (Review, error) {
	var doc reviewDocument
	if err := decodeFields(fields, &doc); err != nil {
		return Review{}, fmt.Errorf("review %s: %w", id, err)
	}
	if err := validateRating(doc.Rating); err != nil {
		return Review{}, fmt.Errorf("review %s: %w", id, err)
	}
	return Review{
		ID:        id,
		PlaceID:   doc.PlaceID,
		Nickname:  doc.Nickname,
		Rating:    doc.Rating,
		Comment:   doc.Comment,
		CreatedAt: doc.CreatedAt,
		UserID:    doc.UserID,
	}, nil
}

// ReviewPatchFields renders only the fields present in the patch.
func ReviewPatchFields(p ReviewPatch) Fields {
	fields := Fields{}
	if p.Nickname != nil {
		fields["nickname"] = strings.TrimSpace(*p.Nickname)
	}
	if p.Rating != nil {
		fields["rating"] = *p.Rating
	}
	if p.Comment != nil {
		fields["comment"] = strings.TrimSpace(*p.Comment)
	}
	return fields
}
