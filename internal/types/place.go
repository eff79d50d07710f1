package types

import (
	"fmt"
	"net/url"
	"strings"
)

// Category is the main menu item a stand sells.
type Category string

const (
	CategoryRedBean  Category = "redbean"
	CategoryShuCream Category = "shucream"
	CategoryPizza    Category = "pizza"
	CategoryOther    Category = "other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{CategoryRedBean, CategoryShuCream, CategoryPizza, CategoryOther}

var categoryLabels = map[Category]string{
	CategoryRedBean:  "팥",
	CategoryShuCream: "슈크림",
	CategoryPizza:    "피자/야채",
	CategoryOther:    "기타",
}

// Label returns the display label.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return categoryLabels[CategoryOther]
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory accepts a category code.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q: %w", s, ErrBadRequest)
	}
	return c, nil
}

// Payment method labels offered by the report form.
const (
	PaymentCash     = "현금"
	PaymentTransfer = "계좌이체"
	PaymentCard     = "카드"
)

// PaymentMethods lists the labels offered by the report form.
var PaymentMethods = []string{PaymentCash, PaymentTransfer, PaymentCard}

// NormalizePaymentMethods trims labels and drops blanks and duplicates while
// keeping first-seen order.
func NormalizePaymentMethods(methods []string) []string {
	out := make([]string, 0, len(methods))
	seen := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Place is a reported food stand.
type Place struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Location       Coordinate `json:"location"`
	Category       Category   `json:"category"`
	PriceInfo      string     `json:"price_info"`
	PaymentMethods []string   `json:"payment_methods"`
	CreatedAt      int64      `json:"created_at"` // epoch milliseconds
	UserID         string     `json:"user_id"`
	ImageURL       string     `json:"image_url,omitempty"`
}

// PlaceDraft is the user-supplied part of a new place.
type PlaceDraft struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Location       Coordinate `json:"location"`
	Category       Category   `json:"category"`
	PriceInfo      string     `json:"price_info"`
	PaymentMethods []string   `json:"payment_methods"`
	ImageURL       string     `json:"image_url,omitempty"`
}

// Validate checks the draft before it is sent to the remote store.
func (d PlaceDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("place name is required: %w", ErrBadRequest)
	}
	if strings.TrimSpace(d.PriceInfo) == "" {
		return fmt.Errorf("price info is required: %w", ErrBadRequest)
	}
	if !d.Category.Valid() {
		return fmt.Errorf("unknown category %q: %w", d.Category, ErrBadRequest)
	}
	if err := d.Location.Validate(); err != nil {
		return err
	}
	return validateImageURL(d.ImageURL)
}

// PlacePatch is a shallow update. Nil fields are left untouched.
type PlacePatch struct {
	Name           *string     `json:"name,omitempty"`
	Description    *string     `json:"description,omitempty"`
	Location       *Coordinate `json:"location,omitempty"`
	Category       *Category   `json:"category,omitempty"`
	PriceInfo      *string     `json:"price_info,omitempty"`
	PaymentMethods []string    `json:"payment_methods,omitempty"`
	ImageURL       *string     `json:"image_url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p PlacePatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Location == nil && p.Category == nil &&
		p.PriceInfo == nil && p.PaymentMethods == nil && p.ImageURL == nil
}

// Validate checks the fields present in the patch.
func (p PlacePatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("place name cannot be blank: %w", ErrBadRequest)
	}
	if p.PriceInfo != nil && strings.TrimSpace(*p.PriceInfo) == "" {
		return fmt.Errorf("price info cannot be blank: %w", ErrBadRequest)
	}
	if p.Category != nil && !p.Category.Valid() {
		return fmt.Errorf("unknown category %q: %w", *p.Category, ErrBadRequest)
	}
	if p.Location != nil {
		if err := p.Location.Validate(); err != nil {
			return err
		}
	}
	if p.ImageURL != nil {
		return validateImageURL(*p.ImageURL)
	}
	return nil
}

// Merge applies the patch over p. ID, CreatedAt and UserID never change.
func (p Place) Merge(patch PlacePatch) Place {
	out := p
	if patch.Name != nil {
		out.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		out.Description = *patch.Description
	}
	if patch.Location != nil {
		out.Location = *patch.Location
	}
	if patch.Category != nil {
		out.Category = *patch.Category
	}
	if patch.PriceInfo != nil {
		out.PriceInfo = strings.TrimSpace(*patch.PriceInfo)
	}
	if patch.PaymentMethods != nil {
		out.PaymentMethods = NormalizePaymentMethods(patch.PaymentMethods)
	}
	if patch.ImageURL != nil {
		out.ImageURL = *patch.ImageURL
	}
	return out
}

func validateImageURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("image url %q must be an absolute http(s) url: %w", raw, ErrBadRequest)
	}
	return nil
}

type placeDocument struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	Category       Category `json:"category"`
	PriceInfo      string   `json:"priceInfo"`
	PaymentMethods []string `json:"paymentMethods"`
	CreatedAt      int64    `json:"createdAt"`
	UserID         string   `json:"userId"`
	ImageURL       string   `json:"imageUrl,omitempty"`
}

// NewPlaceFields builds the document body sent on creation.
func NewPlaceFields(d PlaceDraft, userID string, createdAt int64) (Fields, error) {
	return encodeFields(placeDocument{
		Name:           strings.TrimSpace(d.Name),
		Description:    d.Description,
		Lat:            d.Location.Lat,
		Lng:            d.Location.Lng,
		Category:       d.Category,
		PriceInfo:      strings.TrimSpace(d.PriceInfo),
		PaymentMethods: NormalizePaymentMethods(d.PaymentMethods),
		CreatedAt:      createdAt,
		UserID:         userID,
		ImageURL:       d.ImageURL,
	})
}

// PlaceFromFields rebuilds a Place from a stored document body. Bodies with
// an unknown category or an out-of-range coordinate are rejected.
func PlaceFromFields(id string, fields Fields) (Place, error) {
	var doc placeDocument
	if err := decodeFields(fields, &doc); err != nil {
		return Place{}, fmt.Errorf("place %s: %w", id, err)
	}
	if !doc.Category.Valid() {
		return Place{}, fmt.Errorf("place %s: unknown category %q: %w", id, doc.Category, ErrBadRequest)
	}
	location := Coordinate{Lat: doc.Lat, Lng: doc.Lng}
	if err := location.Validate(); err != nil {
		return Place{}, fmt.Errorf("place %s: %w", id, err)
	}
	return Place{
		ID:             id,
		Name:           doc.Name,
		Description:    doc.Description,
		Location:       location,
		Category:       doc.Category,
		PriceInfo:      doc.PriceInfo,
		PaymentMethods: NormalizePaymentMethods(doc.PaymentMethods),
		CreatedAt:      doc.CreatedAt,
		UserID:         doc.UserID,
		ImageURL:       doc.ImageURL,
	}, nil
}

// PlacePatchFields renders only the fields present in the patch.
func PlacePatchFields(p PlacePatch) Fields {
	fields := Fields{}
	if p.Name != nil {
		fields["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Location != nil {
		fields["lat"] = p.Location.Lat
		fields["lng"] = p.Location.Lng
	}
	if p.Category != nil {
		fields["category"] = string(*p.Category)
	}
	if p.PriceInfo != nil {
		fields["priceInfo"] = strings.TrimSpace(*p.PriceInfo)
	}
	if p.PaymentMethods != nil {
		methods := NormalizePaymentMethods(p.PaymentMethods)
		list := make([]any, len(methods))
		for i, m := range methods {
			list[i] = m
		}
		fields["paymentMethods"] = list
	}
	if p.ImageURL != nil {
		fields["imageUrl"] = *p.ImageURL
	}
	return fields
}
