package types

import (
	"encoding/json"
	"fmt"
)

// Collection names in the remote document store.
const (
	CollectionPlaces  = "places"
	CollectionReviews = "reviews"
)

// Fields is the schemaless body of a stored document.
type Fields map[string]any

// Document is one record of a collection. ID is assigned by the store.
type Document struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// Filter selects documents whose Field equals Value. OrderBy is a hint only;
// callers must not rely on the store honouring it.
type Filter struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	OrderBy string `json:"order_by,omitempty"`
	Desc    bool   `json:"desc,omitempty"`
}

// Matches reports whether the document satisfies the equality filter. Values
// are compared through their JSON form so numbers decoded as float64 still
// match integer filter values.
func (f Filter) Matches(doc Document) bool {
	if f.Field == "" {
		return true
	}
	v, ok := doc.Fields[f.Field]
	if !ok {
		return false
	}
	a, errA := json.Marshal(v)
	b, errB := json.Marshal(f.Value)
	return errA == nil && errB == nil && string(a) == string(b)
}

// Clone returns a shallow copy of the field map.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func encodeFields(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var fields Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return fields, nil
}

func decodeFields(fields Fields, v any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}
