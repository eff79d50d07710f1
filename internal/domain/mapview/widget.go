package mapview

import (
	"context"

	"github.com/FACorreiaa/bungmap/internal/types"
)

// Event names a widget notification.
type Event string

const (
	EventClick         Event = "click"
	EventCenterChanged Event = "centerChanged"
)

// MarkerStyle is the visual class of a marker.
type MarkerStyle string

const (
	StylePlace        MarkerStyle = "place"
	StyleElevated     MarkerStyle = "elevated"
	StyleCandidate    MarkerStyle = "candidate"
	StyleUserLocation MarkerStyle = "userLocation"
)

// MarkerSpec describes a marker to add. OnClick is nil for markers that do not
// react to clicks.
type MarkerSpec struct {
	Position types.Coordinate
	Style    MarkerStyle
	Title    string
	Category types.Category
	OnClick  func()
}

// Marker is an opaque handle returned by the widget.
type Marker any

// Widget is the command surface of the map SDK. It is constructed elsewhere
// with a center and zoom level and is only ever driven through the Adapter.
type Widget interface {
	PanTo(c types.Coordinate)
	AddMarker(spec MarkerSpec) Marker
	RemoveMarker(m Marker)
	On(event Event, fn func(types.Coordinate))
}

// BoundsSetter is implemented by widgets that can zoom to a box.
type BoundsSetter interface {
	SetBounds(b types.Bounds)
}

// Handler receives the interactions the adapter forwards.
type Handler interface {
	MapClicked(c types.Coordinate)
	CenterChanged(c types.Coordinate)
	MarkerClicked(placeID string)
}

// Locator is the one-shot geolocation provider.
type Locator interface {
	CurrentPosition(ctx context.Context) (types.Coordinate, error)
}

// StaticLocator always reports the same position.
type StaticLocator struct {
	Position types.Coordinate
	Err      error
}

func (s StaticLocator) CurrentPosition(ctx context.Context) (types.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return types.Coordinate{}, err
	}
	if s.Err != nil {
		return types.Coordinate{}, s.Err
	}
	return s.Position, nil
}
