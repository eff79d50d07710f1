package mapview

import (
	"log/slog"
	"sync"

	"github.com/FACorreiaa/bungmap/internal/types"
)

type slotMarker struct {
	position types.Coordinate
	handle   Marker
}

// Adapter owns every marker on the widget: one per place, plus at most one
// candidate marker and one user-location marker. Place markers are rebuilt
// from scratch on every sync.
type Adapter struct {
	logger *slog.Logger
	widget Widget

	mu           sync.Mutex
	handler      Handler
	placeMarkers []Marker
	elevatedID   string
	candidate    *slotMarker
	userLocation *slotMarker
}

// NewAdapter wraps the widget and subscribes to its click and center events.
func NewAdapter(widget Widget, logger *slog.Logger) *Adapter {
	a := &Adapter{logger: logger, widget: widget}
	widget.On(EventClick, func(c types.Coordinate) {
		if h := a.currentHandler(); h != nil {
			h.MapClicked(c)
		}
	})
	widget.On(EventCenterChanged, func(c types.Coordinate) {
		if h := a.currentHandler(); h != nil {
			h.CenterChanged(c)
		}
	})
	return a
}

// SetHandler sets the receiver of forwarded interactions.
func (a *Adapter) SetHandler(h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

func (a *Adapter) currentHandler() Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handler
}

// SyncPlaceMarkers removes every place marker and creates one per place. The
// selected place gets the elevated style.
func (a *Adapter) SyncPlaceMarkers(places []types.Place, selectedID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, m := range a.placeMarkers {
		a.widget.RemoveMarker(m)
	}
	a.placeMarkers = a.placeMarkers[:0]
	a.elevatedID = ""

	for _, p := range places {
		style := StylePlace
		if p.ID == selectedID && a.elevatedID == "" {
			style = StyleElevated
			a.elevatedID = p.ID
		}
		id := p.ID
		a.placeMarkers = append(a.placeMarkers, a.widget.AddMarker(MarkerSpec{
			Position: p.Location,
			Style:    style,
			Title:    p.Name,
			Category: p.Category,
			OnClick:  func() { a.markerClicked(id) },
		}))
	}
	a.logger.Debug("Place markers synced", slog.Int("count", len(places)), slog.String("selected", a.elevatedID))
}

func (a *Adapter) markerClicked(placeID string) {
	if h := a.currentHandler(); h != nil {
		h.MarkerClicked(placeID)
	}
}

// SetCandidateMarker shows, moves or hides the candidate marker. Repeating the
// current position does not touch the widget.
func (a *Adapter) SetCandidateMarker(c *types.Coordinate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.candidate = a.setSlot(a.candidate, c, StyleCandidate)
}

// SetUserLocationMarker shows, moves or hides the user-location marker.
func (a *Adapter) SetUserLocationMarker(c *types.Coordinate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userLocation = a.setSlot(a.userLocation, c, StyleUserLocation)
}

func (a *Adapter) setSlot(current *slotMarker, c *types.Coordinate, style MarkerStyle) *slotMarker {
	if current == nil && c == nil {
		return nil
	}
	if current != nil && c != nil && current.position == *c {
		return current
	}
	if current != nil {
		a.widget.RemoveMarker(current.handle)
	}
	if c == nil {
		return nil
	}
	return &slotMarker{
		position: *c,
		handle:   a.widget.AddMarker(MarkerSpec{Position: *c, Style: style}),
	}
}

// PanTo recenters the widget. No lock is held so the widget may report the
// resulting center change synchronously.
func (a *Adapter) PanTo(c types.Coordinate) {
	a.widget.PanTo(c)
}

// FitBounds zooms to the given places when the widget supports it.
func (a *Adapter) FitBounds(places []types.Place) bool {
	setter, ok := a.widget.(BoundsSetter)
	if !ok {
		return false
	}
	points := make([]types.Coordinate, len(places))
	for i, p := range places {
		points[i] = p.Location
	}
	bounds, ok := types.BoundsOf(points)
	if !ok {
		return false
	}
	setter.SetBounds(bounds)
	return true
}

// ElevatedID is the place whose marker is elevated, empty when none.
func (a *Adapter) ElevatedID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.elevatedID
}

// PlaceMarkerCount is the number of live place markers.
func (a *Adapter) PlaceMarkerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.placeMarkers)
}
