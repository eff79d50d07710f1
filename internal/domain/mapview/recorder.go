package mapview

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/FACorreiaa/bungmap/internal/types"
)

var (
	_ Widget       = (*Recorder)(nil)
	_ BoundsSetter = (*Recorder)(nil)
)

// RecordedMarker is a live marker held by a Recorder.
type RecordedMarker struct {
	ID   int
	Spec MarkerSpec
}

// Recorder is a headless Widget. It keeps the live markers and the current
// center, counts commands, and lets callers inject user interactions.
type Recorder struct {
	logger *slog.Logger

	mu        sync.Mutex
	center    types.Coordinate
	zoom      int
	bounds    *types.Bounds
	nextID    int
	markers   map[int]MarkerSpec
	listeners map[Event][]func(types.Coordinate)

	adds    int
	removes int
	pans    int
}

// NewRecorder creates a widget centered at center.
func NewRecorder(center types.Coordinate, zoom int, logger *slog.Logger) *Recorder {
	return &Recorder{
		logger:    logger,
		center:    center,
		zoom:      zoom,
		markers:   make(map[int]MarkerSpec),
		listeners: make(map[Event][]func(types.Coordinate)),
	}
}

func (r *Recorder) PanTo(c types.Coordinate) {
	r.mu.Lock()
	r.pans++
	changed := r.center != c
	r.center = c
	r.mu.Unlock()

	r.logger.Debug("pan", slog.String("center", c.String()))
	if changed {
		r.emit(EventCenterChanged, c)
	}
}

func (r *Recorder) AddMarker(spec MarkerSpec) Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adds++
	r.nextID++
	r.markers[r.nextID] = spec
	return r.nextID
}

func (r *Recorder) RemoveMarker(m Marker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removes++
	if id, ok := m.(int); ok {
		delete(r.markers, id)
	}
}

func (r *Recorder) On(event Event, fn func(types.Coordinate)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[event] = append(r.listeners[event], fn)
}

func (r *Recorder) SetBounds(b types.Bounds) {
	r.mu.Lock()
	r.bounds = &b
	center := types.Coordinate{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
	}
	changed := r.center != center
	r.center = center
	r.mu.Unlock()

	if changed {
		r.emit(EventCenterChanged, center)
	}
}

// Click simulates a user click on the map.
func (r *Recorder) Click(c types.Coordinate) {
	r.emit(EventClick, c)
}

// Drag simulates the user moving the map so its center becomes c.
func (r *Recorder) Drag(c types.Coordinate) {
	r.mu.Lock()
	r.center = c
	r.mu.Unlock()
	r.emit(EventCenterChanged, c)
}

// ClickMarker simulates a click on the first live marker titled title.
func (r *Recorder) ClickMarker(title string) bool {
	var onClick func()
	for _, m := range r.Markers() {
		if m.Spec.Title == title && m.Spec.OnClick != nil {
			onClick = m.Spec.OnClick
			break
		}
	}
	if onClick == nil {
		return false
	}
	onClick()
	return true
}

func (r *Recorder) emit(event Event, c types.Coordinate) {
	r.mu.Lock()
	listeners := append([]func(types.Coordinate){}, r.listeners[event]...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(c)
	}
}

// Center is the current map center.
func (r *Recorder) Center() types.Coordinate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.center
}

// Bounds is the last box passed to SetBounds.
func (r *Recorder) Bounds() (types.Bounds, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bounds == nil {
		return types.Bounds{}, false
	}
	return *r.bounds, true
}

// Markers lists live markers in creation order.
func (r *Recorder) Markers() []RecordedMarker {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedMarker, 0, len(r.markers))
	for id, spec := range r.markers {
		out = append(out, RecordedMarker{ID: id, Spec: spec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkersWithStyle lists live markers of one style.
func (r *Recorder) MarkersWithStyle(style MarkerStyle) []RecordedMarker {
	var out []RecordedMarker
	for _, m := range r.Markers() {
		if m.Spec.Style == style {
			out = append(out, m)
		}
	}
	return out
}

// Mutations is the number of add and remove commands received so far.
func (r *Recorder) Mutations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adds + r.removes
}

// Pans is the number of PanTo commands received so far.
func (r *Recorder) Pans() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pans
}

// Zoom is the zoom level the widget was created with.
func (r *Recorder) Zoom() int {
	return r.zoom
}
