// Package selection implements the interaction mode of the map: browsing with
// an optional selected place, placing a new pin, or moving an existing one.
package selection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/FACorreiaa/bungmap/internal/domain/auth"
	"github.com/FACorreiaa/bungmap/internal/domain/mapview"
	"github.com/FACorreiaa/bungmap/internal/types"
)

var _ mapview.Handler = (*Machine)(nil)

// Mode is the current interaction mode.
type Mode int

const (
	ModeBrowsing Mode = iota
	ModePlacingNewPin
	ModeEditingLocation
)

func (m Mode) String() string {
	switch m {
	case ModeBrowsing:
		return "browsing"
	case ModePlacingNewPin:
		return "placingNewPin"
	case ModeEditingLocation:
		return "editingLocation"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// State is a snapshot of the machine. SelectedID is only set while browsing,
// TargetID only while editing, Pending only outside browsing.
type State struct {
	Mode       Mode
	SelectedID string
	TargetID   string
	Pending    *types.Coordinate
}

func (s State) String() string {
	switch s.Mode {
	case ModeBrowsing:
		return fmt.Sprintf("Browsing(%s)", orNone(s.SelectedID))
	case ModePlacingNewPin:
		return fmt.Sprintf("PlacingNewPin(%s)", pendingString(s.Pending))
	default:
		return fmt.Sprintf("EditingLocation(%s,%s)", s.TargetID, pendingString(s.Pending))
	}
}

// Equal compares two snapshots, including the pending coordinate value.
func (s State) Equal(o State) bool {
	return s.Mode == o.Mode && s.SelectedID == o.SelectedID && s.TargetID == o.TargetID &&
		types.SameCoordinate(s.Pending, o.Pending)
}

func (s State) clone() State {
	if s.Pending != nil {
		s.Pending = s.Pending.Ptr()
	}
	return s
}

func orNone(id string) string {
	if id == "" {
		return "none"
	}
	return id
}

func pendingString(c *types.Coordinate) string {
	if c == nil {
		return "none"
	}
	return c.String()
}

// Observer reacts to the machine. Calls are made without any lock held.
type Observer interface {
	StateChanged(prev, next State)
	FocusPlace(placeID string)
}

// CreateFunc creates a place at the confirmed location and returns its id.
type CreateFunc func(ctx context.Context, at types.Coordinate) (string, error)

// MoveFunc moves an existing place.
type MoveFunc func(ctx context.Context, placeID string, to types.Coordinate) error

// Machine is the selection and mode state machine. It starts in
// Browsing(none) and never terminates.
type Machine struct {
	logger   *slog.Logger
	observer Observer

	mu          sync.Mutex
	state       State
	previous    string
	trackCenter bool
	inFlight    bool
}

func NewMachine(observer Observer, logger *slog.Logger) *Machine {
	return &Machine{
		logger:   logger,
		observer: observer,
		state:    State{Mode: ModeBrowsing},
	}
}

// SetCenterTracking makes the candidate follow the map center while placing a
// new pin. Editing a location always follows the center.
func (m *Machine) SetCenterTracking(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackCenter = on
}

// State returns the current snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// transition applies fn under the lock and notifies the observer if the state
// changed.
func (m *Machine) transition(event string, fn func(s *State) error) error {
	m.mu.Lock()
	prev := m.state.clone()
	next := m.state.clone()
	if err := fn(&next); err != nil {
		m.mu.Unlock()
		m.logger.Debug("Transition rejected", slog.String("event", event), slog.String("state", prev.String()), slog.Any("error", err))
		return err
	}
	m.state = next
	m.mu.Unlock()

	if !prev.Equal(next) {
		m.logger.Debug("Transition", slog.String("event", event), slog.String("from", prev.String()), slog.String("to", next.String()))
		if m.observer != nil {
			m.observer.StateChanged(prev, next.clone())
		}
	}
	return nil
}

func invalid(event string, s *State) error {
	return fmt.Errorf("%s in %s: %w", event, s, types.ErrInvalidTransition)
}

// StartAdd enters placement mode with no candidate and clears the selection.
func (m *Machine) StartAdd() error {
	return m.transition("startAdd", func(s *State) error {
		if s.Mode != ModeBrowsing {
			return invalid("startAdd", s)
		}
		m.previous = s.SelectedID
		*s = State{Mode: ModePlacingNewPin}
		return nil
	})
}

// MapClicked sets the candidate while placing a new pin and is ignored
// otherwise.
func (m *Machine) MapClicked(c types.Coordinate) {
	_ = m.transition("mapClicked", func(s *State) error {
		if s.Mode == ModePlacingNewPin {
			s.Pending = c.Ptr()
		}
		return nil
	})
}

// CenterChanged moves the candidate with the map center when tracking.
func (m *Machine) CenterChanged(c types.Coordinate) {
	_ = m.transition("centerChanged", func(s *State) error {
		switch {
		case s.Mode == ModePlacingNewPin && m.trackCenter:
			s.Pending = c.Ptr()
		case s.Mode == ModeEditingLocation:
			s.Pending = c.Ptr()
		}
		return nil
	})
}

// MarkerClicked selects the place and asks for the map to recenter on it.
// Clicks are ignored while placing a new pin.
func (m *Machine) MarkerClicked(placeID string) {
	err := m.transition("markerClicked", func(s *State) error {
		if s.Mode == ModePlacingNewPin {
			return invalid("markerClicked", s)
		}
		*s = State{Mode: ModeBrowsing, SelectedID: placeID}
		return nil
	})
	if err == nil && m.observer != nil {
		m.observer.FocusPlace(placeID)
	}
}

// Select selects a place while browsing.
func (m *Machine) Select(placeID string) error {
	return m.transition("select", func(s *State) error {
		if s.Mode != ModeBrowsing {
			return invalid("select", s)
		}
		s.SelectedID = placeID
		return nil
	})
}

// ClearSelection drops the selection while browsing.
func (m *Machine) ClearSelection() error {
	return m.Select("")
}

// ClearIfSelected forgets placeID wherever it is referenced, e.g. after the
// place was deleted.
func (m *Machine) ClearIfSelected(placeID string) {
	_ = m.transition("clearIfSelected", func(s *State) error {
		switch {
		case s.Mode == ModeBrowsing && s.SelectedID == placeID:
			s.SelectedID = ""
		case s.Mode == ModeEditingLocation && s.TargetID == placeID:
			*s = State{Mode: ModeBrowsing}
		}
		if m.previous == placeID {
			m.previous = ""
		}
		return nil
	})
}

// ConfirmPlacement creates a place at the candidate location. Without a
// candidate it does nothing and reports false. On success the new place is
// selected; on failure the machine stays in placement mode.
func (m *Machine) ConfirmPlacement(ctx context.Context, create CreateFunc) (bool, error) {
	var (
		at      types.Coordinate
		started bool
	)
	err := m.transition("confirmPlacement", func(s *State) error {
		if s.Mode != ModePlacingNewPin || m.inFlight {
			return invalid("confirmPlacement", s)
		}
		if s.Pending != nil {
			at, started = *s.Pending, true
			m.inFlight = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if !started {
		m.logger.DebugContext(ctx, "Confirm without candidate ignored")
		return false, nil
	}

	id, createErr := create(ctx, at)

	_ = m.transition("placementResolved", func(s *State) error {
		m.inFlight = false
		if createErr != nil || s.Mode != ModePlacingNewPin {
			return nil
		}
		m.previous = ""
		*s = State{Mode: ModeBrowsing, SelectedID: id}
		return nil
	})
	if createErr != nil {
		return false, createErr
	}
	return true, nil
}

// Cancel leaves placement or edit mode without mutating anything.
func (m *Machine) Cancel() {
	_ = m.transition("cancel", func(s *State) error {
		switch s.Mode {
		case ModePlacingNewPin:
			*s = State{Mode: ModeBrowsing, SelectedID: m.previous}
			m.previous = ""
		case ModeEditingLocation:
			*s = State{Mode: ModeBrowsing, SelectedID: s.TargetID}
		}
		return nil
	})
}

// StartEditLocation enters edit mode for the selected place when identity may
// modify it. The candidate starts at the place's current location.
func (m *Machine) StartEditLocation(identity *types.Identity, place types.Place) error {
	return m.transition("startEditLocation", func(s *State) error {
		if s.Mode != ModeBrowsing || s.SelectedID == "" || s.SelectedID != place.ID {
			return invalid("startEditLocation", s)
		}
		if !auth.CanModify(identity, place.UserID) {
			return fmt.Errorf("edit location of %s: %w", place.ID, types.ErrPermissionDenied)
		}
		*s = State{Mode: ModeEditingLocation, TargetID: place.ID, Pending: place.Location.Ptr()}
		return nil
	})
}

// ConfirmEditLocation moves the target place to the candidate location. On
// failure the machine stays in edit mode so the user can retry or cancel.
func (m *Machine) ConfirmEditLocation(ctx context.Context, move MoveFunc) error {
	var (
		target string
		to     types.Coordinate
	)
	err := m.transition("confirmEditLocation", func(s *State) error {
		if s.Mode != ModeEditingLocation || s.Pending == nil || m.inFlight {
			return invalid("confirmEditLocation", s)
		}
		target, to = s.TargetID, *s.Pending
		m.inFlight = true
		return nil
	})
	if err != nil {
		return err
	}

	moveErr := move(ctx, target, to)

	_ = m.transition("editLocationResolved", func(s *State) error {
		m.inFlight = false
		if moveErr != nil || s.Mode != ModeEditingLocation || s.TargetID != target {
			return nil
		}
		*s = State{Mode: ModeBrowsing, SelectedID: target}
		return nil
	})
	return moveErr
}
