// Package app is the root of the map client. It owns the place and review
// stores, the selection machine and the map adapter, and turns user actions
// into calls on them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/FACorreiaa/bungmap/internal/domain/auth"
	"github.com/FACorreiaa/bungmap/internal/domain/mapview"
	"github.com/FACorreiaa/bungmap/internal/domain/places"
	"github.com/FACorreiaa/bungmap/internal/domain/reviews"
	"github.com/FACorreiaa/bungmap/internal/domain/selection"
	"github.com/FACorreiaa/bungmap/internal/types"
)

var _ selection.Observer = (*App)(nil)

// Deps are the collaborators of an App.
type Deps struct {
	Session        *auth.Session
	Places         *places.Store
	Reviews        *reviews.Store
	Adapter        *mapview.Adapter
	Locator        mapview.Locator
	Notifier       Notifier
	Logger         *slog.Logger
	CenterTracking bool
}

// App is the map client.
type App struct {
	logger   *slog.Logger
	session  *auth.Session
	places   *places.Store
	reviews  *reviews.Store
	adapter  *mapview.Adapter
	machine  *selection.Machine
	locator  mapview.Locator
	notifier Notifier

	background sync.WaitGroup

	mu               sync.Mutex
	ctx              context.Context
	identity         *types.Identity
	hydrated         bool
	permissionDenied bool
	fitted           bool
	unsubscribe      func()
}

func New(deps Deps) *App {
	a := &App{
		logger:   deps.Logger,
		session:  deps.Session,
		places:   deps.Places,
		reviews:  deps.Reviews,
		adapter:  deps.Adapter,
		locator:  deps.Locator,
		notifier: deps.Notifier,
		ctx:      context.Background(),
	}
	if a.notifier == nil {
		a.notifier = LogNotifier{Logger: deps.Logger}
	}
	a.machine = selection.NewMachine(a, deps.Logger)
	a.machine.SetCenterTracking(deps.CenterTracking)
	a.adapter.SetHandler(a.machine)
	return a
}

// Start subscribes to the session and resolves it. The place collection is
// loaded the first time a signed-in identity appears. ctx bounds every
// background load started by the app.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	unsubscribe := a.session.Subscribe(func(identity *types.Identity) {
		a.identityChanged(ctx, identity)
	})
	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.mu.Unlock()

	return a.session.Start(ctx)
}

// Close unsubscribes from the session and waits for background loads.
func (a *App) Close() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	a.background.Wait()
}

// Wait blocks until background review loads have finished.
func (a *App) Wait() {
	a.background.Wait()
}

func (a *App) identityChanged(ctx context.Context, identity *types.Identity) {
	a.mu.Lock()
	a.identity = identity
	hydrate := identity != nil && !a.hydrated
	if hydrate {
		a.hydrated = true
	}
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "Identity changed", slog.Bool("signed_in", identity != nil))
	if identity == nil {
		a.machine.Cancel()
		return
	}
	if hydrate {
		_ = a.load(ctx)
	}
}

// Reload retries loading the place collection. It is the only way out of the
// permission-denied banner.
func (a *App) Reload(ctx context.Context) error {
	return a.load(ctx)
}

func (a *App) load(ctx context.Context) error {
	l := a.logger.With(slog.String("method", "load"))
	err := a.places.Load(ctx)

	a.mu.Lock()
	switch {
	case errors.Is(err, types.ErrPermissionDenied):
		a.permissionDenied = true
	case err == nil:
		a.permissionDenied = false
	}
	fit := err == nil && !a.fitted
	a.mu.Unlock()

	switch {
	case errors.Is(err, types.ErrPermissionDenied):
		l.WarnContext(ctx, "Place load denied", slog.Any("error", err))
	case err != nil:
		a.notifier.Notify(ctx, Notice{Kind: NoticeError, Message: "장소 목록을 불러오지 못했습니다", Err: err})
	}

	a.syncMarkers()
	if fit && a.adapter.FitBounds(a.places.Places()) {
		a.mu.Lock()
		a.fitted = true
		a.mu.Unlock()
	}
	return err
}

// StateChanged keeps markers and reviews in step with the machine.
func (a *App) StateChanged(prev, next selection.State) {
	a.adapter.SetCandidateMarker(next.Pending)

	if prevID, nextID := focusedID(prev), focusedID(next); prevID != nextID {
		a.syncMarkers()
		if nextID == "" {
			a.reviews.Clear()
		} else {
			ctx, ticket := a.baseContext(), a.reviews.Select(nextID)
			a.background.Go(func() {
				a.reviews.Fetch(ctx, ticket)
			})
		}
	}

	if next.Mode == selection.ModeEditingLocation && prev.Mode != selection.ModeEditingLocation && next.Pending != nil {
		a.adapter.PanTo(*next.Pending)
	}
}

// FocusPlace recenters the map on a place.
func (a *App) FocusPlace(placeID string) {
	if place, ok := a.places.Get(placeID); ok {
		a.adapter.PanTo(place.Location)
	}
}

func focusedID(s selection.State) string {
	if s.Mode == selection.ModeEditingLocation {
		return s.TargetID
	}
	return s.SelectedID
}

func (a *App) syncMarkers() {
	a.adapter.SyncPlaceMarkers(a.places.Places(), focusedID(a.machine.State()))
}

func (a *App) baseContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx
}

func (a *App) requireIdentity() (*types.Identity, error) {
	identity := a.Identity()
	if identity == nil {
		return nil, fmt.Errorf("sign in required: %w: %w", types.ErrPermissionDenied, types.ErrUnauthenticated)
	}
	return identity, nil
}

func (a *App) fail(ctx context.Context, message string, err error) error {
	if err != nil && !errors.Is(err, types.ErrInvalidTransition) {
		a.notifier.Notify(ctx, Notice{Kind: NoticeError, Message: message, Err: err})
	}
	return err
}

// StartAdd enters placement mode.
func (a *App) StartAdd(ctx context.Context) error {
	if _, err := a.requireIdentity(); err != nil {
		return a.fail(ctx, "로그인이 필요합니다", err)
	}
	return a.machine.StartAdd()
}

// SubmitNewPlace creates a place at the candidate location. It reports false
// without error when no location has been picked yet. A draft without a
// category gets one guessed from its name and description.
func (a *App) SubmitNewPlace(ctx context.Context, draft types.PlaceDraft) (types.Place, bool, error) {
	identity, err := a.requireIdentity()
	if err != nil {
		return types.Place{}, false, a.fail(ctx, "로그인이 필요합니다", err)
	}
	if draft.Category == "" {
		draft.Category = types.CategoryRedBean
		if suggested, ok := places.SuggestCategory(draft.Name + " " + draft.Description); ok {
			draft.Category = suggested
		}
	}

	var created types.Place
	accepted, err := a.machine.ConfirmPlacement(ctx, func(ctx context.Context, at types.Coordinate) (string, error) {
		draft.Location = at
		place, err := a.places.Create(ctx, draft, identity.ID)
		if err != nil {
			return "", err
		}
		created = place
		return place.ID, nil
	})
	if err != nil {
		return types.Place{}, false, a.fail(ctx, "장소를 등록하지 못했습니다", err)
	}
	if accepted {
		a.syncMarkers()
	}
	return created, accepted, nil
}

// CancelPlacement leaves placement or edit mode.
func (a *App) CancelPlacement() {
	a.machine.Cancel()
}

// StartEditLocation enters edit mode for the selected place.
func (a *App) StartEditLocation(ctx context.Context) error {
	state := a.machine.State()
	place, ok := a.places.Get(state.SelectedID)
	if state.Mode != selection.ModeBrowsing || !ok {
		return fmt.Errorf("no place selected: %w", types.ErrInvalidTransition)
	}
	return a.fail(ctx, "이 장소를 수정할 권한이 없습니다", a.machine.StartEditLocation(a.Identity(), place))
}

// ConfirmEditLocation moves the edited place to the candidate location.
func (a *App) ConfirmEditLocation(ctx context.Context) error {
	err := a.machine.ConfirmEditLocation(ctx, func(ctx context.Context, id string, to types.Coordinate) error {
		_, err := a.places.Update(ctx, id, types.PlacePatch{Location: &to})
		return err
	})
	if err != nil {
		return a.fail(ctx, "위치를 수정하지 못했습니다", err)
	}
	a.syncMarkers()
	return nil
}

// UpdatePlace edits the fields of a place the user may modify.
func (a *App) UpdatePlace(ctx context.Context, id string, patch types.PlacePatch) (types.Place, error) {
	place, ok := a.places.Get(id)
	if !ok {
		return types.Place{}, fmt.Errorf("place %s: %w", id, types.ErrNotFound)
	}
	if !auth.CanModify(a.Identity(), place.UserID) {
		return types.Place{}, a.fail(ctx, "이 장소를 수정할 권한이 없습니다", fmt.Errorf("update %s: %w", id, types.ErrPermissionDenied))
	}
	updated, err := a.places.Update(ctx, id, patch)
	if err != nil {
		return types.Place{}, a.fail(ctx, "장소를 수정하지 못했습니다", err)
	}
	a.syncMarkers()
	return updated, nil
}

// DeletePlace removes a place. Deleting a place that is not known locally is
// a no-op on this side.
func (a *App) DeletePlace(ctx context.Context, id string) error {
	if place, ok := a.places.Get(id); ok && !auth.CanModify(a.Identity(), place.UserID) {
		return a.fail(ctx, "이 장소를 삭제할 권한이 없습니다", fmt.Errorf("delete %s: %w", id, types.ErrPermissionDenied))
	}
	if err := a.places.Delete(ctx, id); err != nil {
		return a.fail(ctx, "장소를 삭제하지 못했습니다", err)
	}
	a.machine.ClearIfSelected(id)
	a.syncMarkers()
	return nil
}

// SelectPlace selects a place from a list rather than the map.
func (a *App) SelectPlace(id string) error {
	if _, ok := a.places.Get(id); !ok {
		return fmt.Errorf("place %s: %w", id, types.ErrNotFound)
	}
	return a.machine.Select(id)
}

// ClearSelection closes the detail view.
func (a *App) ClearSelection() error {
	return a.machine.ClearSelection()
}

// AddReview reviews the selected place. The nickname defaults to the user's
// display name.
func (a *App) AddReview(ctx context.Context, draft types.ReviewDraft) (types.Review, error) {
	identity, err := a.requireIdentity()
	if err != nil {
		return types.Review{}, a.fail(ctx, "로그인이 필요합니다", err)
	}
	if draft.PlaceID == "" {
		draft.PlaceID = a.machine.State().SelectedID
	}
	if strings.TrimSpace(draft.Nickname) == "" {
		draft.Nickname = identity.DefaultNickname()
	}
	review, err := a.reviews.Create(ctx, draft, identity.ID)
	if err != nil {
		return types.Review{}, a.fail(ctx, "리뷰를 등록하지 못했습니다", err)
	}
	return review, nil
}

// UpdateReview edits a review of the selected place.
func (a *App) UpdateReview(ctx context.Context, id string, patch types.ReviewPatch) (types.Review, error) {
	if err := a.checkReviewOwner(ctx, id); err != nil {
		return types.Review{}, err
	}
	review, err := a.reviews.Update(ctx, id, patch)
	if err != nil {
		return types.Review{}, a.fail(ctx, "리뷰를 수정하지 못했습니다", err)
	}
	return review, nil
}

// DeleteReview removes a review of the selected place.
func (a *App) DeleteReview(ctx context.Context, id string) error {
	if err := a.checkReviewOwner(ctx, id); err != nil {
		return err
	}
	if err := a.reviews.Delete(ctx, id); err != nil {
		return a.fail(ctx, "리뷰를 삭제하지 못했습니다", err)
	}
	return nil
}

func (a *App) checkReviewOwner(ctx context.Context, id string) error {
	for _, r := range a.reviews.Reviews() {
		if r.ID == id {
			if !auth.CanModify(a.Identity(), r.UserID) {
				return a.fail(ctx, "이 리뷰를 수정할 권한이 없습니다", fmt.Errorf("review %s: %w", id, types.ErrPermissionDenied))
			}
			return nil
		}
	}
	return fmt.Errorf("review %s: %w", id, types.ErrNotFound)
}

// LocateMe asks the geolocation provider once and shows the result.
func (a *App) LocateMe(ctx context.Context) (types.Coordinate, error) {
	if a.locator == nil {
		return types.Coordinate{}, a.fail(ctx, "위치 정보를 사용할 수 없습니다", errors.New("no geolocation provider"))
	}
	pos, err := a.locator.CurrentPosition(ctx)
	if err == nil {
		err = pos.Validate()
	}
	if err != nil {
		return types.Coordinate{}, a.fail(ctx, "현재 위치를 가져올 수 없습니다", err)
	}
	a.adapter.SetUserLocationMarker(&pos)
	a.adapter.PanTo(pos)
	return pos, nil
}

// SeedSamples imports the sample stands. Admin only.
func (a *App) SeedSamples(ctx context.Context) ([]types.Place, error) {
	created, err := a.places.SeedSamples(ctx, a.Identity(), places.SampleDrafts)
	if len(created) > 0 {
		a.syncMarkers()
	}
	if err != nil {
		return created, a.fail(ctx, "샘플 데이터를 추가하지 못했습니다", err)
	}
	a.notifier.Notify(ctx, Notice{Kind: NoticeInfo, Message: fmt.Sprintf("샘플 %d개를 추가했습니다", len(created))})
	return created, nil
}

// SignIn signs in through the session.
func (a *App) SignIn(ctx context.Context, creds types.Credentials) (*types.Identity, error) {
	identity, err := a.session.SignIn(ctx, creds)
	if err != nil {
		return nil, a.fail(ctx, "로그인에 실패했습니다", err)
	}
	return identity, nil
}

// SignOut signs out through the session.
func (a *App) SignOut(ctx context.Context) error {
	return a.fail(ctx, "로그아웃에 실패했습니다", a.session.SignOut(ctx))
}

// Identity is the signed-in user, nil when signed out.
func (a *App) Identity() *types.Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.identity.Clone()
}

// PermissionDenied reports whether a place load was rejected by the store's
// policy since the last successful one. Other failures leave it unchanged.
func (a *App) PermissionDenied() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.permissionDenied
}

// CanModify reports whether the signed-in user may change a record owned by
// ownerID.
func (a *App) CanModify(ownerID string) bool {
	return auth.CanModify(a.Identity(), ownerID)
}

// State is the current selection mode.
func (a *App) State() selection.State {
	return a.machine.State()
}

// Places lists the known places.
func (a *App) Places() []types.Place {
	return a.places.Places()
}

// Selected returns the selected place.
func (a *App) Selected() (types.Place, bool) {
	id := a.machine.State().SelectedID
	if id == "" {
		return types.Place{}, false
	}
	return a.places.Get(id)
}

// Reviews lists the reviews of the selected place, newest first.
func (a *App) Reviews() []types.Review {
	return a.reviews.Reviews()
}

// ReviewSummary aggregates the ratings of the selected place.
func (a *App) ReviewSummary() types.ReviewSummary {
	return a.reviews.Summary()
}
