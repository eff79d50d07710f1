package places

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/bungmap/internal/types"
)

// maxSeedInFlight bounds concurrent creates during a sample import.
const maxSeedInFlight = 4

// SampleDrafts are the stands offered by the admin "seed data" action.
var SampleDrafts = []types.PlaceDraft{
	{
		Name: "강남역 붕어빵", Description: "강남역 11번 출구 앞",
		Location: types.Coordinate{Lat: 37.498095, Lng: 127.027610}, Category: types.CategoryRedBean,
		PriceInfo: "3개 2000원", PaymentMethods: []string{types.PaymentCash, types.PaymentTransfer},
	},
	{
		Name: "부산 해운대 잉어빵", Description: "해운대 해수욕장 입구",
		Location: types.Coordinate{Lat: 35.158698, Lng: 129.160384}, Category: types.CategoryShuCream,
		PriceInfo: "2개 1000원", PaymentMethods: []string{types.PaymentCash},
	},
	{
		Name: "전주 한옥마을 붕어", Description: "한옥마을 골목 안쪽",
		Location: types.Coordinate{Lat: 35.814708, Lng: 127.152632}, Category: types.CategoryRedBean,
		PriceInfo: "4개 3000원", PaymentMethods: []string{types.PaymentCash, types.PaymentCard},
	},
	{
		Name: "제주 공항 붕어빵", Description: "공항 버스 정류장 옆",
		Location: types.Coordinate{Lat: 33.510413, Lng: 126.491353}, Category: types.CategoryPizza,
		PriceInfo: "1개 1000원", PaymentMethods: []string{types.PaymentCard},
	},
	{
		Name: "홍대 입구 슈크림", Description: "홍대입구역 9번 출구",
		Location: types.Coordinate{Lat: 37.556263, Lng: 126.922960}, Category: types.CategoryShuCream,
		PriceInfo: "3개 2000원", PaymentMethods: []string{types.PaymentCash, types.PaymentTransfer},
	},
	{
		Name: "대전 성심당 근처", Description: "은행동 성심당 맞은편",
		Location: types.Coordinate{Lat: 36.327666, Lng: 127.427329}, Category: types.CategoryOther,
		PriceInfo: "2개 1500원", PaymentMethods: []string{types.PaymentCash},
	},
	{
		Name: "대구 동성로 미니붕어", Description: "동성로 중앙 광장",
		Location: types.Coordinate{Lat: 35.868615, Lng: 128.598687}, Category: types.CategoryRedBean,
		PriceInfo: "10개 3000원", PaymentMethods: []string{types.PaymentCash, types.PaymentTransfer},
	},
	{
		Name: "광주 펭귄마을 붕어", Description: "펭귄마을 입구 포장마차",
		Location: types.Coordinate{Lat: 35.139686, Lng: 126.913543}, Category: types.CategoryRedBean,
		PriceInfo: "3개 2000원", PaymentMethods: []string{types.PaymentCash},
	},
}

// SeedSamples creates the given drafts on behalf of an admin. Places created
// before a failure are kept, in draft order, and the first error is returned.
func (s *Store) SeedSamples(ctx context.Context, identity *types.Identity, drafts []types.PlaceDraft) ([]types.Place, error) {
	ctx, span := otel.Tracer("PlaceStore").Start(ctx, "SeedSamples")
	defer span.End()

	l := s.logger.With(slog.String("method", "SeedSamples"), slog.Int("count", len(drafts)))
	l.DebugContext(ctx, "Seeding sample places")

	if identity == nil || !identity.IsAdmin {
		err := fmt.Errorf("sample import is reserved to admins: %w", types.ErrPermissionDenied)
		span.RecordError(err)
		span.SetStatus(codes.Error, "not admin")
		return nil, err
	}

	created := make([]*types.Place, len(drafts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSeedInFlight)
	for i, draft := range drafts {
		g.Go(func() error {
			place, err := s.createRemote(gctx, draft, identity.ID)
			if err != nil {
				l.ErrorContext(gctx, "Failed to seed place", slog.String("name", draft.Name), slog.Any("error", err))
				return fmt.Errorf("failed seeding %s: %w", draft.Name, err)
			}
			created[i] = &place
			return nil
		})
	}
	err := g.Wait()

	out := make([]types.Place, 0, len(drafts))
	for _, p := range created {
		if p != nil {
			out = append(out, *p)
		}
	}
	s.appendPlaces(out...)

	span.SetAttributes(attribute.Int("places.seeded", len(out)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "seed failed")
		return out, err
	}
	span.SetStatus(codes.Ok, "")
	l.InfoContext(ctx, "Sample places seeded", slog.Int("created", len(out)))
	return out, nil
}
