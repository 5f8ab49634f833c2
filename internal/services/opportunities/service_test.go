package opportunities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/cache"
	"github.com/blueocean-labs/explorer-api/internal/domain/market"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/services/markets"
	"github.com/blueocean-labs/explorer-api/internal/storage/memory"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

var owner = principal.Projection{ID: "u-owner", Email: "owner@example.com", Role: principal.RoleAnalyst}

func newTestService(t *testing.T) (*Service, market.Market) {
	t.Helper()
	store := memory.New()
	log := logger.NewDefault("opportunities-test")
	marketsSvc := markets.NewService(store, cache.NewMemory(), log)

	m, err := marketsSvc.Create(context.Background(), owner, markets.Input{Name: "EV charging"})
	require.NoError(t, err)

	return NewService(store, marketsSvc, log), m
}

func TestBlueOceanScore(t *testing.T) {
	tests := []struct {
		name                                string
		size, competition, feasibility, want float64
	}{
		{"all max with no competition", 10, 0, 10, 10},
		{"all zero with max competition", 0, 10, 0, 0},
		{"midpoints", 5, 5, 5, 5},
		{"weighted mix", 8, 2, 6, 7.4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, BlueOceanScore(tc.size, tc.competition, tc.feasibility), 0.001)
		})
	}
}

func TestCreateComputesScore(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, m.ID, Input{
		Title:            "Rural fast chargers",
		MarketSize:       8,
		CompetitionLevel: 2,
		Feasibility:      6,
	})
	require.NoError(t, err)
	require.InDelta(t, 7.4, created.Score, 0.001)
	require.Equal(t, owner.ID, created.OwnerID)
}

func TestCreateValidatesInputs(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   Input
	}{
		{"missing title", Input{MarketSize: 5, CompetitionLevel: 5, Feasibility: 5}},
		{"market size out of range", Input{Title: "t", MarketSize: 11, CompetitionLevel: 5, Feasibility: 5}},
		{"negative feasibility", Input{Title: "t", MarketSize: 5, CompetitionLevel: 5, Feasibility: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, owner, m.ID, tc.in)
			require.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}
}

func TestCreateUnknownMarket(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), owner, "missing", Input{
		Title: "t", MarketSize: 5, CompetitionLevel: 5, Feasibility: 5,
	})
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestUpdateRecomputesScore(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, m.ID, Input{
		Title: "t", MarketSize: 5, CompetitionLevel: 5, Feasibility: 5,
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, owner, m.ID, created.ID, Input{
		Title: "t", MarketSize: 10, CompetitionLevel: 0, Feasibility: 10,
	})
	require.NoError(t, err)
	require.InDelta(t, 10, updated.Score, 0.001)
}

func TestGetScopedToMarket(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, m.ID, Input{
		Title: "t", MarketSize: 5, CompetitionLevel: 5, Feasibility: 5,
	})
	require.NoError(t, err)

	// Reaching the opportunity through the wrong market id fails.
	_, err = svc.Get(ctx, owner, "other-market", created.ID)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestListAndDelete(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, m.ID, Input{
		Title: "t", MarketSize: 5, CompetitionLevel: 5, Feasibility: 5,
	})
	require.NoError(t, err)

	listed, err := svc.List(ctx, owner, m.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, svc.Delete(ctx, owner, m.ID, created.ID))
	listed, err = svc.List(ctx, owner, m.ID)
	require.NoError(t, err)
	require.Empty(t, listed)
}
