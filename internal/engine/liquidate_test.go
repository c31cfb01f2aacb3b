package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/julesdo/seedmedia-sub002/internal/model"
	"github.com/julesdo/seedmedia-sub002/internal/store"
)

// liquidationFixture builds a resolved-ready market with hand-set reserves
// so the payout arithmetic is exact.
func liquidationFixture(t *testing.T, svc *Service, st *store.MemoryStore) string {
	t.Helper()
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "0")

	// YES reserve 800 with 100 real shares, NO reserve 200 with 50.
	require.NoError(t, st.UpdatePoolState(ctx, marketID, model.SideYes, d("100"), d("800")))
	require.NoError(t, st.UpdatePoolState(ctx, marketID, model.SideNo, d("50"), d("200")))

	require.NoError(t, st.CreateUser(ctx, &model.User{ID: "winner1", Seeds: d("0")}))
	require.NoError(t, st.CreateUser(ctx, &model.User{ID: "winner2", Seeds: d("10")}))
	require.NoError(t, st.CreateUser(ctx, &model.User{ID: "loser", Seeds: d("5")}))

	now := time.Now().UTC()
	for _, pos := range []*model.Position{
		{UserID: "winner1", MarketID: marketID, Side: model.SideYes, SharesOwned: d("60"), TotalInvested: d("480"), CreatedAt: now},
		{UserID: "winner2", MarketID: marketID, Side: model.SideYes, SharesOwned: d("40"), TotalInvested: d("320"), CreatedAt: now},
		{UserID: "loser", MarketID: marketID, Side: model.SideNo, SharesOwned: d("50"), TotalInvested: d("200"), CreatedAt: now},
	} {
		require.NoError(t, st.UpsertPosition(ctx, pos))
	}
	return marketID
}

func TestLiquidateWinnerTakesAll(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := liquidationFixture(t, svc, st)

	res, err := svc.Liquidate(ctx, marketID, model.SideYes)
	require.NoError(t, err)

	// Pot 1000 over 100 real winning shares.
	require.True(t, res.FinalPrice.Equal(d("10.00")), "final price %s", res.FinalPrice)
	require.True(t, res.TotalReserve.Equal(d("1000")), "pot %s", res.TotalReserve)
	require.True(t, res.ReserveLost.Equal(d("200")))
	require.Equal(t, 2, res.UsersPaid)
	require.True(t, res.ReserveUnclaimed.IsZero())

	w1, err := st.GetUser(ctx, "winner1")
	require.NoError(t, err)
	require.True(t, w1.Seeds.Equal(d("600.00")), "winner1 %s", w1.Seeds)
	w2, err := st.GetUser(ctx, "winner2")
	require.NoError(t, err)
	require.True(t, w2.Seeds.Equal(d("410.00")), "winner2 %s", w2.Seeds)
	loser, err := st.GetUser(ctx, "loser")
	require.NoError(t, err)
	require.True(t, loser.Seeds.Equal(d("5")), "loser balance untouched, got %s", loser.Seeds)

	// Loser reserve swept into the winner pool, loser pool zeroed.
	yes, no, err := st.GetPools(ctx, marketID)
	require.NoError(t, err)
	require.True(t, yes.Reserve.Equal(d("1000")))
	require.True(t, no.Reserve.IsZero())

	market, err := st.GetMarket(ctx, marketID)
	require.NoError(t, err)
	require.Equal(t, model.StatusResolved, market.Status)
}

func TestLiquidateFinalizesPositions(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := liquidationFixture(t, svc, st)

	_, err := svc.Liquidate(ctx, marketID, model.SideYes)
	require.NoError(t, err)

	positions, err := st.ListPositionsByMarket(ctx, marketID)
	require.NoError(t, err)
	require.Len(t, positions, 3)

	for _, pos := range positions {
		require.True(t, pos.Resolved, "user %s", pos.UserID)
		if pos.Side == model.SideYes {
			require.Equal(t, "won", pos.Result)
			require.True(t, pos.SeedsEarned.Equal(pos.SharesOwned.Mul(d("10")).Round(2)))
		} else {
			require.Equal(t, "lost", pos.Result)
			require.True(t, pos.SeedsEarned.IsZero())
		}
	}
}

func TestLiquidateRunsOnce(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := liquidationFixture(t, svc, st)

	_, err := svc.Liquidate(ctx, marketID, model.SideYes)
	require.NoError(t, err)

	_, err = svc.Liquidate(ctx, marketID, model.SideYes)
	require.ErrorIs(t, err, ErrMarketResolved)

	// Balances cannot be paid twice.
	w1, err := st.GetUser(ctx, "winner1")
	require.NoError(t, err)
	require.True(t, w1.Seeds.Equal(d("600.00")))
}

func TestLiquidateOrphanPayoutStaysUnclaimed(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := liquidationFixture(t, svc, st)

	// A winner whose user record no longer exists.
	require.NoError(t, st.UpsertPosition(ctx, &model.Position{
		UserID: "ghostuser", MarketID: marketID, Side: model.SideYes,
		SharesOwned: d("20"), TotalInvested: d("160"), CreatedAt: time.Now().UTC(),
	}))
	// 120 real winning shares now share the 1000 pot.
	require.NoError(t, st.UpdatePoolState(ctx, marketID, model.SideYes, d("120"), d("800")))

	res, err := svc.Liquidate(ctx, marketID, model.SideYes)
	require.NoError(t, err)

	// 1000 / 120 per share, orphan's 20 shares stay in the reserve.
	require.Equal(t, 2, res.UsersPaid)
	require.True(t, res.ReserveUnclaimed.Equal(d("166.67")), "unclaimed %s", res.ReserveUnclaimed)

	positions, err := st.ListPositionsByMarket(ctx, marketID)
	require.NoError(t, err)
	for _, pos := range positions {
		if pos.UserID == "ghostuser" {
			require.True(t, pos.Resolved)
			require.Equal(t, "won", pos.Result)
			require.True(t, pos.SeedsEarned.Equal(d("166.67")))
		}
	}
}

func TestLiquidateNoWinningSupply(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "0")

	res, err := svc.Liquidate(ctx, marketID, model.SideYes)
	require.NoError(t, err)

	// No real shares: final price is zero and the pot stays in the reserve.
	require.True(t, res.FinalPrice.IsZero())
	require.True(t, res.TotalReserve.Equal(d("100")))
	require.Equal(t, 0, res.UsersPaid)

	yes, _, err := st.GetPools(ctx, marketID)
	require.NoError(t, err)
	require.True(t, yes.Reserve.Equal(d("100")))
}

func TestLiquidateUnknownMarket(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Liquidate(context.Background(), "missing", model.SideYes)
	require.ErrorIs(t, err, ErrMarketNotFound)
}
