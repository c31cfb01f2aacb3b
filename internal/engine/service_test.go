package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/julesdo/seedmedia-sub002/internal/curve"
	"github.com/julesdo/seedmedia-sub002/internal/model"
	"github.com/julesdo/seedmedia-sub002/internal/store"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewService(st, nil, nil), st
}

// seedMarket creates a tracking market with initialized pools at the given
// target price and a funded user, and returns the market ID.
func seedMarket(t *testing.T, svc *Service, st *store.MemoryStore, targetPrice, depthFactor, userSeeds string) string {
	t.Helper()
	ctx := context.Background()

	market, err := svc.CreateMarket(ctx, CreateMarketParams{
		TargetPrice: d(targetPrice),
		DepthFactor: d(depthFactor),
		EventType:   "sports",
		EventAt:     time.Now().Add(60 * 24 * time.Hour),
		HeatScore:   d("50"),
		Sentiment:   d("50"),
	})
	require.NoError(t, err)

	_, err = svc.InitializePools(ctx, market.ID, d(targetPrice), d(depthFactor))
	require.NoError(t, err)

	require.NoError(t, st.CreateUser(ctx, &model.User{
		ID:        "alice",
		Seeds:     d(userSeeds),
		CreatedAt: time.Now().UTC(),
	}))
	return market.ID
}

func TestInitializePoolsSeedsBothSides(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "30", "5000", "0")

	yes, no, err := st.GetPools(ctx, marketID)
	require.NoError(t, err)

	// slope = 100/5000, ghost = target/slope
	require.True(t, yes.Slope.Equal(d("0.02")), "slope %s", yes.Slope)
	require.True(t, yes.GhostSupply.Equal(d("1500")), "yes ghost %s", yes.GhostSupply)
	require.True(t, no.GhostSupply.Equal(d("3500")), "no ghost %s", no.GhostSupply)
	require.True(t, yes.Reserve.Equal(d("30")), "yes reserve %s", yes.Reserve)
	require.True(t, no.Reserve.Equal(d("70")), "no reserve %s", no.Reserve)
	require.True(t, yes.RealSupply.IsZero())

	// Launch prices equal the seeds.
	c, err := curve.FromSlope(yes.Slope)
	require.NoError(t, err)
	yesPrice, err := c.Price(yes.TotalSupply())
	require.NoError(t, err)
	require.True(t, yesPrice.Equal(d("30")))
	noPrice, err := c.Price(no.TotalSupply())
	require.NoError(t, err)
	require.True(t, noPrice.Equal(d("70")))
}

func TestInitializePoolsIdempotent(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "0")

	res, err := svc.InitializePools(ctx, marketID, d("50"), d("5000"))
	require.NoError(t, err)
	require.Equal(t, 0, res.PoolsCreated)

	yes, _, err := st.GetPools(ctx, marketID)
	require.NoError(t, err)
	require.True(t, yes.Reserve.Equal(d("50")), "reserve must be untouched, got %s", yes.Reserve)
}

func TestInitializePoolsRejectsTargetOutOfRange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, target := range []string{"0", "0.5", "100", "150"} {
		_, err := svc.InitializePools(ctx, "any", d(target), d("5000"))
		require.ErrorIs(t, err, curve.ErrInvalidParameter, "target %s", target)
	}
}

func TestBuyChargesQuadraticCost(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "10000")

	res, err := svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("100")})
	require.NoError(t, err)

	// (0.02/2) * (2600^2 - 2500^2)
	require.True(t, res.Cost.Equal(d("5100.00")), "cost %s", res.Cost)
	require.True(t, res.NewBalance.Equal(d("4900.00")), "balance %s", res.NewBalance)
	require.True(t, res.PricePerShare.Equal(d("51.00")), "price per share %s", res.PricePerShare)

	pool, err := st.GetPool(ctx, marketID, model.SideYes)
	require.NoError(t, err)
	require.True(t, pool.RealSupply.Equal(d("100")))
	require.True(t, pool.Reserve.Equal(d("5150.00")), "reserve = seed + cost, got %s", pool.Reserve)

	user, err := st.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.True(t, user.Seeds.Equal(d("4900.00")))
}

func TestBuyInsufficientFunds(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "100")

	_, err := svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("100")})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing committed.
	pool, err := st.GetPool(ctx, marketID, model.SideYes)
	require.NoError(t, err)
	require.True(t, pool.RealSupply.IsZero())
	user, err := st.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.True(t, user.Seeds.Equal(d("100")))
}

func TestBuyRejectsInvalidInput(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "10000")

	_, err := svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: "MAYBE", Shares: d("1")})
	require.ErrorIs(t, err, curve.ErrInvalidParameter)

	_, err = svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("0")})
	require.ErrorIs(t, err, curve.ErrInvalidParameter)

	_, err = svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: "missing", Side: model.SideYes, Shares: d("1")})
	require.ErrorIs(t, err, ErrMarketNotFound)

	_, err = svc.Buy(ctx, TradeParams{UserID: "nobody", MarketID: marketID, Side: model.SideYes, Shares: d("1")})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestBuyAccumulatesPosition(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "100000")

	_, err := svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("100")})
	require.NoError(t, err)
	_, err = svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("50")})
	require.NoError(t, err)

	pos, err := st.GetPosition(ctx, "alice", marketID, model.SideYes)
	require.NoError(t, err)
	require.True(t, pos.SharesOwned.Equal(d("150")))

	// Second buy starts 100 shares higher: (0.02/2)*(2650^2-2600^2) = 2625
	require.True(t, pos.TotalInvested.Equal(d("7725.00")), "invested %s", pos.TotalInvested)

	// Same user, same side: still one open position.
	market, err := st.GetMarket(ctx, marketID)
	require.NoError(t, err)
	require.Equal(t, 1, market.PositionCount)
}

func TestSellSameDayTaxAndBurn(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "10000")

	_, err := svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("100")})
	require.NoError(t, err)

	res, err := svc.Sell(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("100")})
	require.NoError(t, err)

	// Gross mirrors the buy; 20% same-day tax is burned.
	require.True(t, res.Gross.Equal(d("5100.00")), "gross %s", res.Gross)
	require.True(t, res.Fee.Equal(d("1020.00")), "fee %s", res.Fee)
	require.True(t, res.Net.Equal(d("4080.00")), "net %s", res.Net)
	require.True(t, res.NewBalance.Equal(d("8980.00")), "balance %s", res.NewBalance)

	// Full gross left the reserve, supply is back to zero.
	pool, err := st.GetPool(ctx, marketID, model.SideYes)
	require.NoError(t, err)
	require.True(t, pool.RealSupply.IsZero())
	require.True(t, pool.Reserve.Equal(d("50.00")), "reserve %s", pool.Reserve)

	// Position closed, counter decremented.
	_, err = st.GetPosition(ctx, "alice", marketID, model.SideYes)
	require.ErrorIs(t, err, store.ErrNotFound)
	market, err := st.GetMarket(ctx, marketID)
	require.NoError(t, err)
	require.Equal(t, 0, market.PositionCount)
}

func TestSellPartialKeepsCostBasis(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "10000")

	_, err := svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("100")})
	require.NoError(t, err)

	_, err = svc.Sell(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("40")})
	require.NoError(t, err)

	pos, err := st.GetPosition(ctx, "alice", marketID, model.SideYes)
	require.NoError(t, err)
	require.True(t, pos.SharesOwned.Equal(d("60")))
	require.True(t, pos.TotalInvested.Equal(d("5100.00")), "cost basis must not shrink, got %s", pos.TotalInvested)
}

func TestSellErrorKinds(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "10000")

	_, err := svc.Sell(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("10")})
	require.ErrorIs(t, err, ErrPositionNotFound)

	_, err = svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("100")})
	require.NoError(t, err)

	_, err = svc.Sell(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("101")})
	require.ErrorIs(t, err, ErrInsufficientShares)
}

func TestSellInsufficientLiquidity(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "10000")

	_, err := svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("100")})
	require.NoError(t, err)

	// Drain the reserve below the gross the curve owes.
	require.NoError(t, st.UpdatePoolState(ctx, marketID, model.SideYes, d("100"), d("10")))

	_, err = svc.Sell(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("100")})
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestBuyMovesNormalizedPrices(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "100000")

	res, err := svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("100")})
	require.NoError(t, err)

	require.True(t, res.Prices.Yes.GreaterThan(d("50")), "yes %s", res.Prices.Yes)
	require.True(t, res.Prices.Yes.Add(res.Prices.No).Equal(d("100")))
}

func TestTradeOnResolvedMarketRejected(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "50", "5000", "10000")

	require.NoError(t, st.SetMarketStatus(ctx, marketID, model.StatusResolved))

	_, err := svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("1")})
	require.ErrorIs(t, err, ErrMarketResolved)
	_, err = svc.Sell(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("1")})
	require.ErrorIs(t, err, ErrMarketResolved)
}

func TestTradeOnUninitializedPoolRejected(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	market, err := svc.CreateMarket(ctx, CreateMarketParams{TargetPrice: d("50"), DepthFactor: d("5000")})
	require.NoError(t, err)
	require.NoError(t, st.CreateUser(ctx, &model.User{ID: "alice", Seeds: d("100")}))

	_, err = svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: market.ID, Side: model.SideYes, Shares: d("1")})
	require.ErrorIs(t, err, ErrPoolUninitialized)
}

func TestGetPoolsAndOdds(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "30", "5000", "0")

	view, err := svc.GetPools(ctx, marketID)
	require.NoError(t, err)
	require.True(t, view.Yes.RealPrice.Equal(d("30")), "yes real %s", view.Yes.RealPrice)
	require.True(t, view.No.RealPrice.Equal(d("70")))
	require.True(t, view.Yes.NormalizedPrice.Equal(d("30")))
	require.True(t, view.No.NormalizedPrice.Equal(d("70")))

	yesOdds, err := svc.GetOdds(ctx, marketID)
	require.NoError(t, err)
	require.True(t, yesOdds.Equal(d("30")))
}

func TestGetHistoryStartsWithIPOTick(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	marketID := seedMarket(t, svc, st, "40", "5000", "10000")

	_, err := svc.Buy(ctx, TradeParams{UserID: "alice", MarketID: marketID, Side: model.SideYes, Shares: d("10")})
	require.NoError(t, err)

	h, err := svc.GetHistory(ctx, marketID)
	require.NoError(t, err)
	require.Len(t, h.Ticks, 1, "only the frozen IPO tick is synchronous")
	require.True(t, h.Ticks[0].YesPrice.Equal(d("40")))
	require.True(t, h.CurrentPrice.Yes.GreaterThan(d("40")))
}

func TestGetInvestmentWindowNeutralMarket(t *testing.T) {
	svc, st := newTestService(t)
	marketID := seedMarket(t, svc, st, "50", "5000", "0")

	w, err := svc.GetInvestmentWindow(context.Background(), marketID)
	require.NoError(t, err)
	// Neutral heat and sentiment, sports event far out: 72h - 6h.
	require.Equal(t, 66*time.Hour, w)
}
