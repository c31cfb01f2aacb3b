// Package engine implements the trading API: pool initialization, buy and
// sell execution against the bonding curve, market liquidation, and the
// read-side queries the display layer consumes.
//
// Each buy or sell executes as a single atomic unit under a per-market
// mutex: read pool state, price, write pool state, write position, write
// transaction — with no other trade on the same market interleaved. Tick
// recording happens after commit through the async recorder and can never
// fail a trade.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/julesdo/seedmedia-sub002/internal/curve"
	"github.com/julesdo/seedmedia-sub002/internal/metrics"
	"github.com/julesdo/seedmedia-sub002/internal/model"
	"github.com/julesdo/seedmedia-sub002/internal/odds"
	"github.com/julesdo/seedmedia-sub002/internal/store"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
	minTargetPrice = one
	maxTargetPrice = decimal.NewFromInt(99)
)

// Recorder receives market IDs whose price should be observed after a
// committed trade. Implementations must not block.
type Recorder interface {
	Enqueue(marketID string)
}

// Service orchestrates trade execution against the store.
type Service struct {
	store    store.Store
	recorder Recorder
	wsHub    *WSHub // optional, nil disables broadcasting

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a trading service. recorder and hub may be nil.
func NewService(st store.Store, recorder Recorder, hub *WSHub) *Service {
	return &Service{
		store:    st,
		recorder: recorder,
		wsHub:    hub,
		locks:    make(map[string]*sync.Mutex),
	}
}

// marketLock returns the mutex serializing all writes for one market.
// Buys, sells, and liquidation on the same market are mutually exclusive;
// distinct markets do not contend.
func (s *Service) marketLock(marketID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[marketID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[marketID] = l
	}
	return l
}

// --- Pool initialization (IPO) ---

// InitResult reports the outcome of InitializePools.
type InitResult struct {
	PoolsCreated int `json:"pools_created"`
}

// InitializePools creates the YES and NO pools for a market. The YES pool
// is seeded at targetPrice and the NO pool at its complement, each with
// ghost supply chosen so the launch price equals the seed, and reserve
// seeded to the same value so liquidity ratios are defined from the first
// tick. Idempotent: re-invoking on an initialized market is a no-op.
func (s *Service) InitializePools(ctx context.Context, marketID string, targetPrice, depthFactor decimal.Decimal) (*InitResult, error) {
	if targetPrice.LessThan(minTargetPrice) || targetPrice.GreaterThan(maxTargetPrice) {
		return nil, curve.ErrInvalidParameter
	}

	lock := s.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.GetMarket(ctx, marketID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}

	// Already initialized → no-op.
	if _, err := s.store.GetPool(ctx, marketID, model.SideYes); err == nil {
		return &InitResult{PoolsCreated: 0}, nil
	}

	slope, err := curve.Slope(depthFactor)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	targets := map[model.Side]decimal.Decimal{
		model.SideYes: targetPrice,
		model.SideNo:  hundred.Sub(targetPrice),
	}

	created := 0
	for _, side := range []model.Side{model.SideYes, model.SideNo} {
		target := targets[side]
		ghost, err := curve.GhostSupply(target, slope)
		if err != nil {
			return nil, err
		}
		pool := &model.Pool{
			MarketID:    marketID,
			Side:        side,
			Slope:       slope,
			GhostSupply: ghost,
			RealSupply:  decimal.Zero,
			Reserve:     target, // seeded so liquidity ratios are defined pre-trade
			CreatedAt:   now,
		}
		if err := s.store.CreatePool(ctx, pool); err != nil {
			return nil, err
		}
		created++
	}

	// Frozen IPO tick from the initial liquidity ratio.
	pair := odds.FromReserves(targets[model.SideYes], targets[model.SideNo])
	tick := &model.Tick{
		ID:        uuid.New().String(),
		MarketID:  marketID,
		YesPrice:  pair.Yes,
		NoPrice:   pair.No,
		Timestamp: now,
	}
	if err := s.store.InsertTick(ctx, tick); err != nil {
		// History is a best-effort side channel even at IPO.
		slog.Error("ipo tick recording failed", "market", marketID, "err", err)
	}

	slog.Info("pools initialized",
		"market", marketID,
		"target_price", targetPrice.String(),
		"depth_factor", depthFactor.String(),
		"slope", slope.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "ipo",
			MarketID: marketID,
			YesPrice: pair.Yes.String(),
			NoPrice:  pair.No.String(),
		})
	}

	return &InitResult{PoolsCreated: created}, nil
}

// --- Buy ---

// TradeParams identifies the actor and target of a buy or sell.
type TradeParams struct {
	UserID   string
	MarketID string
	Side     model.Side
	Shares   decimal.Decimal
}

// BuyResult is returned from a successful buy.
type BuyResult struct {
	Cost          decimal.Decimal `json:"cost"`
	PricePerShare decimal.Decimal `json:"price_per_share"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Prices        odds.Pair       `json:"prices"` // post-trade normalized
}

// Buy purchases shares on one side of a market.
func (s *Service) Buy(ctx context.Context, p TradeParams) (*BuyResult, error) {
	start := time.Now()
	if !p.Side.Valid() || p.Shares.LessThanOrEqual(decimal.Zero) {
		return nil, curve.ErrInvalidParameter
	}

	lock := s.marketLock(p.MarketID)
	lock.Lock()
	defer lock.Unlock()

	market, pool, err := s.tradableMarket(ctx, p.MarketID, p.Side)
	if err != nil {
		return nil, err
	}

	c, err := curve.FromSlope(pool.Slope)
	if err != nil {
		return nil, err
	}
	cost, err := c.BuyCost(pool.TotalSupply(), p.Shares)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Seeds.LessThan(cost) {
		metrics.TradeRejections.WithLabelValues("insufficient_funds").Inc()
		return nil, ErrInsufficientFunds
	}

	// Mutate pool, debit buyer.
	newSupply := pool.RealSupply.Add(p.Shares)
	newReserve := pool.Reserve.Add(cost)
	if err := s.store.UpdatePoolState(ctx, p.MarketID, p.Side, newSupply, newReserve); err != nil {
		return nil, err
	}
	if err := s.store.AdjustSeeds(ctx, p.UserID, cost.Neg()); err != nil {
		return nil, err
	}

	// Upsert position; first open counts toward the market's counter.
	now := time.Now().UTC()
	pos, err := s.store.GetPosition(ctx, p.UserID, p.MarketID, p.Side)
	switch {
	case err == nil:
		pos.SharesOwned = pos.SharesOwned.Add(p.Shares)
		pos.TotalInvested = pos.TotalInvested.Add(cost)
	case errors.Is(err, store.ErrNotFound):
		pos = &model.Position{
			UserID:        p.UserID,
			MarketID:      p.MarketID,
			Side:          p.Side,
			SharesOwned:   p.Shares,
			TotalInvested: cost,
			SeedsEarned:   decimal.Zero,
			CreatedAt:     now,
		}
		if err := s.store.AdjustPositionCount(ctx, p.MarketID, 1); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	if err := s.store.UpsertPosition(ctx, pos); err != nil {
		return nil, err
	}

	pair, realPrice, err := s.postTradePrices(ctx, p.MarketID, p.Side)
	if err != nil {
		return nil, err
	}

	tx := &model.Transaction{
		ID:              uuid.New().String(),
		UserID:          p.UserID,
		MarketID:        p.MarketID,
		Side:            p.Side,
		Type:            model.TxBuy,
		Shares:          p.Shares,
		Cost:            cost,
		NetAmount:       decimal.Zero,
		RealPrice:       realPrice,
		NormalizedPrice: sidePrice(pair, p.Side),
		Timestamp:       now,
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return nil, err
	}

	s.afterTrade(market.ID, model.TxBuy, p, pair)
	metrics.TradeLatency.WithLabelValues(model.TxBuy).Observe(time.Since(start).Seconds())

	slog.Info("buy executed",
		"tx", tx.ID,
		"user", p.UserID,
		"market", p.MarketID,
		"side", p.Side,
		"shares", p.Shares.String(),
		"cost", cost.String(),
		"yes_price", pair.Yes.String(),
	)

	return &BuyResult{
		Cost:          cost,
		PricePerShare: cost.Div(p.Shares).Round(curve.SeedScale),
		NewBalance:    user.Seeds.Sub(cost),
		Prices:        pair,
	}, nil
}

// --- Sell ---

// SellResult is returned from a successful sell.
type SellResult struct {
	Gross         decimal.Decimal `json:"gross"`
	Net           decimal.Decimal `json:"net"`
	Fee           decimal.Decimal `json:"fee"`
	PricePerShare decimal.Decimal `json:"price_per_share"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Prices        odds.Pair       `json:"prices"` // post-trade normalized
}

// Sell liquidates shares back into the pool. The full gross amount leaves
// the reserve; the seller receives gross minus the holding-time tax, and
// the difference is burned.
func (s *Service) Sell(ctx context.Context, p TradeParams) (*SellResult, error) {
	start := time.Now()
	if !p.Side.Valid() || p.Shares.LessThanOrEqual(decimal.Zero) {
		return nil, curve.ErrInvalidParameter
	}

	lock := s.marketLock(p.MarketID)
	lock.Lock()
	defer lock.Unlock()

	market, pool, err := s.tradableMarket(ctx, p.MarketID, p.Side)
	if err != nil {
		return nil, err
	}

	pos, err := s.store.GetPosition(ctx, p.UserID, p.MarketID, p.Side)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.TradeRejections.WithLabelValues("position_not_found").Inc()
			return nil, ErrPositionNotFound
		}
		return nil, err
	}
	if pos.SharesOwned.LessThan(p.Shares) {
		metrics.TradeRejections.WithLabelValues("insufficient_shares").Inc()
		return nil, ErrInsufficientShares
	}

	c, err := curve.FromSlope(pool.Slope)
	if err != nil {
		return nil, err
	}
	gross, err := c.SellGross(pool.TotalSupply(), p.Shares)
	if err != nil {
		if errors.Is(err, curve.ErrSharesExceedSupply) {
			return nil, ErrInsufficientShares
		}
		return nil, err
	}
	if pool.Reserve.LessThan(gross) {
		metrics.TradeRejections.WithLabelValues("insufficient_liquidity").Inc()
		return nil, ErrInsufficientLiquidity
	}

	now := time.Now().UTC()
	net, fee := curve.SellNet(gross, now.Sub(pos.CreatedAt))

	// The whole gross leaves the pool; the tax difference is burned.
	newSupply := pool.RealSupply.Sub(p.Shares)
	newReserve := pool.Reserve.Sub(gross)
	if err := s.store.UpdatePoolState(ctx, p.MarketID, p.Side, newSupply, newReserve); err != nil {
		return nil, err
	}
	if err := s.store.AdjustSeeds(ctx, p.UserID, net); err != nil {
		return nil, err
	}

	remaining := pos.SharesOwned.Sub(p.Shares)
	if remaining.IsZero() {
		if err := s.store.DeletePosition(ctx, p.UserID, p.MarketID, p.Side); err != nil {
			return nil, err
		}
		if err := s.store.AdjustPositionCount(ctx, p.MarketID, -1); err != nil {
			return nil, err
		}
	} else {
		// totalInvested is a cumulative cost basis, never reduced.
		pos.SharesOwned = remaining
		if err := s.store.UpsertPosition(ctx, pos); err != nil {
			return nil, err
		}
	}

	pair, realPrice, err := s.postTradePrices(ctx, p.MarketID, p.Side)
	if err != nil {
		return nil, err
	}

	tx := &model.Transaction{
		ID:              uuid.New().String(),
		UserID:          p.UserID,
		MarketID:        p.MarketID,
		Side:            p.Side,
		Type:            model.TxSell,
		Shares:          p.Shares,
		Cost:            gross,
		NetAmount:       net,
		RealPrice:       realPrice,
		NormalizedPrice: sidePrice(pair, p.Side),
		Timestamp:       now,
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return nil, err
	}

	s.afterTrade(market.ID, model.TxSell, p, pair)
	metrics.TradeLatency.WithLabelValues(model.TxSell).Observe(time.Since(start).Seconds())

	user, err := s.store.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	slog.Info("sell executed",
		"tx", tx.ID,
		"user", p.UserID,
		"market", p.MarketID,
		"side", p.Side,
		"shares", p.Shares.String(),
		"gross", gross.String(),
		"net", net.String(),
		"fee", fee.String(),
	)

	return &SellResult{
		Gross:         gross,
		Net:           net,
		Fee:           fee,
		PricePerShare: gross.Div(p.Shares).Round(curve.SeedScale),
		NewBalance:    user.Seeds,
		Prices:        pair,
	}, nil
}

// --- Shared helpers ---

// tradableMarket loads the market and the side's pool, rejecting resolved
// markets and uninitialized pools.
func (s *Service) tradableMarket(ctx context.Context, marketID string, side model.Side) (*model.Market, *model.Pool, error) {
	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrMarketNotFound
		}
		return nil, nil, err
	}
	if market.Status == model.StatusResolved {
		metrics.TradeRejections.WithLabelValues("market_resolved").Inc()
		return nil, nil, ErrMarketResolved
	}

	pool, err := s.store.GetPool(ctx, marketID, side)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrPoolUninitialized
		}
		return nil, nil, err
	}
	return market, pool, nil
}

// postTradePrices reads both pools after a committed mutation and returns
// the normalized pair plus the traded side's real spot price.
func (s *Service) postTradePrices(ctx context.Context, marketID string, side model.Side) (odds.Pair, decimal.Decimal, error) {
	yes, no, err := s.store.GetPools(ctx, marketID)
	if err != nil {
		return odds.Pair{}, decimal.Zero, err
	}

	yesPrice := yes.Slope.Mul(yes.TotalSupply())
	noPrice := no.Slope.Mul(no.TotalSupply())
	pair := odds.Normalize(yesPrice, noPrice)

	real := yesPrice
	if side == model.SideNo {
		real = noPrice
	}
	return pair, real, nil
}

// afterTrade runs the best-effort post-commit side channel: metrics,
// async tick recording, websocket broadcast.
func (s *Service) afterTrade(marketID, txType string, p TradeParams, pair odds.Pair) {
	metrics.TradesTotal.WithLabelValues(txType, string(p.Side)).Inc()

	if s.recorder != nil {
		s.recorder.Enqueue(marketID)
	}
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "trade",
			MarketID: marketID,
			Side:     string(p.Side),
			Shares:   p.Shares.String(),
			YesPrice: pair.Yes.String(),
			NoPrice:  pair.No.String(),
		})
	}
}

func sidePrice(pair odds.Pair, side model.Side) decimal.Decimal {
	if side == model.SideYes {
		return pair.Yes
	}
	return pair.No
}
