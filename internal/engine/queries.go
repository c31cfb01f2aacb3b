package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/julesdo/seedmedia-sub002/internal/model"
	"github.com/julesdo/seedmedia-sub002/internal/odds"
	"github.com/julesdo/seedmedia-sub002/internal/store"
	"github.com/julesdo/seedmedia-sub002/internal/window"
)

// PoolView is one side's pool with its real and normalized prices.
type PoolView struct {
	Side            model.Side      `json:"side"`
	Slope           decimal.Decimal `json:"slope"`
	GhostSupply     decimal.Decimal `json:"ghost_supply"`
	RealSupply      decimal.Decimal `json:"real_supply"`
	Reserve         decimal.Decimal `json:"reserve"`
	RealPrice       decimal.Decimal `json:"real_price"`
	NormalizedPrice decimal.Decimal `json:"normalized_price"`
}

// PoolsView pairs both sides for display.
type PoolsView struct {
	Yes PoolView `json:"yes"`
	No  PoolView `json:"no"`
}

// GetPools returns both pools with real and normalized prices.
func (s *Service) GetPools(ctx context.Context, marketID string) (*PoolsView, error) {
	yes, no, err := s.store.GetPools(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPoolsNotFound
		}
		return nil, err
	}

	yesPrice := yes.Slope.Mul(yes.TotalSupply())
	noPrice := no.Slope.Mul(no.TotalSupply())
	pair := odds.Normalize(yesPrice, noPrice)

	return &PoolsView{
		Yes: poolView(yes, yesPrice, pair.Yes),
		No:  poolView(no, noPrice, pair.No),
	}, nil
}

func poolView(p *model.Pool, realPrice, normalized decimal.Decimal) PoolView {
	return PoolView{
		Side:            p.Side,
		Slope:           p.Slope,
		GhostSupply:     p.GhostSupply,
		RealSupply:      p.RealSupply,
		Reserve:         p.Reserve,
		RealPrice:       realPrice,
		NormalizedPrice: normalized,
	}
}

// GetOdds returns the single complementary YES probability for a market.
func (s *Service) GetOdds(ctx context.Context, marketID string) (decimal.Decimal, error) {
	pools, err := s.GetPools(ctx, marketID)
	if err != nil {
		return decimal.Zero, err
	}
	return pools.Yes.NormalizedPrice, nil
}

// History is the chart feed: frozen ticks plus the live normalized price.
// Ticks are authoritative for the past; nothing is re-derived from current
// pool state.
type History struct {
	Ticks        []model.Tick `json:"ticks"`
	CurrentPrice odds.Pair    `json:"current_price"`
}

// GetHistory returns the recorded tick series and current normalized price.
func (s *Service) GetHistory(ctx context.Context, marketID string) (*History, error) {
	ticks, err := s.store.ListTicksByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	pools, err := s.GetPools(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if ticks == nil {
		ticks = []model.Tick{}
	}
	return &History{
		Ticks: ticks,
		CurrentPrice: odds.Pair{
			Yes: pools.Yes.NormalizedPrice,
			No:  pools.No.NormalizedPrice,
		},
	}, nil
}

// GetInvestmentWindow computes the advisory countdown for opening new
// positions. Recomputed on every call; nothing persisted, nothing enforced.
func (s *Service) GetInvestmentWindow(ctx context.Context, marketID string) (time.Duration, error) {
	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrMarketNotFound
		}
		return 0, err
	}

	volume, err := s.store.MarketBuyVolume(ctx, marketID)
	if err != nil {
		return 0, err
	}

	return window.Compute(window.Inputs{
		EventType:     market.EventType,
		EventAt:       market.EventAt,
		HeatScore:     market.HeatScore,
		Sentiment:     market.Sentiment,
		PositionCount: market.PositionCount,
		SharesVolume:  volume,
	}, time.Now().UTC()), nil
}

// GetUserPositions returns all of a user's positions, live and finalized.
func (s *Service) GetUserPositions(ctx context.Context, userID string) ([]model.Position, error) {
	positions, err := s.store.ListPositionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if positions == nil {
		positions = []model.Position{}
	}
	return positions, nil
}

// CreateMarketParams carries the metadata for a new market record.
type CreateMarketParams struct {
	TargetPrice decimal.Decimal
	DepthFactor decimal.Decimal
	EventType   string
	EventAt     time.Time
	HeatScore   decimal.Decimal
	Sentiment   decimal.Decimal
}

// CreateMarket persists a new market record in tracking state. Pools are
// initialized separately via InitializePools.
func (s *Service) CreateMarket(ctx context.Context, p CreateMarketParams) (*model.Market, error) {
	market := &model.Market{
		ID:          uuid.New().String(),
		TargetPrice: p.TargetPrice,
		DepthFactor: p.DepthFactor,
		Status:      model.StatusTracking,
		EventType:   p.EventType,
		EventAt:     p.EventAt,
		HeatScore:   p.HeatScore,
		Sentiment:   p.Sentiment,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateMarket(ctx, market); err != nil {
		return nil, err
	}
	return market, nil
}
