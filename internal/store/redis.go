package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/julesdo/seedmedia-sub002/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot read paths: markets and pools, which every odds/price
// display query hits. Writes go to the primary store and invalidate the
// cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func cacheMarketKey(id string) string {
	return fmt.Sprintf("market:%s", id)
}

func cachePoolKey(marketID string, side model.Side) string {
	return fmt.Sprintf("pool:%s:%s", marketID, side)
}

// --- Markets ---

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheSet(ctx, cacheMarketKey(m.ID), m)
	return nil
}

func (s *CachedStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	var m model.Market
	if s.cacheGet(ctx, cacheMarketKey(id), &m) {
		return &m, nil
	}

	fresh, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cacheMarketKey(id), fresh)
	return fresh, nil
}

func (s *CachedStore) ListTrackingMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListTrackingMarkets(ctx)
}

func (s *CachedStore) SetMarketStatus(ctx context.Context, id, status string) error {
	if err := s.primary.SetMarketStatus(ctx, id, status); err != nil {
		return err
	}
	s.rdb.Del(ctx, cacheMarketKey(id))
	return nil
}

func (s *CachedStore) AdjustPositionCount(ctx context.Context, id string, delta int) error {
	if err := s.primary.AdjustPositionCount(ctx, id, delta); err != nil {
		return err
	}
	s.rdb.Del(ctx, cacheMarketKey(id))
	return nil
}

// --- Pools ---

func (s *CachedStore) CreatePool(ctx context.Context, p *model.Pool) error {
	if err := s.primary.CreatePool(ctx, p); err != nil {
		return err
	}
	s.cacheSet(ctx, cachePoolKey(p.MarketID, p.Side), p)
	return nil
}

func (s *CachedStore) GetPool(ctx context.Context, marketID string, side model.Side) (*model.Pool, error) {
	var p model.Pool
	if s.cacheGet(ctx, cachePoolKey(marketID, side), &p) {
		return &p, nil
	}

	fresh, err := s.primary.GetPool(ctx, marketID, side)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cachePoolKey(marketID, side), fresh)
	return fresh, nil
}

func (s *CachedStore) GetPools(ctx context.Context, marketID string) (*model.Pool, *model.Pool, error) {
	yes, err := s.GetPool(ctx, marketID, model.SideYes)
	if err != nil {
		return nil, nil, err
	}
	no, err := s.GetPool(ctx, marketID, model.SideNo)
	if err != nil {
		return nil, nil, err
	}
	return yes, no, nil
}

func (s *CachedStore) UpdatePoolState(ctx context.Context, marketID string, side model.Side, realSupply, reserve decimal.Decimal) error {
	if err := s.primary.UpdatePoolState(ctx, marketID, side, realSupply, reserve); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, cachePoolKey(marketID, side))
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetPosition(ctx context.Context, userID, marketID string, side model.Side) (*model.Position, error) {
	return s.primary.GetPosition(ctx, userID, marketID, side)
}

func (s *CachedStore) UpsertPosition(ctx context.Context, p *model.Position) error {
	return s.primary.UpsertPosition(ctx, p)
}

func (s *CachedStore) DeletePosition(ctx context.Context, userID, marketID string, side model.Side) error {
	return s.primary.DeletePosition(ctx, userID, marketID, side)
}

func (s *CachedStore) ListPositionsByMarket(ctx context.Context, marketID string) ([]model.Position, error) {
	return s.primary.ListPositionsByMarket(ctx, marketID)
}

func (s *CachedStore) ListPositionsByUser(ctx context.Context, userID string) ([]model.Position, error) {
	return s.primary.ListPositionsByUser(ctx, userID)
}

func (s *CachedStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	return s.primary.InsertTransaction(ctx, tx)
}

func (s *CachedStore) ListTransactionsByMarket(ctx context.Context, marketID string) ([]model.Transaction, error) {
	return s.primary.ListTransactionsByMarket(ctx, marketID)
}

func (s *CachedStore) MarketBuyVolume(ctx context.Context, marketID string) (decimal.Decimal, error) {
	return s.primary.MarketBuyVolume(ctx, marketID)
}

func (s *CachedStore) InsertTick(ctx context.Context, tick *model.Tick) error {
	return s.primary.InsertTick(ctx, tick)
}

func (s *CachedStore) ListTicksByMarket(ctx context.Context, marketID string) ([]model.Tick, error) {
	return s.primary.ListTicksByMarket(ctx, marketID)
}

func (s *CachedStore) GetSnapshot(ctx context.Context, marketID, day string) (*model.Snapshot, error) {
	return s.primary.GetSnapshot(ctx, marketID, day)
}

func (s *CachedStore) UpsertSnapshot(ctx context.Context, snap *model.Snapshot) error {
	return s.primary.UpsertSnapshot(ctx, snap)
}

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.primary.CreateUser(ctx, u)
}

func (s *CachedStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.primary.GetUser(ctx, id)
}

func (s *CachedStore) AdjustSeeds(ctx context.Context, userID string, delta decimal.Decimal) error {
	return s.primary.AdjustSeeds(ctx, userID, delta)
}

// --- Cache helpers ---

func (s *CachedStore) cacheSet(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func (s *CachedStore) cacheGet(ctx context.Context, key string, dest any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}
