package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/julesdo/seedmedia-sub002/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	markets   map[string]*model.Market
	pools     map[string]*model.Pool     // marketID|side
	positions map[string]*model.Position // userID|marketID|side
	txs       []model.Transaction
	ticks     []model.Tick
	snapshots map[string]*model.Snapshot // marketID|day
	users     map[string]*model.User
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:   make(map[string]*model.Market),
		pools:     make(map[string]*model.Pool),
		positions: make(map[string]*model.Position),
		snapshots: make(map[string]*model.Snapshot),
		users:     make(map[string]*model.User),
	}
}

func poolKey(marketID string, side model.Side) string {
	return marketID + "|" + string(side)
}

func positionKey(userID, marketID string, side model.Side) string {
	return userID + "|" + marketID + "|" + string(side)
}

func snapshotKey(marketID, day string) string {
	return marketID + "|" + day
}

// --- Markets ---

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.markets[m.ID]; exists {
		return fmt.Errorf("market %s already exists", m.ID)
	}
	cp := *m
	s.markets[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("get market %s: %w", id, ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListTrackingMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var markets []model.Market
	for _, m := range s.markets {
		if m.Status == model.StatusTracking {
			markets = append(markets, *m)
		}
	}
	return markets, nil
}

func (s *MemoryStore) SetMarketStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return fmt.Errorf("set status for market %s: %w", id, ErrNotFound)
	}
	m.Status = status
	return nil
}

func (s *MemoryStore) AdjustPositionCount(_ context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return fmt.Errorf("adjust position count for market %s: %w", id, ErrNotFound)
	}
	m.PositionCount += delta
	if m.PositionCount < 0 {
		m.PositionCount = 0
	}
	return nil
}

// --- Pools ---

func (s *MemoryStore) CreatePool(_ context.Context, p *model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := poolKey(p.MarketID, p.Side)
	if _, exists := s.pools[key]; exists {
		return fmt.Errorf("pool %s already exists", key)
	}
	cp := *p
	s.pools[key] = &cp
	return nil
}

func (s *MemoryStore) GetPool(_ context.Context, marketID string, side model.Side) (*model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[poolKey(marketID, side)]
	if !ok {
		return nil, fmt.Errorf("get pool %s/%s: %w", marketID, side, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetPools(ctx context.Context, marketID string) (*model.Pool, *model.Pool, error) {
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

func (s *MemoryStore) UpdatePoolState(_ context.Context, marketID string, side model.Side, realSupply, reserve decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolKey(marketID, side)]
	if !ok {
		return fmt.Errorf("update pool %s/%s: %w", marketID, side, ErrNotFound)
	}
	p.RealSupply = realSupply
	p.Reserve = reserve
	return nil
}

// --- Positions ---

func (s *MemoryStore) GetPosition(_ context.Context, userID, marketID string, side model.Side) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[positionKey(userID, marketID, side)]
	if !ok {
		return nil, fmt.Errorf("get position %s/%s/%s: %w", userID, marketID, side, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpsertPosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.positions[positionKey(p.UserID, p.MarketID, p.Side)] = &cp
	return nil
}

func (s *MemoryStore) DeletePosition(_ context.Context, userID, marketID string, side model.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.positions, positionKey(userID, marketID, side))
	return nil
}

func (s *MemoryStore) ListPositionsByMarket(_ context.Context, marketID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.MarketID == marketID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListPositionsByUser(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.UserID == userID {
			result = append(result, *p)
		}
	}
	return result, nil
}

// --- Transactions ---

func (s *MemoryStore) InsertTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs = append(s.txs, *tx)
	return nil
}

func (s *MemoryStore) ListTransactionsByMarket(_ context.Context, marketID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, tx := range s.txs {
		if tx.MarketID == marketID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *MemoryStore) MarketBuyVolume(_ context.Context, marketID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range s.txs {
		if tx.MarketID == marketID && tx.Type == model.TxBuy {
			total = total.Add(tx.Shares)
		}
	}
	return total, nil
}

// --- Price history ---

func (s *MemoryStore) InsertTick(_ context.Context, tick *model.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticks = append(s.ticks, *tick)
	return nil
}

func (s *MemoryStore) ListTicksByMarket(_ context.Context, marketID string) ([]model.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Tick
	for _, tk := range s.ticks {
		if tk.MarketID == marketID {
			result = append(result, tk)
		}
	}
	return result, nil
}

func (s *MemoryStore) UpsertSnapshot(_ context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := snapshotKey(snap.MarketID, snap.Day)
	if existing, ok := s.snapshots[key]; ok {
		existing.YesPrice = snap.YesPrice
		existing.NoPrice = snap.NoPrice
		existing.PositionCount = snap.PositionCount
		existing.Timestamp = snap.Timestamp
		return nil
	}
	cp := *snap
	s.snapshots[key] = &cp
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, marketID, day string) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[snapshotKey(marketID, day)]
	if !ok {
		return nil, fmt.Errorf("snapshot %s/%s: %w", marketID, day, ErrNotFound)
	}
	cp := *snap
	return &cp, nil
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("user %s already exists", u.ID)
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) AdjustSeeds(_ context.Context, userID string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("adjust seeds for user %s: %w", userID, ErrNotFound)
	}
	u.Seeds = u.Seeds.Add(delta)
	return nil
}
