// Package store defines the persistence interface for the market engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/julesdo/seedmedia-sub002/internal/model"
)

// ErrNotFound is returned when a requested record does not exist. Callers
// translate it into the appropriate domain error for their context.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Markets ---

	// CreateMarket persists a new market record.
	CreateMarket(ctx context.Context, m *model.Market) error

	// GetMarket retrieves a market by ID.
	GetMarket(ctx context.Context, id string) (*model.Market, error)

	// ListTrackingMarkets returns all markets still open for trading.
	ListTrackingMarkets(ctx context.Context) ([]model.Market, error)

	// SetMarketStatus transitions a market's status.
	SetMarketStatus(ctx context.Context, id, status string) error

	// AdjustPositionCount changes the market's open-position counter by
	// delta, floored at zero.
	AdjustPositionCount(ctx context.Context, id string, delta int) error

	// --- Pools ---

	// CreatePool persists a new pool. Fails if the (market, side) pool
	// already exists.
	CreatePool(ctx context.Context, p *model.Pool) error

	// GetPool retrieves one side's pool.
	GetPool(ctx context.Context, marketID string, side model.Side) (*model.Pool, error)

	// GetPools retrieves both pools for a market.
	GetPools(ctx context.Context, marketID string) (yes, no *model.Pool, err error)

	// UpdatePoolState writes a pool's mutable fields after a trade or
	// liquidation.
	UpdatePoolState(ctx context.Context, marketID string, side model.Side, realSupply, reserve decimal.Decimal) error

	// --- Positions ---

	// GetPosition retrieves one user's holding on one side of a market.
	GetPosition(ctx context.Context, userID, marketID string, side model.Side) (*model.Position, error)

	// UpsertPosition creates or replaces a position.
	UpsertPosition(ctx context.Context, p *model.Position) error

	// DeletePosition removes a fully-sold position.
	DeletePosition(ctx context.Context, userID, marketID string, side model.Side) error

	// ListPositionsByMarket returns all positions on a market, both sides.
	ListPositionsByMarket(ctx context.Context, marketID string) ([]model.Position, error)

	// ListPositionsByUser returns all of a user's positions.
	ListPositionsByUser(ctx context.Context, userID string) ([]model.Position, error)

	// --- Transactions (append-only) ---

	// InsertTransaction appends an immutable trade record.
	InsertTransaction(ctx context.Context, tx *model.Transaction) error

	// ListTransactionsByMarket returns all trades for a market in time order.
	ListTransactionsByMarket(ctx context.Context, marketID string) ([]model.Transaction, error)

	// MarketBuyVolume returns total shares bought across both sides.
	MarketBuyVolume(ctx context.Context, marketID string) (decimal.Decimal, error)

	// --- Price history ---

	// InsertTick appends a frozen per-trade price observation.
	InsertTick(ctx context.Context, tick *model.Tick) error

	// ListTicksByMarket returns all ticks for a market in time order.
	ListTicksByMarket(ctx context.Context, marketID string) ([]model.Tick, error)

	// UpsertSnapshot creates or updates the market's snapshot for its day.
	UpsertSnapshot(ctx context.Context, snap *model.Snapshot) error

	// GetSnapshot retrieves one market's snapshot for a UTC day (YYYY-MM-DD).
	GetSnapshot(ctx context.Context, marketID, day string) (*model.Snapshot, error)

	// --- Users ---

	// CreateUser persists a new user with an opening balance.
	CreateUser(ctx context.Context, u *model.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// AdjustSeeds credits (positive) or debits (negative) a user's balance.
	AdjustSeeds(ctx context.Context, userID string, delta decimal.Decimal) error
}
