// Package model defines the core domain types shared across the market engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies one of the two outcomes of a binary market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is one of the two recognized sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other side of a binary market.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Market statuses.
const (
	StatusTracking = "tracking"
	StatusResolved = "resolved"
)

// Transaction types.
const (
	TxBuy  = "buy"
	TxSell = "sell"
)

// Market is the external event record the engine prices. Immutable after
// pool initialization except Status and PositionCount.
type Market struct {
	ID            string          `json:"id" db:"id"`
	TargetPrice   decimal.Decimal `json:"target_price" db:"target_price"` // 1–99, launch probability
	DepthFactor   decimal.Decimal `json:"depth_factor" db:"depth_factor"` // >0, curve stiffness
	Status        string          `json:"status" db:"status"`             // "tracking" or "resolved"
	EventType     string          `json:"event_type" db:"event_type"`
	EventAt       time.Time       `json:"event_at" db:"event_at"`
	HeatScore     decimal.Decimal `json:"heat_score" db:"heat_score"` // 0–100
	Sentiment     decimal.Decimal `json:"sentiment" db:"sentiment"`   // 0–100
	PositionCount int             `json:"position_count" db:"position_count"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Pool is the bonding-curve state for one side of one market.
// Slope and GhostSupply are fixed at IPO; RealSupply and Reserve mutate on
// every trade. Spot price is always Slope × (GhostSupply + RealSupply).
type Pool struct {
	MarketID    string          `json:"market_id" db:"market_id"`
	Side        Side            `json:"side" db:"side"`
	Slope       decimal.Decimal `json:"slope" db:"slope"`
	GhostSupply decimal.Decimal `json:"ghost_supply" db:"ghost_supply"`
	RealSupply  decimal.Decimal `json:"real_supply" db:"real_supply"`
	Reserve     decimal.Decimal `json:"reserve" db:"reserve"` // Seeds backing real supply
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// TotalSupply returns ghost + real supply, the quantity the curve prices.
func (p *Pool) TotalSupply() decimal.Decimal {
	return p.GhostSupply.Add(p.RealSupply)
}

// Position is one user's holding on one side of one market.
// Created on first buy, deleted when fully sold, finalized at resolution.
type Position struct {
	UserID        string          `json:"user_id" db:"user_id"`
	MarketID      string          `json:"market_id" db:"market_id"`
	Side          Side            `json:"side" db:"side"`
	SharesOwned   decimal.Decimal `json:"shares_owned" db:"shares_owned"`
	TotalInvested decimal.Decimal `json:"total_invested" db:"total_invested"` // cumulative, never reduced
	Resolved      bool            `json:"resolved" db:"resolved"`
	Result        string          `json:"result,omitempty" db:"result"` // "won" or "lost" once resolved
	SeedsEarned   decimal.Decimal `json:"seeds_earned" db:"seeds_earned"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"` // sell-tax clock
}

// Transaction is an immutable record of one buy or sell execution.
// The sole source of truth for historical P&L reconstruction.
type Transaction struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	MarketID        string          `json:"market_id" db:"market_id"`
	Side            Side            `json:"side" db:"side"`
	Type            string          `json:"type" db:"type"` // "buy" or "sell"
	Shares          decimal.Decimal `json:"shares" db:"shares"`
	Cost            decimal.Decimal `json:"cost" db:"cost"`             // gross amount
	NetAmount       decimal.Decimal `json:"net_amount" db:"net_amount"` // sell only, after tax
	RealPrice       decimal.Decimal `json:"real_price" db:"real_price"` // spot at execution
	NormalizedPrice decimal.Decimal `json:"normalized_price" db:"normalized_price"`
	Timestamp       time.Time       `json:"timestamp" db:"timestamp"`
}

// Tick is a frozen per-trade price observation. Charts must read these
// values as written, never re-derive them from current pool state.
type Tick struct {
	ID            string          `json:"id" db:"id"`
	MarketID      string          `json:"market_id" db:"market_id"`
	YesPrice      decimal.Decimal `json:"yes_price" db:"yes_price"` // normalized
	NoPrice       decimal.Decimal `json:"no_price" db:"no_price"`   // normalized
	PositionCount int             `json:"position_count" db:"position_count"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
}

// Snapshot is the daily counterpart of a Tick: one per market per UTC day,
// updated in place within the day, frozen thereafter.
type Snapshot struct {
	ID            string          `json:"id" db:"id"`
	MarketID      string          `json:"market_id" db:"market_id"`
	Day           string          `json:"day" db:"day"` // YYYY-MM-DD, UTC
	YesPrice      decimal.Decimal `json:"yes_price" db:"yes_price"`
	NoPrice       decimal.Decimal `json:"no_price" db:"no_price"`
	PositionCount int             `json:"position_count" db:"position_count"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
}

// User is the balance record debited on buys and credited on sells/payouts.
type User struct {
	ID        string          `json:"id" db:"id"`
	Seeds     decimal.Decimal `json:"seeds" db:"seeds"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
