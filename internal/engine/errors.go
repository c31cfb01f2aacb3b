package engine

import "errors"

// Business-rule and missing-state errors surfaced by the trading API.
// Rejections are never retried internally: a failed buy or sell aborts with
// all state unchanged.
var (
	// ErrInsufficientFunds is returned when a buyer's Seed balance cannot
	// cover the cost.
	ErrInsufficientFunds = errors.New("engine: insufficient funds")

	// ErrInsufficientShares is returned when a seller owns fewer shares
	// than the sell asks for.
	ErrInsufficientShares = errors.New("engine: insufficient shares")

	// ErrInsufficientLiquidity is returned when the pool reserve cannot
	// cover a sell's gross proceeds.
	ErrInsufficientLiquidity = errors.New("engine: insufficient pool liquidity")

	// ErrPoolUninitialized is returned when a trade targets a market whose
	// pools were never initialized. Indicates a setup ordering bug.
	ErrPoolUninitialized = errors.New("engine: pool not initialized")

	// ErrPoolsNotFound is returned by liquidation when either side's pool
	// is missing.
	ErrPoolsNotFound = errors.New("engine: pools not found")

	// ErrPositionNotFound is returned when a sell targets a position the
	// user does not hold.
	ErrPositionNotFound = errors.New("engine: position not found")

	// ErrMarketResolved is returned for any trade or re-liquidation
	// attempted after a market has been liquidated.
	ErrMarketResolved = errors.New("engine: market already resolved")

	// ErrMarketNotFound is returned when the referenced market record does
	// not exist.
	ErrMarketNotFound = errors.New("engine: market not found")

	// ErrUserNotFound is returned when the trading user record does not
	// exist.
	ErrUserNotFound = errors.New("engine: user not found")
)
