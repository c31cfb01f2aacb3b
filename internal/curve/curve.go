// Package curve implements the linear bonding-curve automated market maker
// for binary event markets.
//
// Each side of a market is priced independently by the same curve:
//
//	price(s) = slope × s       with s = ghostSupply + realSupply
//
// Ghost supply is virtual pre-minted supply that makes the price start at
// the market's target probability with zero real liquidity. The cost of a
// trade is the definite integral of the price over the traded range, so
// pricing is path-independent and a buy followed by an immediate sell of
// the same size returns exactly the amount paid (before tax).
//
// All monetary values use shopspring/decimal — never float64 for money.
package curve

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidParameter is returned for non-positive depth factors or
	// slopes, negative supplies, and non-positive share quantities.
	// Always a caller bug, never retried.
	ErrInvalidParameter = errors.New("curve: invalid parameter")

	// ErrSharesExceedSupply is returned when a sell asks for more shares
	// than the supply holds.
	ErrSharesExceedSupply = errors.New("curve: cannot sell more shares than supply")

	// SeedScale is the number of decimal places for Seed amounts.
	SeedScale int32 = 2
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Sell tax tiers, keyed by holding duration. The rate decreases with
// holding time to discourage same-day flipping and reward patience.
var (
	taxUnder24h = decimal.NewFromFloat(0.20)
	taxUnder7d  = decimal.NewFromFloat(0.15)
	taxUnder30d = decimal.NewFromFloat(0.10)
	taxLongHold = decimal.NewFromFloat(0.05)
)

// Slope derives the curve steepness from the market's depth factor:
//
//	m = 100 / depthFactor
//
// Higher depth factor → flatter curve → less price impact per trade.
func Slope(depthFactor decimal.Decimal) (decimal.Decimal, error) {
	if depthFactor.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidParameter
	}
	return hundred.Div(depthFactor), nil
}

// GhostSupply derives the virtual pre-minted supply that seeds the launch
// price:
//
//	ghost = targetPrice / slope
//
// so that price(ghost) = targetPrice before any real share is issued.
func GhostSupply(targetPrice, slope decimal.Decimal) (decimal.Decimal, error) {
	if slope.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidParameter
	}
	return targetPrice.Div(slope), nil
}

// Curve prices one side of a market. It is stateless — supply is passed as
// an argument, not stored.
type Curve struct {
	slope decimal.Decimal
}

// New creates a curve from the market's depth factor.
func New(depthFactor decimal.Decimal) (*Curve, error) {
	m, err := Slope(depthFactor)
	if err != nil {
		return nil, err
	}
	return &Curve{slope: m}, nil
}

// FromSlope creates a curve from an already-derived slope, as persisted on
// a pool at IPO.
func FromSlope(slope decimal.Decimal) (*Curve, error) {
	if slope.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidParameter
	}
	return &Curve{slope: slope}, nil
}

// Slope returns the curve steepness.
func (c *Curve) Slope() decimal.Decimal {
	return c.slope
}

// Price computes the instantaneous unit price at the given total supply:
//
//	price = max(0, slope × supply)
func (c *Curve) Price(totalSupply decimal.Decimal) (decimal.Decimal, error) {
	if totalSupply.IsNegative() {
		return decimal.Zero, ErrInvalidParameter
	}
	p := c.slope.Mul(totalSupply)
	if p.IsNegative() {
		return decimal.Zero, nil
	}
	return p, nil
}

// BuyCost computes the cost of buying shares at the given supply level as
// the integral of the price over [supplyBefore, supplyBefore+shares]:
//
//	cost = (slope/2) × (supplyAfter² − supplyBefore²)
//
// Floored at zero and rounded to SeedScale.
func (c *Curve) BuyCost(supplyBefore, shares decimal.Decimal) (decimal.Decimal, error) {
	if shares.LessThanOrEqual(decimal.Zero) || supplyBefore.IsNegative() {
		return decimal.Zero, ErrInvalidParameter
	}
	after := supplyBefore.Add(shares)
	cost := c.slope.Div(two).Mul(after.Mul(after).Sub(supplyBefore.Mul(supplyBefore)))
	if cost.IsNegative() {
		return decimal.Zero, nil
	}
	return cost.Round(SeedScale), nil
}

// SellGross computes the gross proceeds of selling shares at the given
// supply level as the integral over [supplyBefore−shares, supplyBefore].
// Fails when shares exceed the supply — the curve cannot buy back shares
// that were never issued.
func (c *Curve) SellGross(supplyBefore, shares decimal.Decimal) (decimal.Decimal, error) {
	if shares.LessThanOrEqual(decimal.Zero) || supplyBefore.IsNegative() {
		return decimal.Zero, ErrInvalidParameter
	}
	if shares.GreaterThan(supplyBefore) {
		return decimal.Zero, ErrSharesExceedSupply
	}
	after := supplyBefore.Sub(shares)
	gross := c.slope.Div(two).Mul(supplyBefore.Mul(supplyBefore).Sub(after.Mul(after)))
	if gross.IsNegative() {
		return decimal.Zero, nil
	}
	return gross.Round(SeedScale), nil
}

// SellTaxRate returns the tax rate applied to sell proceeds for a position
// held for the given duration. Monotonically non-increasing in holding time.
func SellTaxRate(holding time.Duration) decimal.Decimal {
	switch {
	case holding < 24*time.Hour:
		return taxUnder24h
	case holding < 7*24*time.Hour:
		return taxUnder7d
	case holding < 30*24*time.Hour:
		return taxUnder30d
	default:
		return taxLongHold
	}
}

// SellNet applies the holding-time tax to gross sell proceeds and returns
// the net payout and the fee withheld, both rounded to SeedScale.
// The fee is burned: it leaves the pool reserve but is credited to no one.
func SellNet(gross decimal.Decimal, holding time.Duration) (net, fee decimal.Decimal) {
	fee = gross.Mul(SellTaxRate(holding)).Round(SeedScale)
	net = gross.Sub(fee).Round(SeedScale)
	return net, fee
}
