// Package odds converts the two independent real prices of a binary market
// into a complementary probability pair summing to 100.
//
// The two sides' bonding curves are independent, so their real prices need
// not sum to anything in particular. Display and historical records use the
// normalized pair; trading always uses the unnormalized real price.
package odds

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places for normalized prices.
const Scale int32 = 2

var (
	hundred = decimal.NewFromInt(100)
	fifty   = decimal.NewFromInt(50)
)

// Pair is a complementary normalized price pair. Yes + No == 100 within
// rounding tolerance.
type Pair struct {
	Yes decimal.Decimal `json:"yes"`
	No  decimal.Decimal `json:"no"`
}

// Normalize converts two real prices into a complementary pair:
//
//	yes = 100 × realYes / (realYes + realNo),  no = 100 − yes
//
// each clamped to [0, 100] and rounded to Scale. When both real prices are
// non-positive there is nothing to apportion and the pair defaults to 50/50.
func Normalize(realYes, realNo decimal.Decimal) Pair {
	if realYes.LessThanOrEqual(decimal.Zero) && realNo.LessThanOrEqual(decimal.Zero) {
		return Pair{Yes: fifty, No: fifty}
	}
	if realYes.IsNegative() {
		realYes = decimal.Zero
	}
	if realNo.IsNegative() {
		realNo = decimal.Zero
	}

	total := realYes.Add(realNo)
	yes := clamp(hundred.Mul(realYes).Div(total).Round(Scale))
	return Pair{Yes: yes, No: hundred.Sub(yes)}
}

// FromReserves derives the pair from pool reserves instead of prices. Used
// only for the IPO tick, where the seeded reserves carry the initial
// liquidity ratio.
func FromReserves(reserveYes, reserveNo decimal.Decimal) Pair {
	return Normalize(reserveYes, reserveNo)
}

func clamp(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(hundred) {
		return hundred
	}
	return v
}
