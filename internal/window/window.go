// Package window computes the advisory investment-window countdown for a
// market: how long new positions are (nominally) welcome. The window shrinks
// as an event heats up, draws near, or gets crowded, and stretches as trade
// volume rewards it.
//
// The result is recomputed on every query from market metadata and current
// volume — nothing is persisted, and trading does not enforce it.
package window

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Base is the neutral window before any adjustment.
	Base = 72 * time.Hour

	// Min and Max clamp the final window.
	Min = 24 * time.Hour
	Max = 144 * time.Hour

	// heatSwing is the maximum adjustment contributed by the heat score,
	// applied linearly around the neutral score of 50.
	heatSwing = 15 * time.Hour

	// sentimentSwing is the same for the sentiment score.
	sentimentSwing = 12 * time.Hour

	// volumeBonusCap limits the volume reward.
	volumeBonusCap = 24 * time.Hour

	// volumeBonusPerShare is the reward per share purchased across both
	// sides: 0.01h.
	volumeBonusPerShare = 36 * time.Second

	neutralScore = 50.0
)

// eventTypeAdjust maps event categories to urgency adjustments. Breaking
// news closes fast; slow-burn categories stay open longer. Unknown types
// get no adjustment.
var eventTypeAdjust = map[string]time.Duration{
	"breaking":      -24 * time.Hour,
	"politics":      -12 * time.Hour,
	"economy":       -8 * time.Hour,
	"sports":        -6 * time.Hour,
	"finance":       0,
	"entertainment": 6 * time.Hour,
	"culture":       12 * time.Hour,
	"science":       12 * time.Hour,
}

// Inputs carries everything the calculator reads.
type Inputs struct {
	EventType     string
	EventAt       time.Time
	HeatScore     decimal.Decimal // 0–100, neutral 50
	Sentiment     decimal.Decimal // 0–100, neutral 50
	PositionCount int
	SharesVolume  decimal.Decimal // total shares purchased, both sides
}

// Compute returns the countdown duration for the given inputs at time now.
// Always within [Min, Max].
func Compute(in Inputs, now time.Time) time.Duration {
	w := Base

	// Hot events close sooner, cold ones linger.
	w -= scoreSwing(in.HeatScore, heatSwing)

	// Category urgency.
	w += eventTypeAdjust[in.EventType]

	// Strong sentiment accelerates the close.
	w -= scoreSwing(in.Sentiment, sentimentSwing)

	// Imminent events leave less room to pile in.
	if !in.EventAt.IsZero() {
		until := in.EventAt.Sub(now)
		switch {
		case until < 7*24*time.Hour:
			w -= 18 * time.Hour
		case until < 30*24*time.Hour:
			w -= 6 * time.Hour
		}
	}

	// FOMO penalty: crowded markets close sooner.
	switch {
	case in.PositionCount >= 50:
		w -= 12 * time.Hour
	case in.PositionCount >= 20:
		w -= 6 * time.Hour
	case in.PositionCount >= 10:
		w -= 3 * time.Hour
	}

	// Volume reward, capped.
	bonus := time.Duration(in.SharesVolume.InexactFloat64() * float64(volumeBonusPerShare))
	if bonus > volumeBonusCap {
		bonus = volumeBonusCap
	}
	if bonus > 0 {
		w += bonus
	}

	if w < Min {
		return Min
	}
	if w > Max {
		return Max
	}
	return w
}

// scoreSwing maps a 0–100 score to ±swing linearly around the neutral 50.
func scoreSwing(score decimal.Decimal, swing time.Duration) time.Duration {
	ratio := (score.InexactFloat64() - neutralScore) / neutralScore
	if ratio > 1 {
		ratio = 1
	}
	if ratio < -1 {
		ratio = -1
	}
	return time.Duration(ratio * float64(swing))
}
