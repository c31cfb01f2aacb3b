package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/julesdo/seedmedia-sub002/internal/curve"
	"github.com/julesdo/seedmedia-sub002/internal/metrics"
	"github.com/julesdo/seedmedia-sub002/internal/model"
	"github.com/julesdo/seedmedia-sub002/internal/store"
)

// LiquidationResult reports the terminal redistribution of a market.
type LiquidationResult struct {
	FinalPrice       decimal.Decimal `json:"final_price"`       // per winning share
	TotalReserve     decimal.Decimal `json:"total_reserve"`     // pot distributed
	UsersPaid        int             `json:"users_paid"`
	ReserveLost      decimal.Decimal `json:"reserve_lost"`      // loser reserve swept
	ReserveUnclaimed decimal.Decimal `json:"reserve_unclaimed"` // payouts skipped for missing users
}

// Liquidate resolves a market winner-takes-all: both reserves pool
// together, the loser pool is zeroed, and every real winning share is paid
// totalPot / winnerRealSupply. Ghost supply deliberately does not
// participate — only user-held shares split the pot, so thin real supply
// can pay far above the marginal curve price. Irreversible; runs at most
// once per market.
func (s *Service) Liquidate(ctx context.Context, marketID string, winningSide model.Side) (*LiquidationResult, error) {
	if !winningSide.Valid() {
		return nil, curve.ErrInvalidParameter
	}

	lock := s.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}
	if market.Status == model.StatusResolved {
		return nil, ErrMarketResolved
	}

	yes, no, err := s.store.GetPools(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPoolsNotFound
		}
		return nil, err
	}

	winner, loser := yes, no
	if winningSide == model.SideNo {
		winner, loser = no, yes
	}

	totalPot := winner.Reserve.Add(loser.Reserve)
	finalPrice := decimal.Zero
	if winner.RealSupply.IsPositive() {
		finalPrice = totalPot.Div(winner.RealSupply)
	}

	// Winner takes all: pot moves to the winner pool, loser is zeroed.
	if err := s.store.UpdatePoolState(ctx, marketID, winner.Side, winner.RealSupply, totalPot); err != nil {
		return nil, err
	}
	if err := s.store.UpdatePoolState(ctx, marketID, loser.Side, loser.RealSupply, decimal.Zero); err != nil {
		return nil, err
	}

	positions, err := s.store.ListPositionsByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	usersPaid := 0
	unclaimed := decimal.Zero
	totalPaid := decimal.Zero

	for i := range positions {
		pos := &positions[i]
		if pos.Resolved {
			continue
		}

		if pos.Side != winningSide {
			pos.Resolved = true
			pos.Result = "lost"
			pos.SeedsEarned = decimal.Zero
			if err := s.store.UpsertPosition(ctx, pos); err != nil {
				return nil, err
			}
			continue
		}

		payout := pos.SharesOwned.Mul(finalPrice).Round(curve.SeedScale)
		if _, err := s.store.GetUser(ctx, pos.UserID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Owner record is gone: the payout stays in the winner
				// pool's reserve rather than vanishing.
				slog.Warn("liquidation payout skipped, user missing",
					"market", marketID, "user", pos.UserID, "payout", payout.String())
				unclaimed = unclaimed.Add(payout)
			} else {
				return nil, err
			}
		} else {
			if err := s.store.AdjustSeeds(ctx, pos.UserID, payout); err != nil {
				return nil, err
			}
			usersPaid++
			totalPaid = totalPaid.Add(payout)
		}

		pos.Resolved = true
		pos.Result = "won"
		pos.SeedsEarned = payout
		if err := s.store.UpsertPosition(ctx, pos); err != nil {
			return nil, err
		}
	}

	if err := s.store.SetMarketStatus(ctx, marketID, model.StatusResolved); err != nil {
		return nil, err
	}

	metrics.LiquidationsTotal.Inc()
	metrics.SeedsPaidOut.Add(totalPaid.InexactFloat64())

	slog.Info("market liquidated",
		"market", marketID,
		"winner", winningSide,
		"final_price", finalPrice.Round(curve.SeedScale).String(),
		"total_pot", totalPot.String(),
		"users_paid", usersPaid,
		"unclaimed", unclaimed.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:        "liquidation",
			MarketID:    marketID,
			WinningSide: string(winningSide),
			FinalPrice:  finalPrice.Round(curve.SeedScale).String(),
		})
	}

	return &LiquidationResult{
		FinalPrice:       finalPrice.Round(curve.SeedScale),
		TotalReserve:     totalPot,
		UsersPaid:        usersPaid,
		ReserveLost:      loser.Reserve,
		ReserveUnclaimed: unclaimed,
	}, nil
}
