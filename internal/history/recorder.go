// Package history records the price series charts are built from: one tick
// per committed trade and one snapshot per market per UTC day. Both are
// frozen observations; display layers read them back as written.
package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/julesdo/seedmedia-sub002/internal/metrics"
	"github.com/julesdo/seedmedia-sub002/internal/model"
	"github.com/julesdo/seedmedia-sub002/internal/odds"
	"github.com/julesdo/seedmedia-sub002/internal/store"
)

const defaultQueueSize = 256

// Recorder consumes market IDs after committed trades and writes frozen
// price ticks off the trade path. Enqueue never blocks; when the queue is
// full the observation is dropped and counted.
type Recorder struct {
	store store.Store
	queue chan string
}

// NewRecorder creates a recorder. Run must be started for ticks to flush.
func NewRecorder(st store.Store) *Recorder {
	return &Recorder{
		store: st,
		queue: make(chan string, defaultQueueSize),
	}
}

// Enqueue schedules a tick observation for a market. Safe from any
// goroutine; drops rather than blocking the caller.
func (r *Recorder) Enqueue(marketID string) {
	select {
	case r.queue <- marketID:
	default:
		metrics.TicksDropped.Inc()
		slog.Warn("tick queue full, observation dropped", "market", marketID)
	}
}

// Run drains the queue until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case marketID := <-r.queue:
			if err := r.recordTick(ctx, marketID); err != nil {
				slog.Error("tick recording failed", "market", marketID, "err", err)
			}
		}
	}
}

// recordTick freezes the market's current normalized prices as a tick.
func (r *Recorder) recordTick(ctx context.Context, marketID string) error {
	pair, count, err := r.observe(ctx, marketID)
	if err != nil {
		return err
	}

	tick := &model.Tick{
		ID:            uuid.New().String(),
		MarketID:      marketID,
		YesPrice:      pair.Yes,
		NoPrice:       pair.No,
		PositionCount: count,
		Timestamp:     time.Now().UTC(),
	}
	if err := r.store.InsertTick(ctx, tick); err != nil {
		return err
	}
	metrics.TicksRecorded.Inc()
	return nil
}

// observe reads both pools and the market counter and normalizes prices.
func (r *Recorder) observe(ctx context.Context, marketID string) (odds.Pair, int, error) {
	market, err := r.store.GetMarket(ctx, marketID)
	if err != nil {
		return odds.Pair{}, 0, err
	}
	yes, no, err := r.store.GetPools(ctx, marketID)
	if err != nil {
		return odds.Pair{}, 0, err
	}

	yesPrice := yes.Slope.Mul(yes.TotalSupply())
	noPrice := no.Slope.Mul(no.TotalSupply())
	return odds.Normalize(yesPrice, noPrice), market.PositionCount, nil
}

// SnapshotAll writes or updates the day's snapshot for every tracking
// market. Within a day re-runs overwrite the same row, so the last sweep
// of the day wins.
func (r *Recorder) SnapshotAll(ctx context.Context, now time.Time) error {
	markets, err := r.store.ListTrackingMarkets(ctx)
	if err != nil {
		return err
	}

	day := now.UTC().Format("2006-01-02")
	for _, market := range markets {
		pair, count, err := r.observe(ctx, market.ID)
		if err != nil {
			slog.Error("snapshot observation failed", "market", market.ID, "err", err)
			continue
		}
		snap := &model.Snapshot{
			ID:            uuid.New().String(),
			MarketID:      market.ID,
			Day:           day,
			YesPrice:      pair.Yes,
			NoPrice:       pair.No,
			PositionCount: count,
			Timestamp:     now.UTC(),
		}
		if err := r.store.UpsertSnapshot(ctx, snap); err != nil {
			slog.Error("snapshot write failed", "market", market.ID, "err", err)
		}
	}

	metrics.SnapshotRuns.Inc()
	return nil
}

// RunDailySnapshots sweeps all tracking markets on the given interval
// until ctx is cancelled.
func (r *Recorder) RunDailySnapshots(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := r.SnapshotAll(ctx, now); err != nil {
				slog.Error("snapshot sweep failed", "err", err)
			}
		}
	}
}
