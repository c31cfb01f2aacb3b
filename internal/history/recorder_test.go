package history

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/julesdo/seedmedia-sub002/internal/curve"
	"github.com/julesdo/seedmedia-sub002/internal/model"
	"github.com/julesdo/seedmedia-sub002/internal/store"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// seedPools creates a tracking market with YES and NO pools priced by the
// given real supplies.
func seedPools(t *testing.T, st *store.MemoryStore, marketID string, yesReal, noReal decimal.Decimal) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.CreateMarket(ctx, &model.Market{
		ID:          marketID,
		TargetPrice: d("50"),
		DepthFactor: d("5000"),
		Status:      model.StatusTracking,
		CreatedAt:   now,
	}))

	slope, err := curve.Slope(d("5000"))
	require.NoError(t, err)
	ghost, err := curve.GhostSupply(d("50"), slope)
	require.NoError(t, err)

	for side, real := range map[model.Side]decimal.Decimal{
		model.SideYes: yesReal,
		model.SideNo:  noReal,
	} {
		require.NoError(t, st.CreatePool(ctx, &model.Pool{
			MarketID:    marketID,
			Side:        side,
			Slope:       slope,
			GhostSupply: ghost,
			RealSupply:  real,
			Reserve:     d("50"),
			CreatedAt:   now,
		}))
	}
}

func TestRecordTickFreezesNormalizedPrices(t *testing.T) {
	st := store.NewMemoryStore()
	rec := NewRecorder(st)
	ctx := context.Background()

	// YES at 51, NO at 50: normalized 50.50 / 49.50.
	seedPools(t, st, "m1", d("50"), d("0"))

	require.NoError(t, rec.recordTick(ctx, "m1"))

	ticks, err := st.ListTicksByMarket(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	require.True(t, ticks[0].YesPrice.Equal(d("50.50")), "yes %s", ticks[0].YesPrice)
	require.True(t, ticks[0].NoPrice.Equal(d("49.50")), "no %s", ticks[0].NoPrice)
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	st := store.NewMemoryStore()
	rec := NewRecorder(st)

	// No Run loop draining: filling past capacity must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultQueueSize+10; i++ {
			rec.Enqueue("m1")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestRunDrainsQueue(t *testing.T) {
	st := store.NewMemoryStore()
	rec := NewRecorder(st)
	seedPools(t, st, "m1", d("10"), d("20"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Enqueue("m1")
	rec.Enqueue("m1")

	require.Eventually(t, func() bool {
		ticks, err := st.ListTicksByMarket(context.Background(), "m1")
		return err == nil && len(ticks) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSnapshotAllUpsertsPerDay(t *testing.T) {
	st := store.NewMemoryStore()
	rec := NewRecorder(st)
	ctx := context.Background()

	seedPools(t, st, "m1", d("0"), d("0"))
	seedPools(t, st, "m2", d("100"), d("0"))

	day := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, rec.SnapshotAll(ctx, day))

	// Same day again after prices moved: the row is updated in place.
	require.NoError(t, st.UpdatePoolState(ctx, "m1", model.SideYes, d("200"), d("50")))
	require.NoError(t, rec.SnapshotAll(ctx, day.Add(6*time.Hour)))

	snap, err := st.GetSnapshot(ctx, "m1", "2025-06-01")
	require.NoError(t, err)
	require.True(t, snap.YesPrice.GreaterThan(d("50")), "updated yes %s", snap.YesPrice)

	// A new day gets its own row.
	require.NoError(t, rec.SnapshotAll(ctx, day.Add(24*time.Hour)))
	_, err = st.GetSnapshot(ctx, "m1", "2025-06-02")
	require.NoError(t, err)
}

func TestSnapshotSkipsResolvedMarkets(t *testing.T) {
	st := store.NewMemoryStore()
	rec := NewRecorder(st)
	ctx := context.Background()

	seedPools(t, st, "m1", d("0"), d("0"))
	require.NoError(t, st.SetMarketStatus(ctx, "m1", model.StatusResolved))

	require.NoError(t, rec.SnapshotAll(ctx, time.Now()))

	_, err := st.GetSnapshot(ctx, "m1", time.Now().UTC().Format("2006-01-02"))
	require.ErrorIs(t, err, store.ErrNotFound, "resolved markets are not snapshotted")
}
