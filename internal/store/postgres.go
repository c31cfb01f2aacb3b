package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/julesdo/seedmedia-sub002/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func notFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// --- Markets ---

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (id, target_price, depth_factor, status, event_type, event_at, heat_score, sentiment, position_count, created_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9, $10)`,
		m.ID, m.TargetPrice.String(), m.DepthFactor.String(), m.Status,
		m.EventType, m.EventAt, m.HeatScore.String(), m.Sentiment.String(),
		m.PositionCount, m.CreatedAt,
	)
	return err
}

func (s *PostgresStore) scanMarketRow(row pgx.Row) (*model.Market, error) {
	var m model.Market
	var targetPrice, depthFactor, heatScore, sentiment string

	err := row.Scan(&m.ID, &targetPrice, &depthFactor, &m.Status,
		&m.EventType, &m.EventAt, &heatScore, &sentiment,
		&m.PositionCount, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	m.TargetPrice, _ = decimal.NewFromString(targetPrice)
	m.DepthFactor, _ = decimal.NewFromString(depthFactor)
	m.HeatScore, _ = decimal.NewFromString(heatScore)
	m.Sentiment, _ = decimal.NewFromString(sentiment)
	return &m, nil
}

const marketColumns = `id, target_price::TEXT, depth_factor::TEXT, status,
	event_type, event_at, heat_score::TEXT, sentiment::TEXT,
	position_count, created_at`

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	m, err := s.scanMarketRow(s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, id))
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("get market %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) ListTrackingMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE status = $1 ORDER BY created_at`,
		model.StatusTracking)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := s.scanMarketRow(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) SetMarketStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set status for market %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) AdjustPositionCount(ctx context.Context, id string, delta int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET position_count = GREATEST(position_count + $2, 0) WHERE id = $1`,
		id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("adjust position count for market %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Pools ---

func (s *PostgresStore) CreatePool(ctx context.Context, p *model.Pool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pools (market_id, side, slope, ghost_supply, real_supply, reserve, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7)`,
		p.MarketID, p.Side, p.Slope.String(), p.GhostSupply.String(),
		p.RealSupply.String(), p.Reserve.String(), p.CreatedAt,
	)
	return err
}

func (s *PostgresStore) scanPoolRow(row pgx.Row) (*model.Pool, error) {
	var p model.Pool
	var slope, ghost, real, reserve string

	err := row.Scan(&p.MarketID, &p.Side, &slope, &ghost, &real, &reserve, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.Slope, _ = decimal.NewFromString(slope)
	p.GhostSupply, _ = decimal.NewFromString(ghost)
	p.RealSupply, _ = decimal.NewFromString(real)
	p.Reserve, _ = decimal.NewFromString(reserve)
	return &p, nil
}

const poolColumns = `market_id, side, slope::TEXT, ghost_supply::TEXT,
	real_supply::TEXT, reserve::TEXT, created_at`

func (s *PostgresStore) GetPool(ctx context.Context, marketID string, side model.Side) (*model.Pool, error) {
	p, err := s.scanPoolRow(s.pool.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM pools WHERE market_id = $1 AND side = $2`,
		marketID, side))
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("get pool %s/%s: %w", marketID, side, ErrNotFound)
		}
		return nil, fmt.Errorf("get pool %s/%s: %w", marketID, side, err)
	}
	return p, nil
}

func (s *PostgresStore) GetPools(ctx context.Context, marketID string) (*model.Pool, *model.Pool, error) {
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

func (s *PostgresStore) UpdatePoolState(ctx context.Context, marketID string, side model.Side, realSupply, reserve decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pools SET real_supply = $3::NUMERIC, reserve = $4::NUMERIC
		 WHERE market_id = $1 AND side = $2`,
		marketID, side, realSupply.String(), reserve.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update pool %s/%s: %w", marketID, side, ErrNotFound)
	}
	return nil
}

// --- Positions ---

const positionColumns = `user_id, market_id, side, shares_owned::TEXT,
	total_invested::TEXT, resolved, result, seeds_earned::TEXT, created_at`

func (s *PostgresStore) scanPositionRow(row pgx.Row) (*model.Position, error) {
	var p model.Position
	var shares, invested, earned string

	err := row.Scan(&p.UserID, &p.MarketID, &p.Side, &shares,
		&invested, &p.Resolved, &p.Result, &earned, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.SharesOwned, _ = decimal.NewFromString(shares)
	p.TotalInvested, _ = decimal.NewFromString(invested)
	p.SeedsEarned, _ = decimal.NewFromString(earned)
	return &p, nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, userID, marketID string, side model.Side) (*model.Position, error) {
	p, err := s.scanPositionRow(s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions
		 WHERE user_id = $1 AND market_id = $2 AND side = $3`,
		userID, marketID, side))
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("get position %s/%s/%s: %w", userID, marketID, side, ErrNotFound)
		}
		return nil, fmt.Errorf("get position %s/%s/%s: %w", userID, marketID, side, err)
	}
	return p, nil
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, p *model.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (user_id, market_id, side, shares_owned, total_invested, resolved, result, seeds_earned, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7, $8::NUMERIC, $9)
		 ON CONFLICT (user_id, market_id, side) DO UPDATE SET
		   shares_owned = EXCLUDED.shares_owned,
		   total_invested = EXCLUDED.total_invested,
		   resolved = EXCLUDED.resolved,
		   result = EXCLUDED.result,
		   seeds_earned = EXCLUDED.seeds_earned`,
		p.UserID, p.MarketID, p.Side, p.SharesOwned.String(),
		p.TotalInvested.String(), p.Resolved, p.Result,
		p.SeedsEarned.String(), p.CreatedAt,
	)
	return err
}

func (s *PostgresStore) DeletePosition(ctx context.Context, userID, marketID string, side model.Side) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM positions WHERE user_id = $1 AND market_id = $2 AND side = $3`,
		userID, marketID, side)
	return err
}

func (s *PostgresStore) ListPositionsByMarket(ctx context.Context, marketID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE market_id = $1`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanPositions(rows)
}

func (s *PostgresStore) ListPositionsByUser(ctx context.Context, userID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanPositions(rows)
}

func (s *PostgresStore) scanPositions(rows pgx.Rows) ([]model.Position, error) {
	var positions []model.Position
	for rows.Next() {
		p, err := s.scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

// --- Transactions ---

func (s *PostgresStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, user_id, market_id, side, type, shares, cost, net_amount, real_price, normalized_price, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11)`,
		tx.ID, tx.UserID, tx.MarketID, tx.Side, tx.Type,
		tx.Shares.String(), tx.Cost.String(), tx.NetAmount.String(),
		tx.RealPrice.String(), tx.NormalizedPrice.String(), tx.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListTransactionsByMarket(ctx context.Context, marketID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, market_id, side, type,
		        shares::TEXT, cost::TEXT, net_amount::TEXT,
		        real_price::TEXT, normalized_price::TEXT, timestamp
		 FROM transactions WHERE market_id = $1 ORDER BY timestamp`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var shares, cost, net, realPrice, normPrice string

		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.MarketID, &tx.Side, &tx.Type,
			&shares, &cost, &net, &realPrice, &normPrice, &tx.Timestamp); err != nil {
			return nil, err
		}

		tx.Shares, _ = decimal.NewFromString(shares)
		tx.Cost, _ = decimal.NewFromString(cost)
		tx.NetAmount, _ = decimal.NewFromString(net)
		tx.RealPrice, _ = decimal.NewFromString(realPrice)
		tx.NormalizedPrice, _ = decimal.NewFromString(normPrice)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *PostgresStore) MarketBuyVolume(ctx context.Context, marketID string) (decimal.Decimal, error) {
	var total string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(shares), 0)::TEXT FROM transactions
		 WHERE market_id = $1 AND type = $2`, marketID, model.TxBuy).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	vol, _ := decimal.NewFromString(total)
	return vol, nil
}

// --- Price history ---

func (s *PostgresStore) InsertTick(ctx context.Context, tick *model.Tick) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ticks (id, market_id, yes_price, no_price, position_count, timestamp)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5, $6)`,
		tick.ID, tick.MarketID, tick.YesPrice.String(), tick.NoPrice.String(),
		tick.PositionCount, tick.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListTicksByMarket(ctx context.Context, marketID string) ([]model.Tick, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, market_id, yes_price::TEXT, no_price::TEXT, position_count, timestamp
		 FROM ticks WHERE market_id = $1 ORDER BY timestamp`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var tk model.Tick
		var yes, no string

		if err := rows.Scan(&tk.ID, &tk.MarketID, &yes, &no,
			&tk.PositionCount, &tk.Timestamp); err != nil {
			return nil, err
		}

		tk.YesPrice, _ = decimal.NewFromString(yes)
		tk.NoPrice, _ = decimal.NewFromString(no)
		ticks = append(ticks, tk)
	}
	return ticks, rows.Err()
}

func (s *PostgresStore) UpsertSnapshot(ctx context.Context, snap *model.Snapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, market_id, day, yes_price, no_price, position_count, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7)
		 ON CONFLICT (market_id, day) DO UPDATE SET
		   yes_price = EXCLUDED.yes_price,
		   no_price = EXCLUDED.no_price,
		   position_count = EXCLUDED.position_count,
		   timestamp = EXCLUDED.timestamp`,
		snap.ID, snap.MarketID, snap.Day,
		snap.YesPrice.String(), snap.NoPrice.String(),
		snap.PositionCount, snap.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, marketID, day string) (*model.Snapshot, error) {
	var snap model.Snapshot
	var yes, no string

	err := s.pool.QueryRow(ctx,
		`SELECT id, market_id, day, yes_price::TEXT, no_price::TEXT, position_count, timestamp
		 FROM snapshots WHERE market_id = $1 AND day = $2`, marketID, day,
	).Scan(&snap.ID, &snap.MarketID, &snap.Day, &yes, &no, &snap.PositionCount, &snap.Timestamp)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("get snapshot %s/%s: %w", marketID, day, ErrNotFound)
		}
		return nil, fmt.Errorf("get snapshot %s/%s: %w", marketID, day, err)
	}

	snap.YesPrice, _ = decimal.NewFromString(yes)
	snap.NoPrice, _ = decimal.NewFromString(no)
	return &snap, nil
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, seeds, created_at) VALUES ($1, $2::NUMERIC, $3)`,
		u.ID, u.Seeds.String(), u.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var seeds string

	err := s.pool.QueryRow(ctx,
		`SELECT id, seeds::TEXT, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &seeds, &u.CreatedAt)
	if err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("get user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	u.Seeds, _ = decimal.NewFromString(seeds)
	return &u, nil
}

func (s *PostgresStore) AdjustSeeds(ctx context.Context, userID string, delta decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET seeds = seeds + $2::NUMERIC WHERE id = $1`,
		userID, delta.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("adjust seeds for user %s: %w", userID, ErrNotFound)
	}
	return nil
}
