// Package postgres provides the shared-database store backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolwatch/internal/model"
	"poolwatch/internal/storage"
)

// Store provides Postgres persistence for pools and watch lists.
type Store struct {
	pool *pgxpool.Pool
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		telegram_id BIGINT NOT NULL UNIQUE,
		username TEXT NOT NULL DEFAULT '',
		min_tvl_filter DOUBLE PRECISION NOT NULL DEFAULT 0,
		min_apr_filter DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pools (
		id BIGSERIAL PRIMARY KEY,
		pool_address TEXT NOT NULL UNIQUE,
		protocol TEXT NOT NULL,
		chain TEXT NOT NULL DEFAULT '',
		token_x_symbol TEXT NOT NULL DEFAULT '',
		token_y_symbol TEXT NOT NULL DEFAULT '',
		tvl_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
		volume_24h DOUBLE PRECISION NOT NULL DEFAULT 0,
		apr_fees DOUBLE PRECISION NOT NULL DEFAULT 0,
		apr_farming DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_apr DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE pools ADD COLUMN IF NOT EXISTS fees_24h DOUBLE PRECISION NOT NULL DEFAULT 0`,
	`ALTER TABLE pools ADD COLUMN IF NOT EXISTS fee_rate BIGINT NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS idx_pools_tvl ON pools (tvl_usd)`,
	`CREATE TABLE IF NOT EXISTS watched_pools (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		pool_id BIGINT NOT NULL REFERENCES pools (id) ON DELETE CASCADE,
		alert_threshold DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, pool_id)
	)`,
}

// NewStore connects to Postgres and ensures the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const poolColumns = `id, pool_address, protocol, chain, token_x_symbol, token_y_symbol,
	tvl_usd, volume_24h, fees_24h, fee_rate, apr_fees, apr_farming, total_apr, last_updated`

// UpsertPools inserts or refreshes pools by address.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		if p.Address == "" {
			continue
		}
		batch.Queue(`
			INSERT INTO pools (
				pool_address, protocol, chain, token_x_symbol, token_y_symbol,
				tvl_usd, volume_24h, fees_24h, fee_rate, apr_fees, apr_farming, total_apr, last_updated
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (pool_address)
			DO UPDATE SET
				protocol = EXCLUDED.protocol,
				chain = EXCLUDED.chain,
				token_x_symbol = EXCLUDED.token_x_symbol,
				token_y_symbol = EXCLUDED.token_y_symbol,
				tvl_usd = EXCLUDED.tvl_usd,
				volume_24h = EXCLUDED.volume_24h,
				fees_24h = EXCLUDED.fees_24h,
				fee_rate = EXCLUDED.fee_rate,
				apr_fees = EXCLUDED.apr_fees,
				apr_farming = EXCLUDED.apr_farming,
				total_apr = EXCLUDED.total_apr,
				last_updated = EXCLUDED.last_updated
		`,
			p.Address,
			p.Protocol,
			p.Chain,
			p.TokenX,
			p.TokenY,
			p.TVLUSD,
			p.Volume24h,
			p.Fees24h,
			p.FeeRate,
			p.FeeAPR,
			p.FarmAPR,
			p.TotalAPR,
			p.LastUpdated.UTC(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

var sortColumns = map[string]string{
	"tvl":    "tvl_usd",
	"volume": "volume_24h",
	"apr":    "total_apr",
	"fees":   "fees_24h",
}

// TopPools lists pools above the query thresholds, sorted descending.
func (s *Store) TopPools(ctx context.Context, q storage.PoolQuery) ([]model.Pool, error) {
	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "tvl_usd"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`SELECT %s FROM pools
		WHERE tvl_usd >= $1 AND total_apr >= $2
		ORDER BY %s DESC LIMIT $3`, poolColumns, col)

	rows, err := s.pool.Query(ctx, query, q.MinTVL, q.MinAPR, limit)
	if err != nil {
		return nil, fmt.Errorf("query top pools: %w", err)
	}
	defer rows.Close()
	return scanPools(rows)
}

// PoolByAddress fetches a single pool, or storage.ErrNotFound.
func (s *Store) PoolByAddress(ctx context.Context, address string) (model.Pool, error) {
	query := fmt.Sprintf(`SELECT %s FROM pools WHERE pool_address = $1`, poolColumns)
	p, err := scanPool(s.pool.QueryRow(ctx, query, address))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Pool{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Pool{}, fmt.Errorf("query pool %s: %w", address, err)
	}
	return p, nil
}

// PoolsByFeeRate lists pools in one fee tier, largest first.
func (s *Store) PoolsByFeeRate(ctx context.Context, feeRate int) ([]model.Pool, error) {
	query := fmt.Sprintf(`SELECT %s FROM pools WHERE fee_rate = $1 ORDER BY tvl_usd DESC`, poolColumns)
	rows, err := s.pool.Query(ctx, query, feeRate)
	if err != nil {
		return nil, fmt.Errorf("query pools by fee rate: %w", err)
	}
	defer rows.Close()
	return scanPools(rows)
}

// AllPools lists every stored pool, largest first.
func (s *Store) AllPools(ctx context.Context) ([]model.Pool, error) {
	query := fmt.Sprintf(`SELECT %s FROM pools ORDER BY tvl_usd DESC`, poolColumns)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()
	return scanPools(rows)
}

// GetOrCreateUser fetches the user for a Telegram ID, creating the row
// on first contact.
func (s *Store) GetOrCreateUser(ctx context.Context, telegramID int64, username string) (model.User, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (telegram_id, username) VALUES ($1, $2)
		 ON CONFLICT (telegram_id) DO NOTHING`,
		telegramID, username)
	if err != nil {
		return model.User{}, fmt.Errorf("create user %d: %w", telegramID, err)
	}

	var u model.User
	err = s.pool.QueryRow(ctx,
		`SELECT id, telegram_id, username, min_tvl_filter, min_apr_filter, created_at
		 FROM users WHERE telegram_id = $1`, telegramID).
		Scan(&u.ID, &u.TelegramID, &u.Username, &u.MinTVLFilter, &u.MinAPRFilter, &u.CreatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("query user %d: %w", telegramID, err)
	}
	return u, nil
}

// CountPools returns the number of tracked pools.
func (s *Store) CountPools(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pools`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pools: %w", err)
	}
	return n, nil
}

// CountUsers returns the number of known users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// WatchPool adds a pool to the user's watch list, creating the user
// when needed.
func (s *Store) WatchPool(ctx context.Context, telegramID int64, poolAddress string, alertThreshold *float64) error {
	u, err := s.GetOrCreateUser(ctx, telegramID, "")
	if err != nil {
		return err
	}

	var poolID int64
	err = s.pool.QueryRow(ctx, `SELECT id FROM pools WHERE pool_address = $1`, poolAddress).Scan(&poolID)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query pool %s: %w", poolAddress, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO watched_pools (user_id, pool_id, alert_threshold) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, pool_id) DO UPDATE SET alert_threshold = EXCLUDED.alert_threshold`,
		u.ID, poolID, alertThreshold)
	if err != nil {
		return fmt.Errorf("watch pool %s: %w", poolAddress, err)
	}
	return nil
}

// UnwatchPool removes a pool from the user's watch list.
func (s *Store) UnwatchPool(ctx context.Context, telegramID int64, poolAddress string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM watched_pools
		 WHERE user_id = (SELECT id FROM users WHERE telegram_id = $1)
		   AND pool_id = (SELECT id FROM pools WHERE pool_address = $2)`,
		telegramID, poolAddress)
	if err != nil {
		return fmt.Errorf("unwatch pool %s: %w", poolAddress, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// WatchedPools lists the user's watched pools with current pool data.
func (s *Store) WatchedPools(ctx context.Context, telegramID int64) ([]model.WatchedPool, error) {
	query := `SELECT
		w.id, w.user_id, w.pool_id, w.alert_threshold, w.created_at,
		p.id, p.pool_address, p.protocol, p.chain, p.token_x_symbol, p.token_y_symbol,
		p.tvl_usd, p.volume_24h, p.fees_24h, p.fee_rate, p.apr_fees, p.apr_farming, p.total_apr, p.last_updated
	FROM watched_pools w
	JOIN users u ON u.id = w.user_id
	JOIN pools p ON p.id = w.pool_id
	WHERE u.telegram_id = $1
	ORDER BY p.tvl_usd DESC`

	rows, err := s.pool.Query(ctx, query, telegramID)
	if err != nil {
		return nil, fmt.Errorf("query watched pools: %w", err)
	}
	defer rows.Close()

	var watched []model.WatchedPool
	for rows.Next() {
		var (
			w         model.WatchedPool
			threshold sql.NullFloat64
		)
		err := rows.Scan(
			&w.ID, &w.UserID, &w.PoolID, &threshold, &w.CreatedAt,
			&w.Pool.ID, &w.Pool.Address, &w.Pool.Protocol, &w.Pool.Chain,
			&w.Pool.TokenX, &w.Pool.TokenY,
			&w.Pool.TVLUSD, &w.Pool.Volume24h, &w.Pool.Fees24h, &w.Pool.FeeRate,
			&w.Pool.FeeAPR, &w.Pool.FarmAPR, &w.Pool.TotalAPR, &w.Pool.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan watched pool: %w", err)
		}
		if threshold.Valid {
			v := threshold.Float64
			w.AlertThreshold = &v
		}
		watched = append(watched, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan watched pools: %w", err)
	}
	return watched, nil
}

func scanPool(row pgx.Row) (model.Pool, error) {
	var p model.Pool
	err := row.Scan(
		&p.ID, &p.Address, &p.Protocol, &p.Chain, &p.TokenX, &p.TokenY,
		&p.TVLUSD, &p.Volume24h, &p.Fees24h, &p.FeeRate,
		&p.FeeAPR, &p.FarmAPR, &p.TotalAPR, &p.LastUpdated,
	)
	return p, err
}

func scanPools(rows pgx.Rows) ([]model.Pool, error) {
	var pools []model.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan pools: %w", err)
	}
	return pools, nil
}
