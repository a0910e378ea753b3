package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"poolwatch/internal/model"
	"poolwatch/internal/storage"
)

// WatchPool adds a pool to the user's watch list, creating the user
// when needed. Watching an already watched pool updates the alert
// threshold. Returns storage.ErrNotFound when the pool is unknown.
func (s *Store) WatchPool(ctx context.Context, telegramID int64, poolAddress string, alertThreshold *float64) error {
	u, err := s.GetOrCreateUser(ctx, telegramID, "")
	if err != nil {
		return err
	}

	var poolID int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM pools WHERE pool_address = ?`, poolAddress).Scan(&poolID)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query pool %s: %w", poolAddress, err)
	}

	var threshold sql.NullFloat64
	if alertThreshold != nil {
		threshold = sql.NullFloat64{Float64: *alertThreshold, Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO watched_pools (user_id, pool_id, alert_threshold) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, pool_id) DO UPDATE SET alert_threshold = excluded.alert_threshold`,
		u.ID, poolID, threshold)
	if err != nil {
		return fmt.Errorf("watch pool %s: %w", poolAddress, err)
	}
	return nil
}

// UnwatchPool removes a pool from the user's watch list. Returns
// storage.ErrNotFound when the pool was not watched.
func (s *Store) UnwatchPool(ctx context.Context, telegramID int64, poolAddress string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM watched_pools
		 WHERE user_id = (SELECT id FROM users WHERE telegram_id = ?)
		   AND pool_id = (SELECT id FROM pools WHERE pool_address = ?)`,
		telegramID, poolAddress)
	if err != nil {
		return fmt.Errorf("unwatch pool %s: %w", poolAddress, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unwatch pool %s: %w", poolAddress, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// WatchedPools lists the user's watched pools with current pool data,
// largest first.
func (s *Store) WatchedPools(ctx context.Context, telegramID int64) ([]model.WatchedPool, error) {
	query := fmt.Sprintf(`SELECT
		w.id, w.user_id, w.pool_id, w.alert_threshold, w.created_at, %s
	FROM watched_pools w
	JOIN users u ON u.id = w.user_id
	JOIN pools p ON p.id = w.pool_id
	WHERE u.telegram_id = ?
	ORDER BY p.tvl_usd DESC`, prefixedPoolColumns("p"))

	rows, err := s.db.QueryContext(ctx, query, telegramID)
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

func prefixedPoolColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.pool_address, %[1]s.protocol, %[1]s.chain,
		%[1]s.token_x_symbol, %[1]s.token_y_symbol,
		%[1]s.tvl_usd, %[1]s.volume_24h, %[1]s.fees_24h, %[1]s.fee_rate,
		%[1]s.apr_fees, %[1]s.apr_farming, %[1]s.total_apr, %[1]s.last_updated`, alias)
}
