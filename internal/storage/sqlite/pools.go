package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"poolwatch/internal/model"
	"poolwatch/internal/storage"
)

const poolColumns = `id, pool_address, protocol, chain, token_x_symbol, token_y_symbol,
	tvl_usd, volume_24h, fees_24h, fee_rate, apr_fees, apr_farming, total_apr, last_updated`

const upsertPool = `INSERT INTO pools (
	pool_address, protocol, chain, token_x_symbol, token_y_symbol,
	tvl_usd, volume_24h, fees_24h, fee_rate, apr_fees, apr_farming, total_apr, last_updated
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (pool_address) DO UPDATE SET
	protocol = excluded.protocol,
	chain = excluded.chain,
	token_x_symbol = excluded.token_x_symbol,
	token_y_symbol = excluded.token_y_symbol,
	tvl_usd = excluded.tvl_usd,
	volume_24h = excluded.volume_24h,
	fees_24h = excluded.fees_24h,
	fee_rate = excluded.fee_rate,
	apr_fees = excluded.apr_fees,
	apr_farming = excluded.apr_farming,
	total_apr = excluded.total_apr,
	last_updated = excluded.last_updated`

// UpsertPools writes the batch in one transaction, inserting new pools
// and refreshing existing ones by address.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPool)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pools {
		if p.Address == "" {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			p.Address, p.Protocol, p.Chain, p.TokenX, p.TokenY,
			p.TVLUSD, p.Volume24h, p.Fees24h, p.FeeRate,
			p.FeeAPR, p.FarmAPR, p.TotalAPR, p.LastUpdated.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upsert pool %s: %w", p.Address, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
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
		WHERE tvl_usd >= ? AND total_apr >= ?
		ORDER BY %s DESC LIMIT ?`, poolColumns, col)

	rows, err := s.db.QueryContext(ctx, query, q.MinTVL, q.MinAPR, limit)
	if err != nil {
		return nil, fmt.Errorf("query top pools: %w", err)
	}
	defer rows.Close()
	return scanPools(rows)
}

// PoolByAddress fetches a single pool, or storage.ErrNotFound.
func (s *Store) PoolByAddress(ctx context.Context, address string) (model.Pool, error) {
	query := fmt.Sprintf(`SELECT %s FROM pools WHERE pool_address = ?`, poolColumns)
	row := s.db.QueryRowContext(ctx, query, address)

	p, err := scanPool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Pool{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Pool{}, fmt.Errorf("query pool %s: %w", address, err)
	}
	return p, nil
}

// PoolsByFeeRate lists pools in one fee tier, largest first.
func (s *Store) PoolsByFeeRate(ctx context.Context, feeRate int) ([]model.Pool, error) {
	query := fmt.Sprintf(`SELECT %s FROM pools WHERE fee_rate = ? ORDER BY tvl_usd DESC`, poolColumns)
	rows, err := s.db.QueryContext(ctx, query, feeRate)
	if err != nil {
		return nil, fmt.Errorf("query pools by fee rate: %w", err)
	}
	defer rows.Close()
	return scanPools(rows)
}

// AllPools lists every stored pool, largest first.
func (s *Store) AllPools(ctx context.Context) ([]model.Pool, error) {
	query := fmt.Sprintf(`SELECT %s FROM pools ORDER BY tvl_usd DESC`, poolColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()
	return scanPools(rows)
}

// CountPools returns the number of tracked pools.
func (s *Store) CountPools(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pools`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pools: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPool(r rowScanner) (model.Pool, error) {
	var p model.Pool
	err := r.Scan(
		&p.ID, &p.Address, &p.Protocol, &p.Chain, &p.TokenX, &p.TokenY,
		&p.TVLUSD, &p.Volume24h, &p.Fees24h, &p.FeeRate,
		&p.FeeAPR, &p.FarmAPR, &p.TotalAPR, &p.LastUpdated,
	)
	return p, err
}

func scanPools(rows *sql.Rows) ([]model.Pool, error) {
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
