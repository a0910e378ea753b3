package storage

import (
	"context"
	"errors"

	"poolwatch/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// PoolQuery selects and orders pools for listing.
type PoolQuery struct {
	MinTVL float64
	MinAPR float64
	SortBy string
	Limit  int
}

// Store persists pools, users and watch lists.
type Store interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	TopPools(ctx context.Context, q PoolQuery) ([]model.Pool, error)
	PoolByAddress(ctx context.Context, address string) (model.Pool, error)
	PoolsByFeeRate(ctx context.Context, feeRate int) ([]model.Pool, error)
	AllPools(ctx context.Context) ([]model.Pool, error)

	GetOrCreateUser(ctx context.Context, telegramID int64, username string) (model.User, error)

	CountPools(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)

	WatchPool(ctx context.Context, telegramID int64, poolAddress string, alertThreshold *float64) error
	UnwatchPool(ctx context.Context, telegramID int64, poolAddress string) error
	WatchedPools(ctx context.Context, telegramID int64) ([]model.WatchedPool, error)

	Close() error
}
