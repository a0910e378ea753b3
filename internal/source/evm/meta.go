package evm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// poolMeta holds immutable pool views fetched once per pool.
type poolMeta struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// tokenMeta holds ERC20 metadata fetched once per token.
type tokenMeta struct {
	symbol   string
	decimals uint8
}

type metaCache struct {
	mu     sync.RWMutex
	pools  map[common.Address]poolMeta
	tokens map[common.Address]tokenMeta
}

func newMetaCache() *metaCache {
	return &metaCache{
		pools:  make(map[common.Address]poolMeta),
		tokens: make(map[common.Address]tokenMeta),
	}
}

func (c *metaCache) pool(addr common.Address) (poolMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.pools[addr]
	return m, ok
}

func (c *metaCache) setPool(addr common.Address, m poolMeta) {
	c.mu.Lock()
	c.pools[addr] = m
	c.mu.Unlock()
}

func (c *metaCache) token(addr common.Address) (tokenMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.tokens[addr]
	return m, ok
}

func (c *metaCache) setToken(addr common.Address, m tokenMeta) {
	c.mu.Lock()
	c.tokens[addr] = m
	c.mu.Unlock()
}

// fetchPoolMeta loads token0/token1/fee for a pool via eth_call.
func fetchPoolMeta(ctx context.Context, cl *client, pool common.Address) (poolMeta, error) {
	parsed, err := poolABI()
	if err != nil {
		return poolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := cl.callMethod(ctx, pool, parsed, "token0", nil)
	if err != nil {
		return poolMeta{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return poolMeta{}, fmt.Errorf("token0: %w", err)
	}

	values, err = cl.callMethod(ctx, pool, parsed, "token1", nil)
	if err != nil {
		return poolMeta{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return poolMeta{}, fmt.Errorf("token1: %w", err)
	}

	values, err = cl.callMethod(ctx, pool, parsed, "fee", nil)
	if err != nil {
		return poolMeta{}, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return poolMeta{}, fmt.Errorf("fee: %w", err)
	}

	return poolMeta{token0: token0, token1: token1, fee: uint32(feeInt.Uint64())}, nil
}

// fetchTokenMeta loads ERC20 symbol and decimals. Decimals are
// required; a symbol that fails both the string and bytes32 ABI is
// left empty.
func fetchTokenMeta(ctx context.Context, cl *client, token common.Address, logger *zap.Logger) (tokenMeta, error) {
	stringABI, err := erc20StringABI()
	if err != nil {
		return tokenMeta{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	b32ABI, err := erc20Bytes32ABI()
	if err != nil {
		return tokenMeta{}, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := cl.callMethod(ctx, token, stringABI, "decimals", nil)
	if err != nil {
		return tokenMeta{}, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return tokenMeta{}, err
	}
	meta := tokenMeta{decimals: decimals}

	if values, err := cl.callMethod(ctx, token, stringABI, "symbol", nil); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.symbol = symbol
		}
	} else if values, err := cl.callMethod(ctx, token, b32ABI, "symbol", nil); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}
