// Package evm reads pool stats directly from an EVM chain for
// V3-style pools: volume from Swap logs over a lookback window, TVL
// from token balances, fees derived from the pool fee rate.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolwatch/internal/feetier"
	"poolwatch/internal/model"
)

const daySeconds = 86400.0

// Options configure the on-chain source.
type Options struct {
	RPCURL string
	// Pools are the pool contract addresses to track.
	Pools []string
	// Prices maps token symbols to USD. Tokens without a price value
	// as zero.
	Prices map[string]float64
	// Protocol and ChainName label the emitted pools. Defaults:
	// uniswap-v3 on ethereum.
	Protocol  string
	ChainName string
	// Window is the swap lookback, default 24h. BlockTime is the
	// chain's block interval used to size the lookback, default 12s.
	Window    time.Duration
	BlockTime time.Duration
	// BatchSize caps each FilterLogs range, default 5000 blocks.
	BatchSize uint64
}

// Source fetches pool stats from chain state and logs.
type Source struct {
	opts   Options
	client *client
	cache  *metaCache
	prices map[string]float64
	logger *zap.Logger

	mu       sync.Mutex
	unpriced map[string]struct{}
}

// New dials the RPC endpoint and validates the configured pools.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Pools) == 0 {
		return nil, fmt.Errorf("at least one pool address is required")
	}
	for _, p := range opts.Pools {
		if !common.IsHexAddress(p) {
			return nil, fmt.Errorf("invalid pool address %q", p)
		}
	}
	if opts.Protocol == "" {
		opts.Protocol = "uniswap-v3"
	}
	if opts.ChainName == "" {
		opts.ChainName = "ethereum"
	}
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.BlockTime <= 0 {
		opts.BlockTime = 12 * time.Second
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 5000
	}

	cl, err := dial(ctx, opts.RPCURL)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(opts.Prices))
	for sym, usd := range opts.Prices {
		prices[strings.ToUpper(strings.TrimSpace(sym))] = usd
	}

	return &Source{
		opts:     opts,
		client:   cl,
		cache:    newMetaCache(),
		prices:   prices,
		logger:   logger,
		unpriced: make(map[string]struct{}),
	}, nil
}

func (s *Source) Close() { s.client.Close() }

func (s *Source) Name() string  { return s.opts.Protocol }
func (s *Source) Chain() string { return s.opts.ChainName }

// Pools scans the lookback window for swaps and values each configured
// pool.
func (s *Source) Pools(ctx context.Context) ([]model.PoolStat, error) {
	latest, err := s.client.latestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest block: %w", err)
	}

	lookback := uint64(s.opts.Window / s.opts.BlockTime)
	from := uint64(1)
	if latest > lookback {
		from = latest - lookback
	}

	windowSecs := s.opts.Window.Seconds()
	if fromTime, err := s.client.blockTime(ctx, from); err == nil {
		if latestTime, err := s.client.blockTime(ctx, latest); err == nil && latestTime > fromTime {
			windowSecs = float64(latestTime - fromTime)
		}
	}

	parsed, err := poolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	swapTopic := parsed.Events["Swap"].ID

	addrs := make([]common.Address, len(s.opts.Pools))
	for i, p := range s.opts.Pools {
		addrs[i] = common.HexToAddress(p)
	}

	ranges, err := splitRange(from, latest, s.opts.BatchSize)
	if err != nil {
		return nil, err
	}

	volumes := make(map[common.Address]*swapVolume)
	for _, r := range ranges {
		logs, err := s.client.filterLogs(ctx, r.from, r.to, addrs, swapTopic)
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", r.from, r.to, err)
		}
		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			v := volumes[lg.Address]
			if v == nil {
				v = newSwapVolume()
				volumes[lg.Address] = v
			}
			if err := v.addSwap(lg); err != nil {
				s.logger.Warn("skipping bad swap log",
					zap.String("pool", lg.Address.Hex()),
					zap.Uint64("block", lg.BlockNumber),
					zap.Error(err))
			}
		}
	}

	blockPtr := new(big.Int).SetUint64(latest)
	pools := make([]model.PoolStat, 0, len(addrs))
	for _, addr := range addrs {
		stat, err := s.poolStat(ctx, addr, volumes[addr], windowSecs, blockPtr)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.logger.Warn("skipping pool", zap.String("pool", addr.Hex()), zap.Error(err))
			continue
		}
		pools = append(pools, stat)
	}

	s.logger.Info("fetched on-chain pools",
		zap.Int("pools", len(pools)),
		zap.Uint64("from_block", from),
		zap.Uint64("to_block", latest),
	)
	return pools, nil
}

func (s *Source) poolStat(ctx context.Context, pool common.Address, vol *swapVolume, windowSecs float64, block *big.Int) (model.PoolStat, error) {
	meta, ok := s.cache.pool(pool)
	if !ok {
		var err error
		meta, err = fetchPoolMeta(ctx, s.client, pool)
		if err != nil {
			return model.PoolStat{}, err
		}
		s.cache.setPool(pool, meta)
	}

	tok0, err := s.tokenMeta(ctx, meta.token0)
	if err != nil {
		return model.PoolStat{}, err
	}
	tok1, err := s.tokenMeta(ctx, meta.token1)
	if err != nil {
		return model.PoolStat{}, err
	}

	bal0, err := s.balanceWithFallback(ctx, meta.token0, pool, block)
	if err != nil {
		return model.PoolStat{}, fmt.Errorf("balance %s: %w", tok0.symbol, err)
	}
	bal1, err := s.balanceWithFallback(ctx, meta.token1, pool, block)
	if err != nil {
		return model.PoolStat{}, fmt.Errorf("balance %s: %w", tok1.symbol, err)
	}

	sym0 := displaySymbol(tok0, meta.token0)
	sym1 := displaySymbol(tok1, meta.token1)
	price0 := s.priceFor(sym0)
	price1 := s.priceFor(sym1)

	tvlUSD := tokenAmount(bal0, tok0.decimals)*price0 + tokenAmount(bal1, tok1.decimals)*price1

	var vol0, vol1 float64
	if vol != nil {
		vol0 = tokenAmount(vol.amount0, tok0.decimals)
		vol1 = tokenAmount(vol.amount1, tok1.decimals)
	}
	volumeUSD := sideUSD(vol0*price0, price0 > 0, vol1*price1, price1 > 0)

	scale := daySeconds / windowSecs
	volume24h := volumeUSD * scale
	fees24h := feetier.FeesFromVolume(volume24h, int(meta.fee))

	var feeAPR float64
	if tvlUSD > 0 {
		feeAPR = fees24h * 365 / tvlUSD * 100
	}

	return model.PoolStat{
		ID:         strings.ToLower(pool.Hex()),
		Protocol:   s.opts.Protocol,
		Chain:      s.opts.ChainName,
		TokenXAddr: meta.token0.Hex(),
		TokenYAddr: meta.token1.Hex(),
		TokenX:     sym0,
		TokenY:     sym1,
		TVLUSD:     tvlUSD,
		Volume24h:  volume24h,
		Fees24h:    fees24h,
		FeeRate:    int(meta.fee),
		FeeAPR:     feeAPR,
	}, nil
}

func (s *Source) tokenMeta(ctx context.Context, token common.Address) (tokenMeta, error) {
	if m, ok := s.cache.token(token); ok {
		return m, nil
	}
	m, err := fetchTokenMeta(ctx, s.client, token, s.logger)
	if err != nil {
		return tokenMeta{}, fmt.Errorf("token %s: %w", token.Hex(), err)
	}
	s.cache.setToken(token, m)
	return m, nil
}

func (s *Source) balanceWithFallback(ctx context.Context, token, owner common.Address, block *big.Int) (*big.Int, error) {
	bal, err := s.client.balanceOf(ctx, token, owner, block)
	if err == nil {
		return bal, nil
	}
	return s.client.balanceOf(ctx, token, owner, nil)
}

func (s *Source) priceFor(symbol string) float64 {
	price, ok := s.prices[strings.ToUpper(symbol)]
	if ok {
		return price
	}

	s.mu.Lock()
	_, seen := s.unpriced[symbol]
	if !seen {
		s.unpriced[symbol] = struct{}{}
	}
	s.mu.Unlock()

	if !seen {
		s.logger.Warn("no configured price for token, valuing as zero", zap.String("symbol", symbol))
	}
	return 0
}

// sideUSD values traded volume from the priced sides: the average when
// both sides have a price, one side when only it does.
func sideUSD(usd0 float64, ok0 bool, usd1 float64, ok1 bool) float64 {
	switch {
	case ok0 && ok1:
		return (usd0 + usd1) / 2
	case ok0:
		return usd0
	case ok1:
		return usd1
	default:
		return 0
	}
}

func displaySymbol(tok tokenMeta, addr common.Address) string {
	if tok.symbol != "" {
		return tok.symbol
	}
	return addr.Hex()[:10]
}
