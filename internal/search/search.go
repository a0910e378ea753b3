// Package search finds liquidity pools for a token or pair across
// every registered source, grouping matches by chain and protocol.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolwatch/internal/model"
	"poolwatch/internal/source"
)

// ProtocolResult holds the matches contributed by a single protocol.
type ProtocolResult struct {
	ID        string
	Name      string
	Emoji     string
	PoolCount int
	TotalTVL  float64
	BestAPR   float64
	Pools     []model.PoolStat
}

// ChainResult aggregates the protocol results of one chain.
type ChainResult struct {
	ID        string
	Name      string
	Emoji     string
	PoolCount int
	TotalTVL  float64
	BestAPR   float64
	Protocols []ProtocolResult
}

// Result is the outcome of one search. Chains are ordered by total
// TVL descending, as are the protocols and pools inside them.
type Result struct {
	Query      string
	TokenA     string
	TokenB     string
	TotalPools int
	Chains     []ChainResult
}

// IsPair reports whether the search targeted a specific pair rather
// than a single token.
func (r Result) IsPair() bool { return r.TokenB != "" }

var chainDisplay = map[string]struct{ Name, Emoji string }{
	"aptos":    {"Aptos", "🔷"},
	"sui":      {"Sui", "🔵"},
	"bsc":      {"BSC", "🔶"},
	"ethereum": {"Ethereum", "🔷"},
	"solana":   {"Solana", "🟢"},
}

var protocolDisplay = map[string]struct{ Name, Emoji string }{
	"hyperion":   {"Hyperion", "🌊"},
	"bluefin":    {"Bluefin Exchange", "🐋"},
	"defillama":  {"DefiLlama", "🦙"},
	"uniswap-v3": {"Uniswap V3", "🦄"},
}

// Engine fans a query out to all registered sources concurrently.
type Engine struct {
	sources []source.Source
	logger  *zap.Logger
}

func NewEngine(sources []source.Source, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{sources: sources, logger: logger}
}

// ParseQuery normalizes a raw query into one or two token symbols.
// "apt/usdt", "APT-USDT" and " apt " are all accepted; a pair query
// must name exactly two tokens.
func ParseQuery(raw string) (tokenA, tokenB string, err error) {
	q := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(raw, "/", "-")))
	if q == "" {
		return "", "", errors.New("empty query")
	}
	if !strings.Contains(q, "-") {
		return q, "", nil
	}
	parts := strings.Split(q, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid pair format: %q", raw)
	}
	return parts[0], parts[1], nil
}

// Search queries every source for pools containing the token, or the
// exact pair when the query names two tokens. Sources that fail are
// logged and skipped so one dead API does not hide the rest.
func (e *Engine) Search(ctx context.Context, query string) (Result, error) {
	tokenA, tokenB, err := ParseQuery(query)
	if err != nil {
		return Result{}, err
	}

	normalized := tokenA
	if tokenB != "" {
		normalized = tokenA + "-" + tokenB
	}
	e.logger.Info("searching pools",
		zap.String("token", tokenA),
		zap.String("pair", tokenB),
		zap.Int("sources", len(e.sources)))

	type hit struct {
		chain  string
		result ProtocolResult
	}

	var (
		mu   sync.Mutex
		hits []hit
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, src := range e.sources {
		src := src
		g.Go(func() error {
			pools, err := src.Pools(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				e.logger.Warn("search source failed",
					zap.String("source", src.Name()),
					zap.String("chain", src.Chain()),
					zap.Error(err))
				return nil
			}
			matched := matchPools(pools, tokenA, tokenB)
			if len(matched) == 0 {
				return nil
			}
			name, emoji := ProtocolDisplay(src.Name())
			pr := ProtocolResult{
				ID:        src.Name(),
				Name:      name,
				Emoji:     emoji,
				PoolCount: len(matched),
				TotalTVL:  sumTVL(matched),
				BestAPR:   bestAPR(matched),
				Pools:     matched,
			}
			mu.Lock()
			hits = append(hits, hit{chain: src.Chain(), result: pr})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	byChain := make(map[string][]ProtocolResult)
	for _, h := range hits {
		byChain[h.chain] = append(byChain[h.chain], h.result)
	}

	chains := make([]ChainResult, 0, len(byChain))
	for id, protocols := range byChain {
		sort.Slice(protocols, func(i, j int) bool {
			return protocols[i].TotalTVL > protocols[j].TotalTVL
		})
		name, emoji := ChainDisplay(id)
		cr := ChainResult{ID: id, Name: name, Emoji: emoji, Protocols: protocols}
		for _, p := range protocols {
			cr.PoolCount += p.PoolCount
			cr.TotalTVL += p.TotalTVL
			if p.BestAPR > cr.BestAPR {
				cr.BestAPR = p.BestAPR
			}
		}
		chains = append(chains, cr)
	}
	sort.Slice(chains, func(i, j int) bool {
		return chains[i].TotalTVL > chains[j].TotalTVL
	})

	result := Result{Query: normalized, TokenA: tokenA, TokenB: tokenB, Chains: chains}
	for _, c := range chains {
		result.TotalPools += c.PoolCount
	}
	return result, nil
}

// matchPools keeps pools containing the token on either side, or both
// tokens in either order for a pair query, ordered by TVL descending.
func matchPools(pools []model.PoolStat, tokenA, tokenB string) []model.PoolStat {
	var out []model.PoolStat
	for _, p := range pools {
		x := strings.ToUpper(p.TokenX)
		y := strings.ToUpper(p.TokenY)
		if tokenB != "" {
			if (x == tokenA && y == tokenB) || (x == tokenB && y == tokenA) {
				out = append(out, p)
			}
			continue
		}
		if x == tokenA || y == tokenA {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TVLUSD > out[j].TVLUSD })
	return out
}

func sumTVL(pools []model.PoolStat) float64 {
	var total float64
	for _, p := range pools {
		total += p.TVLUSD
	}
	return total
}

func bestAPR(pools []model.PoolStat) float64 {
	var best float64
	for _, p := range pools {
		if apr := p.TotalAPR(); apr > best {
			best = apr
		}
	}
	return best
}

// ChainDisplay returns the display name and emoji for a chain id.
func ChainDisplay(id string) (name, emoji string) {
	if d, ok := chainDisplay[id]; ok {
		return d.Name, d.Emoji
	}
	if id == "" {
		return "Unknown", "🔷"
	}
	return strings.ToUpper(id[:1]) + id[1:], "🔷"
}

// ProtocolDisplay returns the display name and emoji for a protocol id.
func ProtocolDisplay(id string) (name, emoji string) {
	if d, ok := protocolDisplay[id]; ok {
		return d.Name, d.Emoji
	}
	if id == "" {
		return "Unknown", "💧"
	}
	return strings.ToUpper(id[:1]) + id[1:], "💧"
}
