// Package token resolves token addresses to display symbols.
//
// Addresses come in two shapes: full Move type tags such as
// 0x1::aptos_coin::AptosCoin, and bare fungible-asset addresses. Resolution
// tries an exact registry lookup, then pattern matching, then structural
// parsing of the type tag.
package token

import (
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// registry maps known token addresses to symbols. Keys are lower-case.
var registry = map[string]string{
	// Aptos native
	"0x1::aptos_coin::aptoscoin": "APT",

	// LayerZero stablecoins
	"0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::usdc": "USDC",
	"0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::usdt": "USDT",
	"0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::weth": "WETH",
	"0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::wbtc": "WBTC",

	// Wrapped and staked APT
	"0x111ae3e5bc816a5e63c2da97d0aa3886519e0cd5e4b046659fa35796bd11542a::amapt_token::amnisapt":         "amAPT",
	"0xa259be733b6a759909f92815927fa213904df6540519568692caf0b068fe8e62::amapt_token::amnisapt":         "amAPT",
	"0x84d7aeef42d38a5ffc3ccef853e1b82e4958659d16a7de736a29c55fbbeb0114::staked_aptos_coin::stakedaptoscoin": "stAPT",
	"0xd11107bdf0d6d7040c6c0bfbdecb6545191fdf13e8d8d259952f53e1713f61b5::staked_coin::stakedaptos":      "stAPT",

	// Bridged stablecoins by full type tag
	"0x5e156f1207d0ebfa19a9eeff00d62a282278fb8719f4fab3a586a0a2c0fffbea::coin::t":                     "USDC",
	"0x357b0b74bc833e95a115ad22604854d6b0fca151cecd94111770e5d6ffc9dc2b::coin::t":                     "USDT",
	"0xae478ff7d83ed072dbc5e264250e67ef58f57c99d89b447efd8a0a2e8b2be76e::coin::t":                     "zUSDC",
	"0x8d87a65ba30e09357fa2edea2c80dbac296e5dec2b18287113500b902942929d::celer_coin_manager::usdccoin": "ceUSDC",

	// Thala and friends
	"0x1000000fa32d122c18a6a31c009ce5e71674f22d06a581bb0a15575e6addadcc::usda::usda":    "USDA",
	"0x6f986d146e4a90b828d8c12c14b6f4e003fdff11a8eecceceb63744363eaac01::mod_coin::mod": "MOD",
	"0x7fd500c11216f0fe3095d0c4b8aa4d64a4e2e04f83758462f2b127255643615::thl_coin::thl":  "THL",

	// Fungible-asset addresses
	"0x000000000000000000000000000000000000000000000000000000000000000a": "APT",
	"0x0009da434d9b873b5159e8eeed70202ad22dc075867a7793234fbc981b63e119": "APT",
	"0xbae207659db88bea0cbead6da0ed00aac12edcdda169e591cd41c94180b46f3b": "USDC",
	"0x357b0b74bc833e95a115ad22604854d6b0fca151cecd94111770e5d6ffc9dc2b": "USDT",
	"0x377adc4848552eb2ea17259be928001923efe12271fef1667e2b784f04a7cf3a": "USDt",
	"0x81214a80d82035a190fcb76b6ff3c0145161c3a9f33d137f2bbaee4cfec8a387": "xBTC",
	"0x68844a0d7f2587e726ad0579f3d640865bb4162c08a4589eeda3f9689ec52a3d": "WBTC",
	"0xb30a694a344edee467d9f82330bbe7c3b89f440a1ecd2da1f3bca266560fce69": "sUSDe",
	"0x821c94e69bc7ca058c913b7b5e6b0a5c9fd1523d58723a966fb8c1f5ea888105": "kAPT",
	"0x05fabd1b12e39967a3c24e91b7b8f67719a6dacee74f3c8b9fb7d93e855437d2": "USD1",
}

type pattern struct {
	re     *regexp.Regexp
	symbol string
}

var patterns = []pattern{
	{regexp.MustCompile(`(?i)::aptos_coin::AptosCoin$`), "APT"},
	{regexp.MustCompile(`(?i)::asset::USDC$`), "USDC"},
	{regexp.MustCompile(`(?i)::asset::USDT$`), "USDT"},
	{regexp.MustCompile(`(?i)::asset::WETH$`), "WETH"},
	{regexp.MustCompile(`(?i)::asset::WBTC$`), "WBTC"},
	{regexp.MustCompile(`(?i)::asset::DAI$`), "DAI"},
	{regexp.MustCompile(`(?i)UsdcCoin$`), "USDC"},
	{regexp.MustCompile(`(?i)UsdtCoin$`), "USDT"},
	{regexp.MustCompile(`(?i)WethCoin$`), "WETH"},
	{regexp.MustCompile(`(?i)WbtcCoin$`), "WBTC"},
	{regexp.MustCompile(`(?i)AmnisApt$`), "amAPT"},
	{regexp.MustCompile(`(?i)StakedAptosCoin$`), "stAPT"},
	{regexp.MustCompile(`(?i)StakedAptos$`), "stAPT"},
}

// Resolver resolves token addresses to symbols, logging each unknown
// address once.
type Resolver struct {
	logger *zap.Logger

	mu     sync.Mutex
	logged map[string]struct{}
}

func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger: logger,
		logged: make(map[string]struct{}),
	}
}

// Resolve returns the display symbol for a token address.
func (r *Resolver) Resolve(address string) string {
	if address == "" {
		return "???"
	}

	normalized := strings.ToLower(strings.TrimSpace(address))
	if symbol, ok := registry[normalized]; ok {
		return symbol
	}

	for _, p := range patterns {
		if p.re.MatchString(address) {
			return p.symbol
		}
	}

	symbol := ParseSymbol(address)
	r.logUnknown(normalized, address, symbol)
	return symbol
}

func (r *Resolver) logUnknown(normalized, address, symbol string) {
	r.mu.Lock()
	_, seen := r.logged[normalized]
	if !seen {
		r.logged[normalized] = struct{}{}
	}
	r.mu.Unlock()

	if !seen {
		display := address
		if len(display) > 50 {
			display = display[:50] + "..."
		}
		r.logger.Info("unknown token",
			zap.String("address", display),
			zap.String("parsed_symbol", symbol),
		)
	}
}
