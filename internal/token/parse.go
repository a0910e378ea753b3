package token

import "strings"

// ParseSymbol extracts a symbol from a Move type tag, falling back to a
// shortened address when the tag does not look like a known token.
//
//	0x1::aptos_coin::AptosCoin -> APT
//	0x8d87...::celer_coin_manager::UsdcCoin -> USDC
//	0xbae207659db8... -> 0xbae207
func ParseSymbol(address string) string {
	address = strings.TrimSpace(address)

	parts := strings.Split(address, "::")
	if len(parts) >= 3 {
		last := parts[len(parts)-1]
		upper := strings.ToUpper(last)
		switch {
		case last == "AptosCoin":
			return "APT"
		case strings.HasSuffix(last, "Coin"):
			return strings.ToUpper(strings.TrimSuffix(last, "Coin"))
		case strings.Contains(upper, "USDC"):
			return "USDC"
		case strings.Contains(upper, "USDT"):
			return "USDT"
		case strings.Contains(upper, "WETH"):
			return "WETH"
		case strings.Contains(upper, "WBTC"):
			return "WBTC"
		case last == "AmnisApt":
			return "amAPT"
		case last == "StakedAptosCoin", last == "StakedAptos":
			return "stAPT"
		default:
			if len(last) > 8 {
				return last[:8]
			}
			return last
		}
	}

	if strings.HasPrefix(address, "0x") && len(address) > 8 {
		return address[:8]
	}
	if len(address) > 10 {
		return address[:10]
	}
	return address
}
