package token

import (
	"testing"

	"go.uber.org/zap"
)

func TestResolveRegistry(t *testing.T) {
	r := NewResolver(zap.NewNop())

	cases := []struct {
		address string
		want    string
	}{
		{"0x1::aptos_coin::AptosCoin", "APT"},
		{"0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::USDC", "USDC"},
		{"0x000000000000000000000000000000000000000000000000000000000000000a", "APT"},
		{"0xbae207659db88bea0cbead6da0ed00aac12edcdda169e591cd41c94180b46f3b", "USDC"},
		{"0x377adc4848552eb2ea17259be928001923efe12271fef1667e2b784f04a7cf3a", "USDt"},
		{"0x81214a80d82035a190fcb76b6ff3c0145161c3a9f33d137f2bbaee4cfec8a387", "xBTC"},
	}

	for _, tc := range cases {
		if got := r.Resolve(tc.address); got != tc.want {
			t.Fatalf("Resolve(%s) = %q, want %q", tc.address, got, tc.want)
		}
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	r := NewResolver(zap.NewNop())
	if got := r.Resolve("0x1::APTOS_COIN::AptosCoin"); got != "APT" {
		t.Fatalf("Resolve upper-case = %q, want APT", got)
	}
}

func TestResolvePatterns(t *testing.T) {
	r := NewResolver(zap.NewNop())

	cases := []struct {
		address string
		want    string
	}{
		{"0xdeadbeef::asset::DAI", "DAI"},
		{"0xdeadbeef::manager::UsdcCoin", "USDC"},
		{"0xdeadbeef::amapt_token::AmnisApt", "amAPT"},
		{"0xdeadbeef::staking::StakedAptos", "stAPT"},
	}

	for _, tc := range cases {
		if got := r.Resolve(tc.address); got != tc.want {
			t.Fatalf("Resolve(%s) = %q, want %q", tc.address, got, tc.want)
		}
	}
}

func TestResolveEmpty(t *testing.T) {
	r := NewResolver(nil)
	if got := r.Resolve(""); got != "???" {
		t.Fatalf("Resolve empty = %q, want ???", got)
	}
}

func TestParseSymbol(t *testing.T) {
	cases := []struct {
		address string
		want    string
	}{
		{"0x1::aptos_coin::AptosCoin", "APT"},
		{"0xabc::celer::WbtcCoin", "WBTC"},
		{"0xabc::module::SomeUSDCWrapper", "USDC"},
		{"0xabc::module::LongTailAssetName", "LongTail"},
		{"0xabc::module::Short", "Short"},
		{"0xbae207659db88bea0cbead6da0ed00aac12edcdda169e591cd41c94180b46f3b", "0xbae207"},
		{"plain", "plain"},
	}

	for _, tc := range cases {
		if got := ParseSymbol(tc.address); got != tc.want {
			t.Fatalf("ParseSymbol(%s) = %q, want %q", tc.address, got, tc.want)
		}
	}
}
