package bot

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"poolwatch/internal/feetier"
	"poolwatch/internal/model"
	"poolwatch/internal/search"
)

// english renders money amounts with thousands separators, $1,234,567.89.
var english = message.NewPrinter(language.English)

func money(v float64) string  { return english.Sprintf("$%.2f", v) }
func money0(v float64) string { return english.Sprintf("$%.0f", v) }

func shortAddr(addr string) string {
	if len(addr) > 20 {
		return addr[:8] + "..." + addr[len(addr)-6:]
	}
	return addr
}

func formatMarketOverview(stats model.MarketStats) string {
	var b strings.Builder
	b.WriteString("📊 <b>Market Overview</b>\n\n")
	b.WriteString("💰 <b>Total Value Locked</b>\n")
	b.WriteString(money(stats.TVLUSD) + "\n\n")
	if stats.CumulativeVolume > 0 {
		b.WriteString("📈 <b>Cumulative Volume</b>\n")
		b.WriteString(money(stats.CumulativeVolume) + "\n\n")
	}
	b.WriteString("🔄 <b>24H Trading Volume</b>\n")
	b.WriteString(money(stats.Volume24h) + "\n\n")
	b.WriteString("⚡ <b>Capital Efficiency</b>\n")
	fmt.Fprintf(&b, "%.1f\n", stats.CapitalEfficiency)
	return b.String()
}

func formatProtocolSummary(name, emoji string, stats model.MarketStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n", emoji, name)
	fmt.Fprintf(&b, "   💰 TVL: %s\n", money(stats.TVLUSD))
	fmt.Fprintf(&b, "   📈 Volume 24H: %s\n", money(stats.Volume24h))
	fmt.Fprintf(&b, "   💵 Fees 24H: %s\n\n", money(stats.Fees24h))
	return b.String()
}

func formatPoolsTable(pools []model.PoolStat, title string) string {
	if len(pools) == 0 {
		return "❌ No active pools found"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", title)

	rank := 0
	for _, p := range pools {
		if p.TVLUSD <= 0 {
			continue
		}
		if rank == 10 {
			break
		}
		rank++
		fmt.Fprintf(&b, "%d. <b>%s</b>\n", rank, p.Pair())
		fmt.Fprintf(&b, "🎯 Fee Tier: %s\n", feetier.Format(p.FeeRate))
		fmt.Fprintf(&b, "💰 TVL: %s\n", money0(p.TVLUSD))
		fmt.Fprintf(&b, "📊 Volume 24H: %s\n", money0(p.Volume24h))
		fmt.Fprintf(&b, "💵 Fees 24H: %s\n", money(p.Fees24h))
		fmt.Fprintf(&b, "📈 APR: %.2f%%\n", p.TotalAPR())
		fmt.Fprintf(&b, "   ├─ Fee APR: %.2f%%\n", p.FeeAPR)
		fmt.Fprintf(&b, "   └─ Farm APR: %.2f%%\n\n", p.FarmAPR)
	}
	return strings.TrimSpace(b.String())
}

func formatPoolDetail(p model.PoolStat) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏊‍♂️ <b>%s - %s</b>\n\n", p.TokenX, p.TokenY)
	fmt.Fprintf(&b, "🎯 Fee Tier: %s\n", feetier.Format(p.FeeRate))
	fmt.Fprintf(&b, "   └─ %s\n\n", feetier.Describe(p.FeeRate))
	b.WriteString("💰 <b>Total Value Locked</b>\n")
	b.WriteString(money(p.TVLUSD) + "\n\n")
	b.WriteString("📊 <b>Volume (24H)</b>\n")
	b.WriteString(money(p.Volume24h) + "\n\n")
	b.WriteString("💵 <b>Fees (24H)</b>\n")
	b.WriteString(money(p.Fees24h) + "\n\n")
	fmt.Fprintf(&b, "📈 <b>Total APR: %.2f%%</b>\n\n", p.TotalAPR())
	b.WriteString("📈 APR Breakdown:\n")
	fmt.Fprintf(&b, "   ├─ Fee APR: %.2f%%\n", p.FeeAPR)
	fmt.Fprintf(&b, "   └─ Farm APR: %.2f%%\n\n", p.FarmAPR)
	b.WriteString(english.Sprintf("🔢 Active LP: %d\n", p.ActiveLP))
	b.WriteString(english.Sprintf("📍 Current Tick: %d\n", p.CurrentTick))
	return b.String()
}

func formatStoredPools(pools []model.Pool, header string) string {
	if len(pools) == 0 {
		return "❌ No pools found"
	}

	var b strings.Builder
	b.WriteString(header + "\n\n")

	for i, p := range pools {
		fmt.Fprintf(&b, "%d. <b>%s</b> (%s)\n", i+1, p.Pair(), p.Protocol)
		fmt.Fprintf(&b, "   🏊 Pool: <code>%s</code>\n", shortAddr(p.Address))
		fmt.Fprintf(&b, "   💰 TVL: %s\n", money0(p.TVLUSD))
		fmt.Fprintf(&b, "   📊 Volume (24H): %s\n", money0(p.Volume24h))
		fmt.Fprintf(&b, "   💵 Fees (24H): %s\n", money0(p.Fees24h))
		fmt.Fprintf(&b, "   📈 APR: <b>%.2f%%</b>\n", p.TotalAPR)
		fmt.Fprintf(&b, "      ├─ Fee APR: %.2f%%\n", p.FeeAPR)
		fmt.Fprintf(&b, "      └─ Farm APR: %.2f%%\n", p.FarmAPR)
		fmt.Fprintf(&b, "   🎯 Fee Tier: %s\n\n", feetier.Describe(p.FeeRate))
	}
	return strings.TrimSpace(b.String())
}

func formatStoredPool(p model.Pool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏊 <b>%s</b> (%s)\n", p.Pair(), p.Protocol)
	fmt.Fprintf(&b, "📍 Address: <code>%s</code>\n\n", p.Address)
	fmt.Fprintf(&b, "💰 TVL: %s\n", money0(p.TVLUSD))
	fmt.Fprintf(&b, "📊 Volume (24H): %s\n", money0(p.Volume24h))
	fmt.Fprintf(&b, "💵 Fees (24H): %s\n", money0(p.Fees24h))
	fmt.Fprintf(&b, "📈 APR: <b>%.2f%%</b>\n", p.TotalAPR)
	fmt.Fprintf(&b, "   ├─ Fee APR: %.2f%%\n", p.FeeAPR)
	fmt.Fprintf(&b, "   └─ Farm APR: %.2f%%\n\n", p.FarmAPR)
	fmt.Fprintf(&b, "🎯 Fee Tier: %s\n", feetier.Describe(p.FeeRate))
	return b.String()
}

func formatFeeTiers(pools []model.Pool) string {
	if len(pools) == 0 {
		return "❌ No pools found"
	}

	byTier := make(map[int][]model.Pool)
	for _, p := range pools {
		byTier[p.FeeRate] = append(byTier[p.FeeRate], p)
	}
	tiers := make([]int, 0, len(byTier))
	for tier := range byTier {
		tiers = append(tiers, tier)
	}
	sort.Ints(tiers)

	var b strings.Builder
	b.WriteString("📊 <b>Pools by Fee Tier</b>\n\n")

	for _, tier := range tiers {
		group := byTier[tier]
		sort.Slice(group, func(i, j int) bool { return group[i].TVLUSD > group[j].TVLUSD })

		fmt.Fprintf(&b, "🎯 <b>%s</b>\n", feetier.Describe(tier))
		fmt.Fprintf(&b, "   Pools: %d\n", len(group))
		for i, p := range group {
			if i == 5 {
				fmt.Fprintf(&b, "   ... and %d more pools\n", len(group)-5)
				break
			}
			fmt.Fprintf(&b, "   • <code>%s</code> <b>%s</b>: %s (APR: %.2f%%)\n",
				shortAddr(p.Address), p.Pair(), money0(p.TVLUSD), p.TotalAPR)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func formatWatchedPools(watched []model.WatchedPool) string {
	if len(watched) == 0 {
		return "⭐ You are not watching any pools yet.\n\nUse /watch &lt;address&gt; to follow one."
	}

	var b strings.Builder
	b.WriteString("⭐ <b>Your watched pools</b>\n\n")

	for i, w := range watched {
		p := w.Pool
		fmt.Fprintf(&b, "%d. <b>%s</b> (%s)\n", i+1, p.Pair(), p.Protocol)
		fmt.Fprintf(&b, "   🏊 Pool: <code>%s</code>\n", shortAddr(p.Address))
		fmt.Fprintf(&b, "   💰 TVL: %s\n", money0(p.TVLUSD))
		fmt.Fprintf(&b, "   📈 APR: <b>%.2f%%</b>\n", p.TotalAPR)
		if w.AlertThreshold != nil {
			fmt.Fprintf(&b, "   🔔 Alert below %.2f%% APR\n", *w.AlertThreshold)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func formatSearchResults(res search.Result) string {
	if res.TotalPools == 0 {
		return fmt.Sprintf("❌ No pools found with <b>%s</b>", res.Query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Found pools with <b>%s</b>: %d\n\n", res.Query, res.TotalPools)
	b.WriteString("📍 <b>Available on chains:</b>\n\n")

	for _, chain := range res.Chains {
		fmt.Fprintf(&b, "%s <b>%s</b> (%d pools)\n", chain.Emoji, chain.Name, chain.PoolCount)
		fmt.Fprintf(&b, "   💰 TVL: %s\n", money0(chain.TotalTVL))

		names := make([]string, 0, len(chain.Protocols))
		for _, p := range chain.Protocols {
			names = append(names, p.Emoji+" "+p.Name)
		}
		fmt.Fprintf(&b, "   📊 Protocols: %s\n", strings.Join(names, ", "))

		if chain.BestAPR > 0 {
			fmt.Fprintf(&b, "   📈 Best APR: %.2f%%\n", chain.BestAPR)
		}
		b.WriteString("\n")
	}

	b.WriteString("<i>Select a chain to view protocols:</i>")
	return b.String()
}

func formatChainProtocols(chain search.ChainResult, token string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s - Pools with %s</b>\n\n", chain.Emoji, chain.Name, token)
	fmt.Fprintf(&b, "Found: <b>%d</b> pools\n\n", chain.PoolCount)
	b.WriteString("📊 <b>By protocol:</b>\n\n")

	for _, proto := range chain.Protocols {
		fmt.Fprintf(&b, "%s <b>%s</b>\n", proto.Emoji, proto.Name)
		fmt.Fprintf(&b, "   • Pools: %d\n", proto.PoolCount)
		fmt.Fprintf(&b, "   • TVL: %s\n", money0(proto.TotalTVL))
		fmt.Fprintf(&b, "   • Best APR: %.2f%%\n", proto.BestAPR)

		if top, ok := topByAPR(proto.Pools); ok {
			fmt.Fprintf(&b, "   • Top: %s (%.1f%% APR)\n", top.Pair(), top.TotalAPR())
		}
		b.WriteString("\n")
	}

	b.WriteString("<i>Select a protocol to view pools:</i>")
	return b.String()
}

func formatProtocolPools(proto search.ProtocolResult, token string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s - %s Pools</b>\n\n", proto.Emoji, proto.Name, token)

	limit := len(proto.Pools)
	if limit > 10 {
		limit = 10
	}
	fmt.Fprintf(&b, "Top %d pools:\n\n", limit)

	for i, p := range proto.Pools[:limit] {
		markers := ""
		if p.HasFarm() {
			markers += " 🌾"
		}
		if p.TotalAPR() > 100 {
			markers += " 🔥"
		}
		fmt.Fprintf(&b, "%d. <b>%s</b>%s\n", i+1, p.Pair(), markers)
		fmt.Fprintf(&b, "   💰 TVL: %s\n", money0(p.TVLUSD))
		fmt.Fprintf(&b, "   📊 Vol 24H: %s | 💵 Fees 24H: %s\n", money0(p.Volume24h), money(p.Fees24h))
		fmt.Fprintf(&b, "   📈 APR: <b>%.2f%%</b>\n\n", p.TotalAPR())
	}
	return strings.TrimSpace(b.String())
}

func topByAPR(pools []model.PoolStat) (model.PoolStat, bool) {
	if len(pools) == 0 {
		return model.PoolStat{}, false
	}
	best := pools[0]
	for _, p := range pools[1:] {
		if p.TotalAPR() > best.TotalAPR() {
			best = p
		}
	}
	return best, true
}

func protocolURL(id string) string {
	switch id {
	case "hyperion":
		return "https://hyperion.xyz"
	case "bluefin":
		return "https://trade.bluefin.io"
	}
	return ""
}

func poolURL(protocol, id string) string {
	if protocol == "hyperion" && id != "" {
		return "https://hyperion.xyz/pool/" + id
	}
	return ""
}
