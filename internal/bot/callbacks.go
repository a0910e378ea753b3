package bot

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"poolwatch/internal/market"
	"poolwatch/internal/model"
	"poolwatch/internal/search"
)

const findHintText = `🔍 <b>Finding pools</b>

/find 20 - stored pools with APR above 20%
/search APT - search a token across chains
/pool USDT-USDC - details for a specific pair`

const topHintText = `📊 <b>Top pools</b>

/pools - top 10 pools by TVL
/top apr - sort by APR, volume or fees
/farm - pools with farming rewards`

const settingsHintText = `⚙️ <b>Settings</b>

<b>Watch list:</b>
/watch &lt;address&gt; [alert_apr] - follow a pool
/watched - list your watched pools
/unwatch &lt;address&gt; - stop following

Personal filters and notifications are still in the works.`

const poolsSettingsText = `⚙️ <b>Pool list settings</b>

Choose sorting or a filter:`

func (b *Bot) callbackFindPools(c tele.Context) error {
	b.stats.Callback(uniqueFindPools)
	if err := c.Respond(); err != nil {
		return err
	}
	return c.Send(findHintText)
}

func (b *Bot) callbackTopPools(c tele.Context) error {
	b.stats.Callback(uniqueTopPools)
	if err := c.Respond(); err != nil {
		return err
	}
	return c.Send(topHintText)
}

func (b *Bot) callbackSettings(c tele.Context) error {
	b.stats.Callback(uniqueSettings)
	if err := c.Respond(); err != nil {
		return err
	}
	return c.Send(settingsHintText)
}

func (b *Bot) callbackRefreshStats(c tele.Context) error {
	b.stats.Callback(uniqueRefreshStats)

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.primary.Refresh(ctx)
	if err != nil {
		b.logger.Error("refresh pools", zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "❌ Refresh failed. Try again later.", ShowAlert: true})
	}

	if err := b.edit(c, formatMarketOverview(market.Stats(pools)), refreshStatsKeyboard()); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{Text: "✅ Stats updated"})
}

func (b *Bot) callbackRefreshPools(c tele.Context) error {
	b.stats.Callback(uniqueRefreshPools)

	criterion := c.Data()
	if !market.ValidSort(criterion) {
		criterion = market.SortTVL
	}

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.primary.Refresh(ctx)
	if err != nil {
		b.logger.Error("refresh pools", zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "❌ Refresh failed. Try again later.", ShowAlert: true})
	}
	if err := b.editTopList(c, pools, criterion); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{Text: "✅ Data updated"})
}

func (b *Bot) callbackPoolsSettings(c tele.Context) error {
	b.stats.Callback(uniquePoolsSettings)
	if err := b.edit(c, poolsSettingsText, poolsSettingsKeyboard()); err != nil {
		return err
	}
	return c.Respond()
}

func (b *Bot) callbackBackToPools(c tele.Context) error {
	b.stats.Callback(uniqueBackToPools)

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.primary.Pools(ctx)
	if err != nil {
		b.logger.Error("load pools", zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "❌ Failed to load data", ShowAlert: true})
	}
	if err := b.editTopList(c, pools, market.SortTVL); err != nil {
		return err
	}
	return c.Respond()
}

func (b *Bot) callbackFilterFarm(c tele.Context) error {
	b.stats.Callback(uniqueFilterFarm)

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.primary.Pools(ctx)
	if err != nil {
		b.logger.Error("load pools", zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "❌ Failed to load data", ShowAlert: true})
	}

	farm := farmPools(pools, 10)
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data("⬅️ Back to pools", uniqueBackToPools)))
	if err := b.edit(c, formatPoolsTable(farm, "🌾 Pools with Farming"), m); err != nil {
		return err
	}
	return c.Respond()
}

func (b *Bot) callbackSort(c tele.Context) error {
	b.stats.Callback(uniqueSort)

	criterion := c.Data()
	if !market.ValidSort(criterion) {
		criterion = market.SortTVL
	}

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.primary.Pools(ctx)
	if err != nil {
		b.logger.Error("load pools", zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "❌ Failed to load data", ShowAlert: true})
	}
	if err := b.editTopList(c, pools, criterion); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{Text: "Sorted by " + criterion})
}

func (b *Bot) callbackRefreshPool(c tele.Context) error {
	b.stats.Callback(uniqueRefreshPool)

	pair := c.Data()
	if pair == "" {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Stale button", ShowAlert: true})
	}

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.primary.Refresh(ctx)
	if err != nil {
		b.logger.Error("refresh pools", zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "❌ Refresh failed. Try again later.", ShowAlert: true})
	}

	pool, ok := findPool(pools, pair)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Pool " + pair + " not found", ShowAlert: true})
	}
	if err := b.edit(c, formatPoolDetail(pool), poolDetailKeyboard(pool)); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{Text: "✅ Data updated"})
}

func (b *Bot) callbackBackToChains(c tele.Context) error {
	b.stats.Callback(uniqueBackToChains)
	if err := b.edit(c, "🌐 <b>Chains</b>\n\nSelect a chain to view protocols:", b.chainsKeyboard()); err != nil {
		return err
	}
	return c.Respond()
}

func (b *Bot) callbackSelectChain(c tele.Context) error {
	b.stats.Callback(uniqueSelectChain)

	chainID := c.Data()
	caches := b.chainCaches(chainID)
	if len(caches) == 0 {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Unknown chain", ShowAlert: true})
	}

	ctx, cancel := b.ctx()
	defer cancel()

	name, emoji := search.ChainDisplay(chainID)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>%s</b>\n\n", emoji, name)

	m := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, cache := range caches {
		pools, err := cache.Pools(ctx)
		if err != nil {
			b.logger.Warn("load pools",
				zap.String("source", cache.Name()),
				zap.Error(err))
			continue
		}
		pname, pemoji := search.ProtocolDisplay(cache.Name())
		sb.WriteString(formatProtocolSummary(pname, pemoji, market.Stats(pools)))
		rows = append(rows, m.Row(m.Data(pemoji+" "+pname, uniqueSelectProto, cache.Name())))
	}
	sb.WriteString("<i>Select a protocol to view pools:</i>")
	rows = append(rows, m.Row(m.Data("⬅️ Back to chains", uniqueBackToChains)))
	m.Inline(rows...)

	if err := b.edit(c, sb.String(), m); err != nil {
		return err
	}
	return c.Respond()
}

func (b *Bot) callbackSelectProto(c tele.Context) error {
	b.stats.Callback(uniqueSelectProto)
	return b.renderProtocol(c, c.Data(), false)
}

func (b *Bot) callbackRefreshProto(c tele.Context) error {
	b.stats.Callback(uniqueRefreshProto)
	return b.renderProtocol(c, c.Data(), true)
}

func (b *Bot) renderProtocol(c tele.Context, proto string, refresh bool) error {
	cache := b.cacheFor(proto)
	if cache == nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Unknown protocol", ShowAlert: true})
	}

	ctx, cancel := b.ctx()
	defer cancel()

	var (
		pools []model.PoolStat
		err   error
	)
	if refresh {
		pools, err = cache.Refresh(ctx)
	} else {
		pools, err = cache.Pools(ctx)
	}
	if err != nil {
		b.logger.Error("load pools",
			zap.String("source", proto),
			zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "❌ Failed to load data", ShowAlert: true})
	}

	name, emoji := search.ProtocolDisplay(proto)
	top := topPools(pools, market.SortTVL, 10)
	title := fmt.Sprintf("%s %s Pools", emoji, name)
	if err := b.edit(c, formatPoolsTable(top, title), protocolKeyboard(cache.Chain(), proto)); err != nil {
		return err
	}
	if refresh {
		return c.Respond(&tele.CallbackResponse{Text: "✅ Data updated"})
	}
	return c.Respond()
}

func (b *Bot) callbackSearchChain(c tele.Context) error {
	b.stats.Callback(uniqueSearchChain)

	args := c.Args()
	if len(args) != 2 {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Stale button", ShowAlert: true})
	}
	token, chainID := args[0], args[1]

	res, ok := b.searchAgain(c, token)
	if !ok {
		return nil
	}
	chain, found := findChain(res, chainID)
	if !found {
		return c.Respond(&tele.CallbackResponse{Text: "❌ No more pools on this chain", ShowAlert: true})
	}

	if err := b.edit(c, formatChainProtocols(chain, res.Query), searchChainKeyboard(res.Query, chain)); err != nil {
		return err
	}
	return c.Respond()
}

func (b *Bot) callbackSearchProto(c tele.Context) error {
	b.stats.Callback(uniqueSearchProto)

	args := c.Args()
	if len(args) != 3 {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Stale button", ShowAlert: true})
	}
	token, chainID, protoID := args[0], args[1], args[2]

	res, ok := b.searchAgain(c, token)
	if !ok {
		return nil
	}
	chain, found := findChain(res, chainID)
	if !found {
		return c.Respond(&tele.CallbackResponse{Text: "❌ No more pools on this chain", ShowAlert: true})
	}
	proto, found := findProto(chain, protoID)
	if !found {
		return c.Respond(&tele.CallbackResponse{Text: "❌ No more pools on this protocol", ShowAlert: true})
	}

	if err := b.edit(c, formatProtocolPools(proto, res.Query), searchProtoKeyboard(res.Query, chainID, protoID)); err != nil {
		return err
	}
	return c.Respond()
}

func (b *Bot) callbackSearchBack(c tele.Context) error {
	b.stats.Callback(uniqueSearchBack)

	token := c.Data()
	if token == "" {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Stale button", ShowAlert: true})
	}

	res, ok := b.searchAgain(c, token)
	if !ok {
		return nil
	}
	if res.TotalPools == 0 {
		if err := b.edit(c, fmt.Sprintf("❌ No pools found with <b>%s</b>\n\nTry another token or pair", res.Query)); err != nil {
			return err
		}
		return c.Respond()
	}

	if err := b.edit(c, formatSearchResults(res), searchChainsKeyboard(res)); err != nil {
		return err
	}
	return c.Respond()
}

func (b *Bot) callbackNewSearch(c tele.Context) error {
	b.stats.Callback(uniqueNewSearch)
	if err := b.edit(c, searchMenuText); err != nil {
		return err
	}
	return c.Respond()
}

// searchAgain re-runs a search for a callback, answering the query
// itself when the search fails.
func (b *Bot) searchAgain(c tele.Context, query string) (search.Result, bool) {
	if b.engine == nil {
		_ = c.Respond(&tele.CallbackResponse{Text: "❌ Search is not available", ShowAlert: true})
		return search.Result{}, false
	}

	ctx, cancel := b.ctx()
	defer cancel()

	res, err := b.engine.Search(ctx, query)
	if err != nil {
		b.logger.Error("search pools", zap.String("query", query), zap.Error(err))
		_ = c.Respond(&tele.CallbackResponse{Text: "❌ Search failed. Try again later.", ShowAlert: true})
		return search.Result{}, false
	}
	return res, true
}

func (b *Bot) editTopList(c tele.Context, pools []model.PoolStat, criterion string) error {
	top := topPools(pools, criterion, 10)
	return b.edit(c, formatPoolsTable(top, sortTitles[criterion]), poolsKeyboard(criterion))
}

func findChain(res search.Result, id string) (search.ChainResult, bool) {
	for _, chain := range res.Chains {
		if chain.ID == id {
			return chain, true
		}
	}
	return search.ChainResult{}, false
}

func findProto(chain search.ChainResult, id string) (search.ProtocolResult, bool) {
	for _, proto := range chain.Protocols {
		if proto.ID == id {
			return proto, true
		}
	}
	return search.ProtocolResult{}, false
}

func startKeyboard() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(
		m.Row(m.Data("🔍 Find pools", uniqueFindPools), m.Data("📊 Top pools", uniqueTopPools)),
		m.Row(m.Data("⚙️ Settings", uniqueSettings)),
	)
	return m
}

func refreshStatsKeyboard() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data("🔄 Refresh", uniqueRefreshStats)))
	return m
}

func poolsKeyboard(criterion string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(
		m.Data("🔄 Refresh", uniqueRefreshPools, criterion),
		m.Data("⚙️ Settings", uniquePoolsSettings),
	))
	return m
}

func poolsSettingsKeyboard() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(
		m.Row(
			m.Data("💰 By TVL", uniqueSort, market.SortTVL),
			m.Data("📊 By Volume", uniqueSort, market.SortVolume),
		),
		m.Row(
			m.Data("📈 By APR", uniqueSort, market.SortAPR),
			m.Data("💵 By Fees", uniqueSort, market.SortFees),
		),
		m.Row(m.Data("🌾 Farm only", uniqueFilterFarm)),
		m.Row(m.Data("🌐 Chains", uniqueBackToChains)),
		m.Row(m.Data("⬅️ Back to pools", uniqueBackToPools)),
	)
	return m
}

func poolDetailKeyboard(p model.PoolStat) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	var rows []tele.Row
	if u := poolURL(p.Protocol, p.ID); u != "" {
		name, _ := search.ProtocolDisplay(p.Protocol)
		rows = append(rows, m.Row(m.URL("🌐 Open on "+name, u)))
	}
	// Button payloads are capped at 64 bytes, so the refresh button
	// carries the pair name rather than the pool address.
	rows = append(rows, m.Row(m.Data("🔄 Refresh", uniqueRefreshPool, p.Pair())))
	m.Inline(rows...)
	return m
}

func (b *Bot) chainsKeyboard() *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, id := range b.chainIDs() {
		name, emoji := search.ChainDisplay(id)
		rows = append(rows, m.Row(m.Data(emoji+" "+name, uniqueSelectChain, id)))
	}
	m.Inline(rows...)
	return m
}

func protocolKeyboard(chain, proto string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	var rows []tele.Row
	if u := protocolURL(proto); u != "" {
		name, _ := search.ProtocolDisplay(proto)
		rows = append(rows, m.Row(m.URL("🌐 Open "+name, u)))
	}
	rows = append(rows,
		m.Row(
			m.Data("🔄 Refresh", uniqueRefreshProto, proto),
			m.Data("⚙️ Settings", uniquePoolsSettings),
		),
		m.Row(m.Data("⬅️ Back", uniqueSelectChain, chain)),
	)
	m.Inline(rows...)
	return m
}

func searchChainsKeyboard(res search.Result) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, chain := range res.Chains {
		label := fmt.Sprintf("%s %s (%d)", chain.Emoji, chain.Name, chain.PoolCount)
		rows = append(rows, m.Row(m.Data(label, uniqueSearchChain, res.Query, chain.ID)))
	}
	rows = append(rows, m.Row(m.Data("🔄 New search", uniqueNewSearch)))
	m.Inline(rows...)
	return m
}

func searchChainKeyboard(token string, chain search.ChainResult) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, proto := range chain.Protocols {
		label := fmt.Sprintf("%s %s (%d)", proto.Emoji, proto.Name, proto.PoolCount)
		rows = append(rows, m.Row(m.Data(label, uniqueSearchProto, token, chain.ID, proto.ID)))
	}
	rows = append(rows,
		m.Row(m.Data("⬅️ Back to chains", uniqueSearchBack, token)),
		m.Row(m.Data("🔄 New search", uniqueNewSearch)),
	)
	m.Inline(rows...)
	return m
}

func searchProtoKeyboard(token, chainID, protoID string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	var rows []tele.Row
	if u := protocolURL(protoID); u != "" {
		name, _ := search.ProtocolDisplay(protoID)
		rows = append(rows, m.Row(m.URL("🌐 Open "+name, u)))
	}
	rows = append(rows,
		m.Row(m.Data("⬅️ Back to protocols", uniqueSearchChain, token, chainID)),
		m.Row(m.Data("🔄 New search", uniqueNewSearch)),
	)
	m.Inline(rows...)
	return m
}
