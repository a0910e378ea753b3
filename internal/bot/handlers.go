package bot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"poolwatch/internal/market"
	"poolwatch/internal/model"
	"poolwatch/internal/search"
	"poolwatch/internal/storage"
)

const welcomeText = `👋 Welcome to the liquidity pool tracker!

I follow DeFi liquidity pools across chains and help you find profitable places for your liquidity.

<b>Quick start:</b>
/stats - market overview
/pools - top pools by TVL
/search - find pools by token

Full list: /help`

const helpText = `📖 <b>Help</b>

<b>Market:</b>
/stats - market overview
/pools - top 10 pools by TVL
/top [tvl|volume|apr|fees] - top pools by criterion
/farm - pools with farming rewards

<b>Pool details:</b>
/pool &lt;token_a&gt;-&lt;token_b&gt; - detailed pool info
/fee_tiers - stored pools grouped by fee tier
/find &lt;min_apr&gt; - stored pools above an APR threshold

<b>Search:</b>
/search &lt;token&gt; - search pools across all tracked chains
Typing a token name in the chat works too, e.g. <code>APT</code> or <code>APT/USDC</code>.

<b>Watch list:</b>
/watch &lt;address&gt; [alert_apr] - follow a pool
/watched - list your watched pools
/unwatch &lt;address&gt; - stop following a pool

Data refreshes about once a minute. APR values are indicative, not a promise.`

const commandsText = `📋 <b>Commands</b>

/start - main menu
/help - detailed help
/stats - market overview
/pools - top pools by TVL
/top - top pools by criterion
/farm - farming pools
/pool - pool details
/fee_tiers - pools by fee tier
/find - pools above an APR
/search - token search
/watch - follow a pool
/watched - your watch list
/unwatch - stop following`

const searchMenuText = `🔍 <b>Pool search</b>

Send a token name or a pair and I will look for pools across every chain I track.

<b>Examples:</b>
• <code>APT</code>
• <code>USDC</code>
• <code>APT/USDT</code>

You can also just type the token name in the chat.`

const (
	loadingText  = "⏳ Loading data..."
	loadFailText = "❌ Failed to load data. Try again later."

	topUsage     = "❌ Unknown sort criterion.\n\nUsage: /top [tvl|volume|apr|fees]\nExample: /top apr"
	poolUsage    = "❌ Specify a token pair\n\nUsage: /pool &lt;token_a&gt;-&lt;token_b&gt;\nExample: /pool USDT-USDC"
	findUsage    = "❌ Specify a minimum APR\n\nUsage: /find &lt;min_apr&gt;\nExample: /find 20"
	watchUsage   = "❌ Specify a pool address\n\nUsage: /watch &lt;address&gt; [alert_apr]\nExample: /watch 0xabc... 15"
	unwatchUsage = "❌ Specify a pool address\n\nUsage: /unwatch &lt;address&gt;"
	badQueryText = "❌ Invalid search query.\n\nSend a token like <code>APT</code> or a pair like <code>APT/USDC</code>."
)

var sortTitles = map[string]string{
	market.SortTVL:    "💰 Top Pools by TVL",
	market.SortVolume: "📊 Top Pools by Volume",
	market.SortAPR:    "📈 Top Pools by APR",
	market.SortFees:   "💵 Top Pools by Fees",
}

// Bare token or pair typed into the chat, like "APT" or "apt/usdc".
var tokenQueryRE = regexp.MustCompile(`^[A-Za-z0-9]{2,10}([-/][A-Za-z0-9]{0,10})?$`)

func (b *Bot) handleStart(c tele.Context) error {
	b.stats.Command("start")

	ctx, cancel := b.ctx()
	defer cancel()

	if sender := c.Sender(); sender != nil {
		if _, err := b.store.GetOrCreateUser(ctx, sender.ID, sender.Username); err != nil {
			b.logger.Warn("register user", zap.Error(err))
		} else {
			b.logger.Info("user started the bot",
				zap.Int64("telegram_id", sender.ID),
				zap.String("username", sender.Username))
		}
	}

	return c.Send(welcomeText, startKeyboard())
}

func (b *Bot) handleHelp(c tele.Context) error {
	b.stats.Command("help")
	return c.Send(helpText)
}

func (b *Bot) handleCommands(c tele.Context) error {
	b.stats.Command("commands")
	return c.Send(commandsText)
}

func (b *Bot) handleStats(c tele.Context) error {
	b.stats.Command("stats")

	loading := b.sendLoading(c, loadingText)

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.primary.Pools(ctx)
	if err != nil {
		b.logger.Error("load pools for stats", zap.Error(err))
		return b.editOrSend(c, loading, loadFailText)
	}

	return b.editOrSend(c, loading, formatMarketOverview(market.Stats(pools)), refreshStatsKeyboard())
}

func (b *Bot) handlePools(c tele.Context) error {
	b.stats.Command("pools")
	return b.renderTop(c, nil, market.SortTVL)
}

func (b *Bot) handleTop(c tele.Context) error {
	b.stats.Command("top")

	criterion := market.SortTVL
	if args := c.Args(); len(args) > 0 {
		criterion = strings.ToLower(args[0])
	}
	if !market.ValidSort(criterion) {
		return c.Send(topUsage)
	}
	return b.renderTop(c, nil, criterion)
}

// renderTop shows the top pools list for a sort criterion. With a nil
// message it sends a placeholder first, otherwise it edits in place.
func (b *Bot) renderTop(c tele.Context, msg *tele.Message, criterion string) error {
	if msg == nil {
		msg = b.sendLoading(c, loadingText)
	}

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.primary.Pools(ctx)
	if err != nil {
		b.logger.Error("load pools", zap.Error(err))
		return b.editOrSend(c, msg, loadFailText)
	}

	top := topPools(pools, criterion, 10)
	return b.editOrSend(c, msg, formatPoolsTable(top, sortTitles[criterion]), poolsKeyboard(criterion))
}

func (b *Bot) handleFarm(c tele.Context) error {
	b.stats.Command("farm")

	loading := b.sendLoading(c, loadingText)

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.primary.Pools(ctx)
	if err != nil {
		b.logger.Error("load pools", zap.Error(err))
		return b.editOrSend(c, loading, loadFailText)
	}

	farm := farmPools(pools, 20)
	return b.editOrSend(c, loading, formatPoolsTable(farm, "🌾 Pools with Farming"))
}

func (b *Bot) handlePoolDetail(c tele.Context) error {
	b.stats.Command("pool")

	args := c.Args()
	if len(args) == 0 {
		return c.Send(poolUsage)
	}
	query := args[0]

	loading := b.sendLoading(c, fmt.Sprintf("🔍 Looking for pool %s...", query))

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.primary.Pools(ctx)
	if err != nil {
		b.logger.Error("load pools", zap.Error(err))
		return b.editOrSend(c, loading, loadFailText)
	}

	pool, ok := findPool(pools, query)
	if !ok {
		// Not a live pool; the query may name a stored address.
		stored, err := b.store.PoolByAddress(ctx, query)
		if err == nil {
			return b.editOrSend(c, loading, formatStoredPool(stored))
		}
		if !errors.Is(err, storage.ErrNotFound) {
			b.logger.Warn("lookup stored pool", zap.Error(err))
		}
		return b.editOrSend(c, loading, fmt.Sprintf("❌ Pool %s not found.", query))
	}

	return b.editOrSend(c, loading, formatPoolDetail(pool), poolDetailKeyboard(pool))
}

func (b *Bot) handleFeeTiers(c tele.Context) error {
	b.stats.Command("fee_tiers")

	loading := b.sendLoading(c, loadingText)

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.store.AllPools(ctx)
	if err != nil {
		b.logger.Error("load stored pools", zap.Error(err))
		return b.editOrSend(c, loading, loadFailText)
	}

	return b.editOrSend(c, loading, formatFeeTiers(pools))
}

func (b *Bot) handleFind(c tele.Context) error {
	b.stats.Command("find")

	args := c.Args()
	if len(args) == 0 {
		return c.Send(findUsage)
	}
	minAPR, err := strconv.ParseFloat(args[0], 64)
	if err != nil || minAPR < 0 || minAPR > 10000 {
		return c.Send(findUsage)
	}

	ctx, cancel := b.ctx()
	defer cancel()

	pools, err := b.store.TopPools(ctx, storage.PoolQuery{MinAPR: minAPR, SortBy: market.SortAPR, Limit: 20})
	if err != nil {
		b.logger.Error("query stored pools", zap.Error(err))
		return c.Send(loadFailText)
	}
	if len(pools) == 0 {
		return c.Send(fmt.Sprintf("❌ No pools found with APR above %g%%.\n\nTry a lower threshold, e.g. /find 10", minAPR))
	}

	header := fmt.Sprintf("🔍 Pools found with APR > %g%%:", minAPR)
	return c.Send(formatStoredPools(pools, header))
}

func (b *Bot) handleSearch(c tele.Context) error {
	b.stats.Command("search")

	args := c.Args()
	if len(args) == 0 {
		return c.Send(searchMenuText)
	}
	return b.runSearch(c, strings.Join(args, " "))
}

func (b *Bot) handleWatch(c tele.Context) error {
	b.stats.Command("watch")

	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) == 0 {
		return c.Send(watchUsage)
	}
	address := args[0]

	var threshold *float64
	if len(args) > 1 {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil || v < 0 || v > 10000 {
			return c.Send(watchUsage)
		}
		threshold = &v
	}

	ctx, cancel := b.ctx()
	defer cancel()

	if _, err := b.store.GetOrCreateUser(ctx, sender.ID, sender.Username); err != nil {
		b.logger.Warn("register user", zap.Error(err))
	}

	if err := b.store.WatchPool(ctx, sender.ID, address, threshold); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Send(fmt.Sprintf("❌ Pool <code>%s</code> is not in the database yet.\n\nIt shows up after the next refresh of tracked pools.", address))
		}
		b.logger.Error("watch pool", zap.Error(err))
		return c.Send("❌ Failed to save. Try again later.")
	}

	if threshold != nil {
		return c.Send(fmt.Sprintf("⭐ Watching <code>%s</code>. I will flag it when APR drops below %.2f%%.", address, *threshold))
	}
	return c.Send(fmt.Sprintf("⭐ Watching <code>%s</code>.", address))
}

func (b *Bot) handleWatched(c tele.Context) error {
	b.stats.Command("watched")

	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx, cancel := b.ctx()
	defer cancel()

	watched, err := b.store.WatchedPools(ctx, sender.ID)
	if err != nil {
		b.logger.Error("load watched pools", zap.Error(err))
		return c.Send(loadFailText)
	}
	return c.Send(formatWatchedPools(watched))
}

func (b *Bot) handleUnwatch(c tele.Context) error {
	b.stats.Command("unwatch")

	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) == 0 {
		return c.Send(unwatchUsage)
	}

	ctx, cancel := b.ctx()
	defer cancel()

	if err := b.store.UnwatchPool(ctx, sender.ID, args[0]); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Send("❌ That pool is not on your watch list.")
		}
		b.logger.Error("unwatch pool", zap.Error(err))
		return c.Send("❌ Failed to save. Try again later.")
	}
	return c.Send(fmt.Sprintf("✅ Stopped watching <code>%s</code>.", args[0]))
}

// handleText treats short plain messages as search queries, so typing
// "APT" works without the /search prefix.
func (b *Bot) handleText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())
	if strings.HasPrefix(text, "/") {
		return nil
	}
	if !tokenQueryRE.MatchString(text) {
		return nil
	}
	return b.runSearch(c, text)
}

func (b *Bot) runSearch(c tele.Context, query string) error {
	if b.engine == nil {
		return c.Send("❌ Search is not available right now.")
	}
	if _, _, err := search.ParseQuery(query); err != nil {
		return c.Send(badQueryText)
	}
	b.stats.Search()

	loading := b.sendLoading(c, "🔍 Searching pools...")

	ctx, cancel := b.ctx()
	defer cancel()

	result, err := b.engine.Search(ctx, query)
	if err != nil {
		b.logger.Error("search pools", zap.String("query", query), zap.Error(err))
		return b.editOrSend(c, loading, "❌ Search failed. Try again later.")
	}
	if result.TotalPools == 0 {
		return b.editOrSend(c, loading, fmt.Sprintf("❌ No pools found with <b>%s</b>\n\nTry another token or pair", result.Query))
	}
	return b.editOrSend(c, loading, formatSearchResults(result), searchChainsKeyboard(result))
}

// topPools ranks pools that already passed each source's activity
// policy, so the default thresholds are disabled here.
func topPools(pools []model.PoolStat, sortBy string, limit int) []model.PoolStat {
	return market.Filter(pools, market.Options{MinTVL: -1, MinVolume: -1, SortBy: sortBy, Limit: limit})
}

func farmPools(pools []model.PoolStat, limit int) []model.PoolStat {
	farm := true
	return market.Filter(pools, market.Options{MinTVL: -1, MinVolume: -1, HasFarm: &farm, SortBy: market.SortAPR, Limit: limit})
}

// findPool matches a pool by id, or by pair in either token order.
func findPool(pools []model.PoolStat, query string) (model.PoolStat, bool) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(query), "/", "-"))
	for _, p := range pools {
		if strings.EqualFold(p.ID, query) {
			return p, true
		}
		straight := strings.ToUpper(p.TokenX + "-" + p.TokenY)
		reversed := strings.ToUpper(p.TokenY + "-" + p.TokenX)
		if norm == straight || norm == reversed {
			return p, true
		}
	}
	return model.PoolStat{}, false
}
