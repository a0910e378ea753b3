// Package bot serves the Telegram command surface for pool tracking.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"poolwatch/internal/search"
	"poolwatch/internal/source"
	"poolwatch/internal/stats"
	"poolwatch/internal/stats/noop"
	"poolwatch/internal/storage"
)

const handlerTimeout = 30 * time.Second

// Callback uniques. Dynamic arguments travel in the data part.
const (
	uniqueFindPools     = "find_pools"
	uniqueTopPools      = "top_pools"
	uniqueSettings      = "settings"
	uniqueRefreshStats  = "refresh_stats"
	uniqueRefreshPools  = "refresh_pools"
	uniquePoolsSettings = "pools_settings"
	uniqueBackToPools   = "back_to_pools"
	uniqueFilterFarm    = "filter_farm"
	uniqueSort          = "sort"
	uniqueRefreshPool   = "refresh_pool"
	uniqueBackToChains  = "back_to_chains"
	uniqueSelectChain   = "select_chain"
	uniqueSelectProto   = "select_proto"
	uniqueRefreshProto  = "refresh_proto"
	uniqueSearchChain   = "search_chain"
	uniqueSearchProto   = "search_proto"
	uniqueSearchBack    = "search_back"
	uniqueNewSearch     = "new_search"
)

// Config carries the bot's dependencies.
type Config struct {
	Token       string
	PollTimeout time.Duration
	Store       storage.Store
	Primary     *source.Cache
	Caches      []*source.Cache
	Engine      *search.Engine
	Stats       stats.Stats
	Logger      *zap.Logger
}

// Bot answers commands and callback queries over long polling.
type Bot struct {
	tb      *tele.Bot
	store   storage.Store
	primary *source.Cache
	caches  []*source.Cache
	engine  *search.Engine
	stats   stats.Stats
	logger  *zap.Logger
}

// New builds the bot and registers all handlers.
func New(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("bot token is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Primary == nil {
		return nil, errors.New("primary source is required")
	}

	poll := cfg.PollTimeout
	if poll <= 0 {
		poll = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	st := cfg.Stats
	if st == nil {
		st = noop.Stats{}
	}
	caches := cfg.Caches
	if len(caches) == 0 {
		caches = []*source.Cache{cfg.Primary}
	}

	b := &Bot{
		store:   cfg.Store,
		primary: cfg.Primary,
		caches:  caches,
		engine:  cfg.Engine,
		stats:   st,
		logger:  logger,
	}

	tb, err := tele.NewBot(tele.Settings{
		Token:     cfg.Token,
		Poller:    &tele.LongPoller{Timeout: poll},
		ParseMode: tele.ModeHTML,
		OnError: func(err error, c tele.Context) {
			logger.Error("handler failed", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	b.tb = tb
	b.route()
	return b, nil
}

func (b *Bot) route() {
	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle("/help", b.handleHelp)
	b.tb.Handle("/commands", b.handleCommands)
	b.tb.Handle("/stats", b.handleStats)
	b.tb.Handle("/pools", b.handlePools)
	b.tb.Handle("/top", b.handleTop)
	b.tb.Handle("/farm", b.handleFarm)
	b.tb.Handle("/pool", b.handlePoolDetail)
	b.tb.Handle("/fee_tiers", b.handleFeeTiers)
	b.tb.Handle("/find", b.handleFind)
	b.tb.Handle("/search", b.handleSearch)
	b.tb.Handle("/watch", b.handleWatch)
	b.tb.Handle("/watched", b.handleWatched)
	b.tb.Handle("/unwatch", b.handleUnwatch)
	b.tb.Handle(tele.OnText, b.handleText)

	b.tb.Handle(&tele.Btn{Unique: uniqueFindPools}, b.callbackFindPools)
	b.tb.Handle(&tele.Btn{Unique: uniqueTopPools}, b.callbackTopPools)
	b.tb.Handle(&tele.Btn{Unique: uniqueSettings}, b.callbackSettings)
	b.tb.Handle(&tele.Btn{Unique: uniqueRefreshStats}, b.callbackRefreshStats)
	b.tb.Handle(&tele.Btn{Unique: uniqueRefreshPools}, b.callbackRefreshPools)
	b.tb.Handle(&tele.Btn{Unique: uniquePoolsSettings}, b.callbackPoolsSettings)
	b.tb.Handle(&tele.Btn{Unique: uniqueBackToPools}, b.callbackBackToPools)
	b.tb.Handle(&tele.Btn{Unique: uniqueFilterFarm}, b.callbackFilterFarm)
	b.tb.Handle(&tele.Btn{Unique: uniqueSort}, b.callbackSort)
	b.tb.Handle(&tele.Btn{Unique: uniqueRefreshPool}, b.callbackRefreshPool)
	b.tb.Handle(&tele.Btn{Unique: uniqueBackToChains}, b.callbackBackToChains)
	b.tb.Handle(&tele.Btn{Unique: uniqueSelectChain}, b.callbackSelectChain)
	b.tb.Handle(&tele.Btn{Unique: uniqueSelectProto}, b.callbackSelectProto)
	b.tb.Handle(&tele.Btn{Unique: uniqueRefreshProto}, b.callbackRefreshProto)
	b.tb.Handle(&tele.Btn{Unique: uniqueSearchChain}, b.callbackSearchChain)
	b.tb.Handle(&tele.Btn{Unique: uniqueSearchProto}, b.callbackSearchProto)
	b.tb.Handle(&tele.Btn{Unique: uniqueSearchBack}, b.callbackSearchBack)
	b.tb.Handle(&tele.Btn{Unique: uniqueNewSearch}, b.callbackNewSearch)
}

// Start begins long polling and blocks until Stop is called.
func (b *Bot) Start() {
	b.logger.Info("starting bot polling")
	b.tb.Start()
}

// Stop stops the poller.
func (b *Bot) Stop() {
	b.tb.Stop()
}

func (b *Bot) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

// sendLoading posts a placeholder message that the handler edits once
// the data is ready. A nil return means the send failed and the final
// text goes out as a fresh message instead.
func (b *Bot) sendLoading(c tele.Context, text string) *tele.Message {
	msg, err := b.tb.Send(c.Recipient(), text)
	if err != nil {
		b.logger.Warn("send placeholder", zap.Error(err))
	}
	return msg
}

func (b *Bot) editOrSend(c tele.Context, msg *tele.Message, what interface{}, opts ...interface{}) error {
	if msg == nil {
		return c.Send(what, opts...)
	}
	_, err := b.tb.Edit(msg, what, opts...)
	return ignoreNotModified(err)
}

// edit edits the message a callback is attached to.
func (b *Bot) edit(c tele.Context, what interface{}, opts ...interface{}) error {
	return ignoreNotModified(c.Edit(what, opts...))
}

// Telegram rejects edits that change nothing. Re-rendering the same
// data is routine here, so that answer is not an error.
func ignoreNotModified(err error) error {
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

func (b *Bot) cacheFor(protocol string) *source.Cache {
	for _, c := range b.caches {
		if c.Name() == protocol {
			return c
		}
	}
	return nil
}

// chainIDs returns the distinct chains of the registered sources, in
// registration order.
func (b *Bot) chainIDs() []string {
	seen := make(map[string]struct{}, len(b.caches))
	var ids []string
	for _, c := range b.caches {
		if _, ok := seen[c.Chain()]; ok {
			continue
		}
		seen[c.Chain()] = struct{}{}
		ids = append(ids, c.Chain())
	}
	return ids
}

func (b *Bot) chainCaches(chain string) []*source.Cache {
	var out []*source.Cache
	for _, c := range b.caches {
		if c.Chain() == chain {
			out = append(out, c)
		}
	}
	return out
}
