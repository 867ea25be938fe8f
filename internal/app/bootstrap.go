package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"mm_bot/internal/domain"
	"mm_bot/internal/engine"
	"mm_bot/internal/execution"
	"mm_bot/internal/infra"
	"mm_bot/internal/infra/bitfinex"
	"mm_bot/internal/infra/storage"
	"mm_bot/internal/service"
	"mm_bot/internal/strategy"
)

// DefaultConfigPath is where Initialize looks for the YAML file.
const DefaultConfigPath = "configs/config.yaml"

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage // nil unless storage.enabled
	Metrics *infra.Metrics
	Ledger  *domain.Ledger

	Feed   domain.SnapshotSource
	Worker domain.FeedWorker // set only in websocket mode

	Orchestrator *engine.Orchestrator
	Reporter     *service.BalanceReporter
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads the configuration, installs the logger and wires every
// component.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping market maker...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Components
	return b.Wire(cfg)
}

// Wire builds every component from cfg without touching global state.
func (b *Bootstrap) Wire(cfg *infra.Config) error {
	b.Config = cfg
	b.Metrics = infra.NewMetrics()

	// Fill journal (optional)
	var journal domain.FillJournal
	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.Storage = store
		journal = store
		slog.Info("✅ Fill journal initialized", slog.String("path", cfg.Storage.Path))
	}

	// Ledger: the traded pair first, then any extra asset from the config
	b.Ledger = domain.NewLedger()
	b.Ledger.Register(cfg.Market.BaseAsset, cfg.Market.InitialBalances[cfg.Market.BaseAsset])
	b.Ledger.Register(cfg.Market.CounterAsset, cfg.Market.InitialBalances[cfg.Market.CounterAsset])
	extra := make([]string, 0, len(cfg.Market.InitialBalances))
	for asset := range cfg.Market.InitialBalances {
		if asset != cfg.Market.BaseAsset && asset != cfg.Market.CounterAsset {
			extra = append(extra, asset)
		}
	}
	sort.Strings(extra)
	for _, asset := range extra {
		b.Ledger.Register(asset, cfg.Market.InitialBalances[asset])
	}

	// Quoting policy
	quoter, err := strategy.NewRandomOffsetQuoter(cfg.Quoting.RandomPercent, cfg.Quoting.MinimumAmount, cfg.Quoting.MaximumAmount)
	if err != nil {
		b.Close()
		return fmt.Errorf("quoter: %w", err)
	}

	// Snapshot source
	switch cfg.Feed.Mode {
	case infra.FeedModeWebsocket:
		worker := bitfinex.NewBookWorker(cfg.Feed.WSURL, cfg.Feed.Symbol, cfg.Feed.Precision, b.Metrics)
		b.Worker = worker
		b.Feed = worker
	default:
		b.Feed = infra.NewOrderbookClient(cfg.Feed.RestURL, cfg.Feed.Symbol, cfg.Feed.Precision, cfg.Feed.Retries, cfg.FetchTimeout())
	}

	b.Orchestrator = engine.NewOrchestrator(engine.Options{
		Source:    b.Feed,
		Ledger:    b.Ledger,
		Book:      domain.NewQuoteBook(cfg.Quoting.NumOrders),
		Quoter:    quoter,
		Simulator: execution.NewFillSimulator(b.Ledger, cfg.Market.BaseAsset, cfg.Market.CounterAsset),
		Journal:   journal,
		Metrics:   b.Metrics,
		Policy: engine.Policy{
			CancelUnfilled:  cfg.Quoting.CancelUnfilled,
			ReplenishOrders: cfg.Quoting.ReplenishOrders,
		},
		Interval:     cfg.OrderbookInterval(),
		FetchTimeout: cfg.FetchTimeout(),
	})

	b.Reporter = service.NewBalanceReporter(b.Ledger, b.Metrics, cfg.BalancesInterval())

	slog.Info("✅ Components wired",
		slog.String("pair", cfg.Market.BaseAsset+"/"+cfg.Market.CounterAsset),
		slog.String("feed", cfg.Feed.Mode),
		slog.Int("num_orders", cfg.Quoting.NumOrders))
	return nil
}

// Start connects the websocket feed (if any) and launches the balance
// reporter and the quoting loop in the background.
func (b *Bootstrap) Start(ctx context.Context) error {
	if b.Worker != nil {
		if err := b.Worker.Connect(ctx); err != nil {
			return fmt.Errorf("connect feed: %w", err)
		}
		slog.InfoContext(ctx, "✅ Websocket feed started", slog.String("symbol", b.Config.Feed.Symbol))
	}

	go b.Reporter.Run(ctx)
	go b.Orchestrator.Run(ctx)
	slog.InfoContext(ctx, "✅ Quoting loop started")
	return nil
}

// JournalSummary is the shutdown view of the fill journal.
type JournalSummary struct {
	Bids int64
	Asks int64
	Last *domain.FillRecord // nil when the journal is empty
}

// ReadJournalSummary counts journaled fills per side and fetches the latest.
// ok is false when the journal is disabled.
func (b *Bootstrap) ReadJournalSummary(ctx context.Context) (summary JournalSummary, ok bool, err error) {
	if b.Storage == nil {
		return JournalSummary{}, false, nil
	}

	counts, err := b.Storage.CountFills(ctx)
	if err != nil {
		return JournalSummary{}, true, err
	}
	summary.Bids = counts[domain.SideBid.String()]
	summary.Asks = counts[domain.SideAsk.String()]

	recent, err := b.Storage.RecentFills(ctx, 1)
	if err != nil {
		return summary, true, err
	}
	if len(recent) > 0 {
		summary.Last = &recent[0]
	}
	return summary, true, nil
}

// LogJournalSummary logs the journal summary on shutdown.
func (b *Bootstrap) LogJournalSummary(ctx context.Context) {
	summary, ok, err := b.ReadJournalSummary(ctx)
	if !ok {
		return
	}
	if err != nil {
		slog.Warn("Failed to read fill journal", slog.Any("error", err))
		return
	}

	attrs := []any{slog.Int64("bids", summary.Bids), slog.Int64("asks", summary.Asks)}
	if last := summary.Last; last != nil {
		attrs = append(attrs, slog.Group("last",
			slog.String("side", last.Side),
			slog.String("price", last.Price),
			slog.String("amount", last.Amount),
			slog.Time("filled_at", last.FilledAt)))
	}
	slog.InfoContext(ctx, "FILL JOURNAL", attrs...)
}

// Close releases the feed connection and the journal.
func (b *Bootstrap) Close() {
	if b.Worker != nil {
		b.Worker.Disconnect()
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Failed to close fill journal", slog.Any("error", err))
		}
	}
}
