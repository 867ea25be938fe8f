package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mm_bot/internal/domain"
	"mm_bot/internal/infra"

	"github.com/shopspring/decimal"
)

// BalanceReport is one periodic view of the ledger.
type BalanceReport struct {
	Balances map[string]decimal.Decimal
	Metrics  infra.MetricsSnapshot
	Time     time.Time
}

// BalanceReporter periodically logs every ledger balance. It only reads the
// ledger and runs independently of the quoting loop.
type BalanceReporter struct {
	ledger   *domain.Ledger
	metrics  *infra.Metrics
	interval time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	last *BalanceReport
}

// NewBalanceReporter creates a reporter. metrics may be nil.
func NewBalanceReporter(ledger *domain.Ledger, metrics *infra.Metrics, interval time.Duration) *BalanceReporter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &BalanceReporter{
		ledger:   ledger,
		metrics:  metrics,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run reports immediately, then once per interval until ctx is cancelled.
func (r *BalanceReporter) Run(ctx context.Context) {
	r.Report()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Report()
		}
	}
}

// Report logs the current balances and returns them.
func (r *BalanceReporter) Report() BalanceReport {
	report := BalanceReport{
		Balances: r.ledger.Snapshot(),
		Time:     time.Now(),
	}

	attrs := make([]any, 0, len(report.Balances)+6)
	for _, asset := range r.ledger.KnownAssets() {
		if v, ok := report.Balances[asset]; ok {
			attrs = append(attrs, slog.String(asset, v.String()))
		}
	}
	if r.metrics != nil {
		report.Metrics = r.metrics.Snapshot()
		attrs = append(attrs, slog.Group("metrics",
			slog.Uint64("cycles", report.Metrics.CyclesRun),
			slog.Uint64("snapshot_failures", report.Metrics.SnapshotFailures),
			slog.Uint64("quotes_placed", report.Metrics.QuotesPlaced),
			slog.Uint64("bids_filled", report.Metrics.BidsFilled),
			slog.Uint64("asks_filled", report.Metrics.AsksFilled),
			slog.Uint64("quotes_cancelled", report.Metrics.QuotesCancelled),
			slog.Duration("avg_fetch_latency", report.Metrics.AvgFetchLatency),
		))
	}
	r.logger.Info("BALANCES", attrs...)

	r.mu.Lock()
	r.last = &report
	r.mu.Unlock()
	return report
}

// Last returns the most recent report, if any.
func (r *BalanceReporter) Last() (BalanceReport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return BalanceReport{}, false
	}
	return *r.last, true
}
