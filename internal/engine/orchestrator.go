package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"mm_bot/internal/domain"
	"mm_bot/internal/execution"
	"mm_bot/internal/infra"
	"mm_bot/internal/strategy"

	"github.com/shopspring/decimal"
)

// State of the quoting loop.
type State int

const (
	StateAwaitingFirstSnapshot State = iota
	StateSteady
)

func (s State) String() string {
	switch s {
	case StateAwaitingFirstSnapshot:
		return "AWAITING_FIRST_SNAPSHOT"
	case StateSteady:
		return "STEADY"
	default:
		return "UNKNOWN"
	}
}

// Policy selects what happens to the quote book after fills are resolved.
type Policy struct {
	CancelUnfilled  bool // clear every slot still resting after the fill pass
	ReplenishOrders bool // refill every empty slot around the new touch
}

// Options wires an Orchestrator. Journal and Metrics may be nil.
type Options struct {
	Source    domain.SnapshotSource
	Ledger    *domain.Ledger
	Book      *domain.QuoteBook
	Quoter    strategy.Quoter
	Simulator *execution.FillSimulator
	Journal   domain.FillJournal
	Metrics   *infra.Metrics
	Policy    Policy

	Interval     time.Duration // delay between the end of a cycle and the start of the next
	FetchTimeout time.Duration // upper bound for one snapshot fetch
	DumpPath     string        // state dump written on panic
}

// Orchestrator drives the quote-and-fill cycle. Cycles never overlap: the
// next one is armed only after the previous one has finished.
type Orchestrator struct {
	source    domain.SnapshotSource
	ledger    *domain.Ledger
	book      *domain.QuoteBook
	quoter    strategy.Quoter
	simulator *execution.FillSimulator
	journal   domain.FillJournal
	metrics   *infra.Metrics
	policy    Policy

	interval     time.Duration
	fetchTimeout time.Duration
	dumpPath     string

	state State

	mu sync.RWMutex // guards book and state for external reads
}

// NewOrchestrator creates an orchestrator in StateAwaitingFirstSnapshot.
func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		source:       opts.Source,
		ledger:       opts.Ledger,
		book:         opts.Book,
		quoter:       opts.Quoter,
		simulator:    opts.Simulator,
		journal:      opts.Journal,
		metrics:      opts.Metrics,
		policy:       opts.Policy,
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		dumpPath:     opts.DumpPath,
		state:        StateAwaitingFirstSnapshot,
	}
	if o.metrics == nil {
		o.metrics = infra.NewMetrics()
	}
	if o.interval <= 0 {
		o.interval = 5 * time.Second
	}
	if o.fetchTimeout <= 0 {
		o.fetchTimeout = 4 * time.Second
	}
	if o.dumpPath == "" {
		o.dumpPath = "panic_dump.json"
	}
	return o
}

// Run executes the first cycle immediately, then one cycle per interval until
// ctx is cancelled. Cycle errors are logged and never stop the loop.
func (o *Orchestrator) Run(ctx context.Context) {
	slog.Info("Orchestrator started",
		slog.Duration("interval", o.interval),
		slog.Bool("cancel_unfilled", o.policy.CancelUnfilled),
		slog.Bool("replenish_orders", o.policy.ReplenishOrders))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			o.DumpState(o.dumpPath)
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Orchestrator stopping...")
			return
		case <-timer.C:
			if err := o.Step(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("Cycle skipped",
					slog.Any("error", err),
					slog.Bool("retriable", domain.IsRetriable(err)),
					slog.String("state", o.State().String()))
			}
			timer.Reset(o.interval)
		}
	}
}

// Step runs one cycle. A failed fetch or a one-sided book returns an error
// and leaves the ledger, the quote book and the state untouched.
func (o *Orchestrator) Step(ctx context.Context) error {
	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	levels, err := o.source.Snapshot(fetchCtx)
	cancel()
	if err != nil {
		o.metrics.RecordSnapshotFailure()
		return err
	}

	best := domain.ReadBestOfBook(levels)
	if err := best.Require(); err != nil {
		o.metrics.RecordSnapshotFailure()
		return err
	}
	o.metrics.RecordCycle(time.Since(start))

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateAwaitingFirstSnapshot {
		o.replenish(best)
		o.state = StateSteady
		slog.Info("First snapshot received",
			slog.String("best_bid", best.Bid.Price.String()),
			slog.String("best_ask", best.Ask.Price.String()))
		return nil
	}

	fills, err := o.simulator.Simulate(o.book, best)
	for _, f := range fills {
		o.recordFill(ctx, f)
	}
	if err != nil {
		return err
	}

	if o.policy.CancelUnfilled {
		if n := o.book.ClearAll(); n > 0 {
			o.metrics.RecordCancelled(n)
			slog.Info("CANCEL UNFILLED", slog.Int("count", n))
		}
	}

	if o.policy.ReplenishOrders {
		o.replenish(best)
	}
	return nil
}

// replenish refreshes both sides around the touch. Must be called with mu held.
func (o *Orchestrator) replenish(best domain.BestOfBook) {
	for _, side := range []domain.Side{domain.SideBid, domain.SideAsk} {
		touch, ok := best.Price(side)
		if !ok {
			continue
		}
		placed := o.book.RefreshSide(side, touch, o.quoter.Price, o.quoter.Amount)
		for _, s := range placed {
			slog.Info("PLACE "+side.String(),
				slog.Int("slot", s.Index),
				slog.String("price", s.Quote.Price.String()),
				slog.String("amount", s.Quote.Amount.String()))
		}
		o.metrics.RecordQuotesPlaced(len(placed))
	}
}

func (o *Orchestrator) recordFill(ctx context.Context, f domain.Fill) {
	o.metrics.RecordFill(f.Side.String())
	slog.Info("FILLED "+f.Side.String(),
		slog.Int("slot", f.Slot),
		slog.String("price", f.Price.String()),
		slog.String("amount", f.Amount.String()),
		slog.String("base_delta", f.BaseDelta.String()),
		slog.String("counter_delta", f.CounterDelta.String()))

	if o.journal == nil {
		return
	}
	if err := o.journal.RecordFill(ctx, f); err != nil {
		slog.Error("Failed to journal fill", slog.Any("error", err), slog.Int("slot", f.Slot))
	}
}

// State returns the current loop state (external read).
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Quotes returns a copy of the occupied slots on a side (external read).
func (o *Orchestrator) Quotes(side domain.Side) []domain.Slot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.book.OccupiedSlots(side)
}

// DumpState writes balances, resting quotes and state to a file (for post-mortem).
func (o *Orchestrator) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	o.mu.RLock()
	data := struct {
		State    string                     `json:"state"`
		Balances map[string]decimal.Decimal `json:"balances"`
		Bids     []domain.Slot              `json:"bids"`
		Asks     []domain.Slot              `json:"asks"`
		DumpedAt time.Time                  `json:"dumped_at"`
	}{
		State:    o.state.String(),
		Balances: o.ledger.Snapshot(),
		Bids:     o.book.OccupiedSlots(domain.SideBid),
		Asks:     o.book.OccupiedSlots(domain.SideAsk),
		DumpedAt: time.Now(),
	}
	o.mu.RUnlock()

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
