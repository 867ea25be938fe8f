package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety: the quoting loop writes, the
// balance reporter reads.
type Metrics struct {
	// Counters
	cyclesRun        atomic.Uint64
	snapshotFailures atomic.Uint64
	quotesPlaced     atomic.Uint64
	bidsFilled       atomic.Uint64
	asksFilled       atomic.Uint64
	quotesCancelled  atomic.Uint64

	// Snapshot fetch latency
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	feedConnected atomic.Int32 // 1 = connected (websocket feed only)
}

// NewMetrics creates a zeroed metrics set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordCycle records a completed quoting cycle and its fetch latency.
func (m *Metrics) RecordCycle(fetchLatency time.Duration) {
	m.cyclesRun.Add(1)
	m.latencySumNs.Add(int64(fetchLatency))
	m.latencyCount.Add(1)
}

// RecordSnapshotFailure records a skipped cycle.
func (m *Metrics) RecordSnapshotFailure() {
	m.snapshotFailures.Add(1)
}

// RecordQuotesPlaced adds n newly placed quotes.
func (m *Metrics) RecordQuotesPlaced(n int) {
	m.quotesPlaced.Add(uint64(n))
}

// RecordFill records one filled quote on the given side ("BID" or "ASK").
func (m *Metrics) RecordFill(side string) {
	if side == "ASK" {
		m.asksFilled.Add(1)
		return
	}
	m.bidsFilled.Add(1)
}

// RecordCancelled adds n cancelled quotes.
func (m *Metrics) RecordCancelled(n int) {
	m.quotesCancelled.Add(uint64(n))
}

// SetFeedConnected sets the feed connection gauge.
func (m *Metrics) SetFeedConnected(connected bool) {
	if connected {
		m.feedConnected.Store(1)
	} else {
		m.feedConnected.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	CyclesRun        uint64
	SnapshotFailures uint64
	QuotesPlaced     uint64
	BidsFilled       uint64
	AsksFilled       uint64
	QuotesCancelled  uint64
	AvgFetchLatency  time.Duration
	FeedConnected    bool
	Timestamp        time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		CyclesRun:        m.cyclesRun.Load(),
		SnapshotFailures: m.snapshotFailures.Load(),
		QuotesPlaced:     m.quotesPlaced.Load(),
		BidsFilled:       m.bidsFilled.Load(),
		AsksFilled:       m.asksFilled.Load(),
		QuotesCancelled:  m.quotesCancelled.Load(),
		AvgFetchLatency:  time.Duration(avgLatency),
		FeedConnected:    m.feedConnected.Load() == 1,
		Timestamp:        time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.cyclesRun.Store(0)
	m.snapshotFailures.Store(0)
	m.quotesPlaced.Store(0)
	m.bidsFilled.Store(0)
	m.asksFilled.Store(0)
	m.quotesCancelled.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.feedConnected.Store(0)
}
