package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"mm_bot/internal/domain"
	"mm_bot/internal/infra"

	"github.com/shopspring/decimal"
)

// lockedBuffer lets the reporter goroutine and the test share a log sink.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestReporter(interval time.Duration) (*BalanceReporter, *domain.Ledger, *infra.Metrics, *lockedBuffer) {
	ledger := domain.NewLedger()
	ledger.Register("ETH", decimal.NewFromInt(10))
	ledger.Register("USD", decimal.NewFromInt(2000))
	metrics := infra.NewMetrics()

	out := &lockedBuffer{}
	r := NewBalanceReporter(ledger, metrics, interval)
	r.logger = slog.New(slog.NewJSONHandler(out, nil))
	return r, ledger, metrics, out
}

func TestBalanceReporter_Report(t *testing.T) {
	r, ledger, metrics, out := newTestReporter(time.Hour)
	ledger.Adjust("ETH", decimal.NewFromFloat(-2.5))
	metrics.RecordFill("ASK")

	report := r.Report()

	if !report.Balances["ETH"].Equal(decimal.NewFromFloat(7.5)) {
		t.Errorf("ETH = %s, want 7.5", report.Balances["ETH"])
	}
	if report.Metrics.AsksFilled != 1 {
		t.Errorf("AsksFilled = %d, want 1", report.Metrics.AsksFilled)
	}

	var line struct {
		Msg     string `json:"msg"`
		ETH     string `json:"ETH"`
		USD     string `json:"USD"`
		Metrics struct {
			AsksFilled uint64 `json:"asks_filled"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(out.String()), &line); err != nil {
		t.Fatalf("Log line is not JSON: %v (%s)", err, out.String())
	}
	if line.Msg != "BALANCES" || line.ETH != "7.5" || line.USD != "2000" {
		t.Errorf("Unexpected log line %+v", line)
	}
	if line.Metrics.AsksFilled != 1 {
		t.Errorf("Metrics group missing: %s", out.String())
	}
}

func TestBalanceReporter_ReportIsReadOnly(t *testing.T) {
	r, ledger, _, _ := newTestReporter(time.Hour)

	report := r.Report()
	report.Balances["ETH"] = decimal.NewFromInt(999)

	got, _ := ledger.Get("ETH")
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Report must not alias the ledger, ETH = %s", got)
	}
}

func TestBalanceReporter_NilMetrics(t *testing.T) {
	ledger := domain.NewLedger()
	ledger.Register("ETH", decimal.NewFromInt(1))
	r := NewBalanceReporter(ledger, nil, 0)
	r.logger = slog.New(slog.NewJSONHandler(&lockedBuffer{}, nil))

	if r.interval != 30*time.Second {
		t.Errorf("Default interval = %v", r.interval)
	}
	report := r.Report()
	if report.Metrics.CyclesRun != 0 {
		t.Error("Metrics should be empty without a metrics source")
	}
}

func TestBalanceReporter_Run(t *testing.T) {
	r, ledger, _, out := newTestReporter(10 * time.Millisecond)

	if _, ok := r.Last(); ok {
		t.Fatal("No report expected before Run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// First report is immediate
	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := r.Last(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("No immediate report")
		}
		time.Sleep(time.Millisecond)
	}

	// Later reports see ledger changes made by someone else
	ledger.Adjust("USD", decimal.NewFromInt(-500))
	deadline = time.Now().Add(time.Second)
	for {
		last, _ := r.Last()
		if last.Balances["USD"].Equal(decimal.NewFromInt(1500)) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Periodic report never picked up the new balance")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}

	if !bytes.Contains([]byte(out.String()), []byte(`"msg":"BALANCES"`)) {
		t.Error("Expected BALANCES log lines")
	}
}
