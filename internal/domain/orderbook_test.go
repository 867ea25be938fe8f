package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func level(price, count, amount float64) Level {
	return Level{
		Price:  decimal.NewFromFloat(price),
		Count:  int64(count),
		Amount: decimal.NewFromFloat(amount),
	}
}

func TestReadBestOfBook(t *testing.T) {
	levels := []Level{
		level(100, 1, 2),
		level(101, 1, -3),
		level(99, 1, 1),
	}

	best := ReadBestOfBook(levels)

	if best.Bid == nil || best.Ask == nil {
		t.Fatalf("Expected both sides, got %+v", best)
	}
	if !best.Bid.Price.Equal(decimal.NewFromInt(100)) || !best.Bid.Amount.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected best bid (100, 2), got (%s, %s)", best.Bid.Price, best.Bid.Amount)
	}
	if !best.Ask.Price.Equal(decimal.NewFromInt(101)) || !best.Ask.Amount.Equal(decimal.NewFromInt(-3)) {
		t.Errorf("Expected best ask (101, -3), got (%s, %s)", best.Ask.Price, best.Ask.Amount)
	}
}

// Comparing each ask against the best bid instead of the best ask would keep
// replacing the ask with any later level above the bid and select 102 (the
// last ask). The lowest ask is 101.
func TestReadBestOfBook_AskComparedAgainstBestAsk(t *testing.T) {
	levels := []Level{
		level(100, 1, 1),
		level(101, 2, -1),
		level(103, 1, -1),
		level(102, 4, -1),
	}

	best := ReadBestOfBook(levels)

	if best.Ask == nil {
		t.Fatal("Expected an ask")
	}
	if !best.Ask.Price.Equal(decimal.NewFromInt(101)) {
		t.Errorf("Expected lowest ask 101, got %s", best.Ask.Price)
	}
}

func TestReadBestOfBook_IgnoresZeroAmount(t *testing.T) {
	levels := []Level{
		level(500, 1, 0),
		level(100, 1, 1),
		level(90, 1, -1),
	}

	best := ReadBestOfBook(levels)

	if !best.Bid.Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Zero-amount level must not become best bid, got %s", best.Bid.Price)
	}
	if !best.Ask.Price.Equal(decimal.NewFromInt(90)) {
		t.Errorf("Zero-amount level must not become best ask, got %s", best.Ask.Price)
	}
}

func TestReadBestOfBook_MissingSides(t *testing.T) {
	tests := []struct {
		name       string
		levels     []Level
		missingBid bool
		missingAsk bool
	}{
		{"empty book", nil, true, true},
		{"only bids", []Level{level(100, 1, 1)}, false, true},
		{"only asks", []Level{level(101, 1, -1)}, true, false},
		{"only zero amounts", []Level{level(100, 1, 0)}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best := ReadBestOfBook(tt.levels)
			err := best.Require()

			var nle *NoLiquidityError
			if !errors.As(err, &nle) {
				t.Fatalf("Expected NoLiquidityError, got %v", err)
			}
			if nle.MissingBid != tt.missingBid || nle.MissingAsk != tt.missingAsk {
				t.Errorf("got missingBid=%v missingAsk=%v, want %v %v",
					nle.MissingBid, nle.MissingAsk, tt.missingBid, tt.missingAsk)
			}
		})
	}

	t.Run("both sides present", func(t *testing.T) {
		best := ReadBestOfBook([]Level{level(100, 1, 1), level(101, 1, -1)})
		if err := best.Require(); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})
}

func TestBestOfBook_Price(t *testing.T) {
	best := ReadBestOfBook([]Level{level(100, 1, 1)})

	if p, ok := best.Price(SideBid); !ok || !p.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Price(bid) = %s, %v", p, ok)
	}
	if _, ok := best.Price(SideAsk); ok {
		t.Error("Price(ask) should be absent")
	}
}

func TestParseLevels(t *testing.T) {
	t.Run("numeric triples", func(t *testing.T) {
		levels, err := ParseLevels([]byte(`[[1000.5,3,2.25],[1001,1,-0.75]]`))
		if err != nil {
			t.Fatalf("ParseLevels failed: %v", err)
		}
		if len(levels) != 2 {
			t.Fatalf("Expected 2 levels, got %d", len(levels))
		}
		if !levels[0].Price.Equal(decimal.NewFromFloat(1000.5)) || levels[0].Count != 3 {
			t.Errorf("Unexpected first level %+v", levels[0])
		}
		if !levels[1].IsAsk() {
			t.Error("Second level should be an ask")
		}
	})

	t.Run("empty array", func(t *testing.T) {
		levels, err := ParseLevels([]byte(`[]`))
		if err != nil || len(levels) != 0 {
			t.Errorf("Expected empty book, got %v, %v", levels, err)
		}
	})

	malformed := []struct {
		name    string
		payload string
	}{
		{"wrong arity", `[[1000,1]]`},
		{"non-numeric", `[["abc",1,1]]`},
		{"zero price", `[[0,1,1]]`},
		{"negative count", `[[1000,-1,1]]`},
		{"fractional count", `[[1000,1.5,1]]`},
		{"null count", `[[100,null,1]]`},
		{"null price", `[[null,1,1]]`},
		{"null amount", `[[100,1,null]]`},
		{"count overflows int64", `[[100,18446744073709551616,1]]`},
		{"error object", `{"error":"ratelimit"}`},
	}
	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLevels([]byte(tt.payload)); err == nil {
				t.Errorf("Expected error for %s", tt.payload)
			}
		})
	}
}

func TestLevel_UnmarshalJSONCountBounds(t *testing.T) {
	var lv Level
	if err := json.Unmarshal([]byte(`[100,9223372036854775807,1]`), &lv); err != nil {
		t.Fatalf("Largest int64 count should decode: %v", err)
	}
	if lv.Count != math.MaxInt64 {
		t.Errorf("Count = %d, want %d", lv.Count, int64(math.MaxInt64))
	}

	err := json.Unmarshal([]byte(`[100,9223372036854775808,1]`), &lv)
	if !errors.Is(err, ErrMalformedLevel) {
		t.Errorf("Expected ErrMalformedLevel for int64 overflow, got %v", err)
	}

	err = json.Unmarshal([]byte(`[100, null ,1]`), &lv)
	if !errors.Is(err, ErrMalformedLevel) {
		t.Errorf("Expected ErrMalformedLevel for null count, got %v", err)
	}
}
