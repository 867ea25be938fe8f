package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Level is one order-book price level as published by the feed:
// [price, count, amount]. A positive amount is a bid, a negative one an ask,
// and a zero amount belongs to neither side.
type Level struct {
	Price  decimal.Decimal `json:"price"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// IsBid reports whether the level is on the buy side.
func (l Level) IsBid() bool {
	return l.Amount.IsPositive()
}

// IsAsk reports whether the level is on the sell side.
func (l Level) IsAsk() bool {
	return l.Amount.IsNegative()
}

// UnmarshalJSON decodes the wire triple [price, count, amount]. Every field
// must be a number; null is rejected and count must fit in an int64.
func (l *Level) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedLevel, err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformedLevel, len(raw))
	}

	var fields [3]decimal.Decimal
	for i, r := range raw {
		if string(bytes.TrimSpace(r)) == "null" {
			return fmt.Errorf("%w: null field %d", ErrMalformedLevel, i)
		}
		if err := fields[i].UnmarshalJSON(r); err != nil {
			return fmt.Errorf("%w: field %d: %v", ErrMalformedLevel, i, err)
		}
	}
	price, count, amount := fields[0], fields[1], fields[2]

	if !price.IsPositive() {
		return fmt.Errorf("%w: non-positive price %s", ErrMalformedLevel, price)
	}
	if count.IsNegative() || !count.Equal(count.Truncate(0)) || count.GreaterThan(maxCount) {
		return fmt.Errorf("%w: invalid count %s", ErrMalformedLevel, count)
	}

	l.Price = price
	l.Count = count.IntPart()
	l.Amount = amount
	return nil
}

var maxCount = decimal.NewFromInt(math.MaxInt64)

// ParseLevels decodes a JSON array of [price, count, amount] triples.
// One malformed entry rejects the whole payload.
func ParseLevels(data []byte) ([]Level, error) {
	var levels []Level
	if err := json.Unmarshal(data, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// BestOfBook is the touch of the book. Either side may be absent.
type BestOfBook struct {
	Bid *Level
	Ask *Level
}

// ReadBestOfBook scans the levels once and picks the highest-priced bid and
// the lowest-priced ask. Each ask is compared against the current best ask.
// Zero-amount levels are ignored.
func ReadBestOfBook(levels []Level) BestOfBook {
	var best BestOfBook
	for i := range levels {
		lv := levels[i]
		switch {
		case lv.IsBid():
			if best.Bid == nil || lv.Price.GreaterThan(best.Bid.Price) {
				best.Bid = &lv
			}
		case lv.IsAsk():
			if best.Ask == nil || lv.Price.LessThan(best.Ask.Price) {
				best.Ask = &lv
			}
		}
	}
	return best
}

// Require returns a *NoLiquidityError unless both sides are present.
func (b BestOfBook) Require() error {
	if b.Bid != nil && b.Ask != nil {
		return nil
	}
	return &NoLiquidityError{MissingBid: b.Bid == nil, MissingAsk: b.Ask == nil}
}

// Price returns the touch price for a side. ok is false when the side is absent.
func (b BestOfBook) Price(side Side) (price decimal.Decimal, ok bool) {
	lv := b.Bid
	if side == SideAsk {
		lv = b.Ask
	}
	if lv == nil {
		return decimal.Zero, false
	}
	return lv.Price, true
}
