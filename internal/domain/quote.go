package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side of a resting quote.
type Side int

const (
	SideBid Side = iota + 1
	SideAsk
)

// String returns the string representation of Side
func (s Side) String() string {
	switch s {
	case SideBid:
		return "BID"
	case SideAsk:
		return "ASK"
	default:
		return "UNKNOWN"
	}
}

// Quote is a synthetic resting order. Amount is signed: positive for a bid,
// negative for an ask.
type Quote struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// Side derives the side from the sign of Amount.
func (q Quote) Side() Side {
	if q.Amount.IsNegative() {
		return SideAsk
	}
	return SideBid
}

// Fill is the simulated execution of one resting quote.
type Fill struct {
	Side         Side
	Slot         int
	Price        decimal.Decimal
	Amount       decimal.Decimal // signed, as quoted
	BaseDelta    decimal.Decimal
	CounterDelta decimal.Decimal
	Time         time.Time
}
