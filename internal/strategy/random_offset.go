package strategy

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// amountPlaces is the precision kept on generated amounts. Truncation (not
// rounding) keeps values inside [min, max).
const amountPlaces = 8

// RandomOffsetQuoter draws prices uniformly from
// [best*(1-p), best*(1+p)) with p = percent/100, and amounts uniformly from
// [minAmount, maxAmount).
type RandomOffsetQuoter struct {
	spread    decimal.Decimal // p
	minAmount decimal.Decimal
	maxAmount decimal.Decimal
	rand      *rand.Rand
}

// NewRandomOffsetQuoter creates a quoter seeded from the clock.
func NewRandomOffsetQuoter(percent, minAmount, maxAmount float64) (*RandomOffsetQuoter, error) {
	return NewRandomOffsetQuoterWithSource(percent, minAmount, maxAmount, rand.NewSource(time.Now().UnixNano()))
}

// NewRandomOffsetQuoterWithSource creates a quoter with an explicit random source.
func NewRandomOffsetQuoterWithSource(percent, minAmount, maxAmount float64, src rand.Source) (*RandomOffsetQuoter, error) {
	if percent < 0 || percent >= 100 {
		return nil, fmt.Errorf("random percent must be in [0, 100), got %v", percent)
	}
	if minAmount <= 0 || maxAmount <= minAmount {
		return nil, fmt.Errorf("amount range must satisfy 0 < min < max, got [%v, %v)", minAmount, maxAmount)
	}
	return &RandomOffsetQuoter{
		spread:    decimal.NewFromFloat(percent).Div(decimal.NewFromInt(100)),
		minAmount: decimal.NewFromFloat(minAmount),
		maxAmount: decimal.NewFromFloat(maxAmount),
		rand:      rand.New(src),
	}, nil
}

// Price implements Quoter.
func (q *RandomOffsetQuoter) Price(best decimal.Decimal) decimal.Decimal {
	// factor = (1 - p) + 2p*r, r in [0, 1)
	r := decimal.NewFromFloat(q.rand.Float64())
	factor := decimal.NewFromInt(1).Sub(q.spread).Add(q.spread.Mul(decimal.NewFromInt(2)).Mul(r))
	return best.Mul(factor)
}

// Amount implements Quoter.
func (q *RandomOffsetQuoter) Amount() decimal.Decimal {
	r := decimal.NewFromFloat(q.rand.Float64())
	return q.minAmount.Add(q.maxAmount.Sub(q.minAmount).Mul(r)).Truncate(amountPlaces)
}
