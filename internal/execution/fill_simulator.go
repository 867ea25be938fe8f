package execution

import (
	"fmt"
	"time"

	"mm_bot/internal/domain"

	"github.com/shopspring/decimal"
)

// FillSimulator is paper execution for resting quotes: it compares each
// occupied slot with the latest touch, books the fill in the ledger and frees
// the slot. There are no partial fills.
//
//   - a bid fills when quote.price > bestBid.price
//   - an ask fills when quote.price < bestAsk.price
//
// Both cases apply base += amount and counter -= amount*price; the signed
// amount makes an ask debit base and credit counter.
type FillSimulator struct {
	ledger  *domain.Ledger
	base    string
	counter string
	now     func() time.Time
}

// NewFillSimulator creates a simulator booking into ledger for the base/counter pair.
func NewFillSimulator(ledger *domain.Ledger, base, counter string) *FillSimulator {
	return &FillSimulator{
		ledger:  ledger,
		base:    base,
		counter: counter,
		now:     time.Now,
	}
}

// Simulate resolves every marketable quote in book against best.
// Each slot's outcome depends only on its own price, so evaluation order does
// not matter. A missing side or an unregistered asset fails before any slot
// or balance is touched.
func (s *FillSimulator) Simulate(book *domain.QuoteBook, best domain.BestOfBook) ([]domain.Fill, error) {
	if err := best.Require(); err != nil {
		return nil, err
	}
	for _, asset := range []string{s.base, s.counter} {
		if !s.ledger.HasAsset(asset) {
			return nil, &domain.UnknownAssetError{Asset: asset}
		}
	}

	var fills []domain.Fill
	for _, side := range []domain.Side{domain.SideBid, domain.SideAsk} {
		touch, _ := best.Price(side)
		for _, slot := range book.OccupiedSlots(side) {
			if !marketable(side, slot.Quote, touch) {
				continue
			}
			fill, err := s.book(side, slot)
			if err != nil {
				return fills, fmt.Errorf("fill %s slot %d: %w", side, slot.Index, err)
			}
			book.ClearSlot(side, slot.Index)
			fills = append(fills, fill)
		}
	}
	return fills, nil
}

// marketable reports whether the market has crossed the quote.
func marketable(side domain.Side, q domain.Quote, touch decimal.Decimal) bool {
	if side == domain.SideBid {
		return q.Price.GreaterThan(touch)
	}
	return q.Price.LessThan(touch)
}

func (s *FillSimulator) book(side domain.Side, slot domain.Slot) (domain.Fill, error) {
	q := slot.Quote
	baseDelta := q.Amount
	counterDelta := q.Amount.Mul(q.Price).Neg()

	err := s.ledger.Apply(
		domain.Delta{Asset: s.base, Amount: baseDelta},
		domain.Delta{Asset: s.counter, Amount: counterDelta},
	)
	if err != nil {
		return domain.Fill{}, err
	}

	return domain.Fill{
		Side:         side,
		Slot:         slot.Index,
		Price:        q.Price,
		Amount:       q.Amount,
		BaseDelta:    baseDelta,
		CounterDelta: counterDelta,
		Time:         s.now(),
	}, nil
}
