package domain

import "github.com/shopspring/decimal"

// DefaultNumOrders is the number of concurrent resting quotes per side.
const DefaultNumOrders = 5

// Slot is an occupied position in the quote book.
type Slot struct {
	Index int   `json:"index"`
	Quote Quote `json:"quote"`
}

// QuoteBook is a fixed-capacity set of resting quote slots per side.
// A slot is either empty (nil) or holds exactly one quote; occupied slots are
// never overwritten.
type QuoteBook struct {
	bids []*Quote
	asks []*Quote
}

// NewQuoteBook creates a book with n empty slots per side.
func NewQuoteBook(n int) *QuoteBook {
	if n <= 0 {
		panic("QuoteBook: slot count must be positive")
	}
	return &QuoteBook{
		bids: make([]*Quote, n),
		asks: make([]*Quote, n),
	}
}

// Size returns the number of slots per side.
func (b *QuoteBook) Size() int {
	return len(b.bids)
}

func (b *QuoteBook) slots(side Side) []*Quote {
	if side == SideAsk {
		return b.asks
	}
	return b.bids
}

// PlaceIfEmpty stores q in the slot only if the slot is empty.
// It reports whether the quote was placed.
func (b *QuoteBook) PlaceIfEmpty(side Side, index int, q Quote) bool {
	slots := b.slots(side)
	if index < 0 || index >= len(slots) || slots[index] != nil {
		return false
	}
	slots[index] = &q
	return true
}

// RefreshSide fills every empty slot on a side with a quote priced by
// priceFn(bestPrice) and sized by amountFn(). The amount is made positive for
// bids and negative for asks. Occupied slots are left alone, so repeated
// calls are idempotent until a slot is cleared.
func (b *QuoteBook) RefreshSide(side Side, bestPrice decimal.Decimal,
	priceFn func(decimal.Decimal) decimal.Decimal, amountFn func() decimal.Decimal) []Slot {

	var placed []Slot
	for i, q := range b.slots(side) {
		if q != nil {
			continue
		}
		amount := amountFn().Abs()
		if side == SideAsk {
			amount = amount.Neg()
		}
		quote := Quote{Price: priceFn(bestPrice), Amount: amount}
		if b.PlaceIfEmpty(side, i, quote) {
			placed = append(placed, Slot{Index: i, Quote: quote})
		}
	}
	return placed
}

// ClearSlot empties one slot.
func (b *QuoteBook) ClearSlot(side Side, index int) {
	slots := b.slots(side)
	if index >= 0 && index < len(slots) {
		slots[index] = nil
	}
}

// ClearAll empties every slot on both sides and returns how many were occupied.
func (b *QuoteBook) ClearAll() int {
	cleared := 0
	for _, slots := range [][]*Quote{b.bids, b.asks} {
		for i := range slots {
			if slots[i] != nil {
				cleared++
				slots[i] = nil
			}
		}
	}
	return cleared
}

// OccupiedSlots returns copies of the occupied slots on a side, by index.
func (b *QuoteBook) OccupiedSlots(side Side) []Slot {
	var out []Slot
	for i, q := range b.slots(side) {
		if q != nil {
			out = append(out, Slot{Index: i, Quote: *q})
		}
	}
	return out
}

// Count returns the number of occupied slots on a side.
func (b *QuoteBook) Count(side Side) int {
	n := 0
	for _, q := range b.slots(side) {
		if q != nil {
			n++
		}
	}
	return n
}
