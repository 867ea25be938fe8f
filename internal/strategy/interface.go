package strategy

import "github.com/shopspring/decimal"

// Quoter decides the price and size of a new synthetic quote.
// It is called synchronously by the Orchestrator, never concurrently.
type Quoter interface {
	// Price returns a quote price derived from the touch price of its side.
	Price(best decimal.Decimal) decimal.Decimal
	// Amount returns the unsigned quote size; the quote book applies the sign.
	Amount() decimal.Decimal
}
