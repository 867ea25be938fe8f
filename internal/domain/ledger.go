package domain

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger holds per-asset balances.
// An asset exists only after Register (or Set); Get, Adjust and Apply on any
// other symbol fail with *UnknownAssetError and leave the ledger untouched.
// Balances may go negative: no solvency check is enforced.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

// Delta is a signed change to one asset balance.
type Delta struct {
	Asset  string
	Amount decimal.Decimal
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]decimal.Decimal),
	}
}

// Register creates (or overwrites) a balance entry, making the asset known.
func (l *Ledger) Register(asset string, initial decimal.Decimal) {
	l.Set(asset, initial)
}

// Set overwrites the stored amount. This is the registration path, so it
// accepts unknown assets.
func (l *Ledger) Set(asset string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[asset] = amount
}

// HasAsset reports whether the asset was registered.
func (l *Ledger) HasAsset(asset string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.balances[asset]
	return ok
}

// Get returns the balance of a known asset.
func (l *Ledger) Get(asset string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	amount, ok := l.balances[asset]
	if !ok {
		return decimal.Zero, &UnknownAssetError{Asset: asset}
	}
	return amount, nil
}

// Adjust adds delta to a known asset.
func (l *Ledger) Adjust(asset string, delta decimal.Decimal) error {
	return l.Apply(Delta{Asset: asset, Amount: delta})
}

// Apply adds every delta in one step. All assets are checked before any
// balance changes, so either all deltas land or none do.
func (l *Ledger) Apply(deltas ...Delta) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, d := range deltas {
		if _, ok := l.balances[d.Asset]; !ok {
			return &UnknownAssetError{Asset: d.Asset}
		}
	}
	for _, d := range deltas {
		l.balances[d.Asset] = l.balances[d.Asset].Add(d.Amount)
	}
	return nil
}

// KnownAssets returns the registered symbols, sorted.
func (l *Ledger) KnownAssets() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	assets := make([]string, 0, len(l.balances))
	for asset := range l.balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Snapshot returns a copy of all balances (for display and state dump).
func (l *Ledger) Snapshot() map[string]decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]decimal.Decimal, len(l.balances))
	for k, v := range l.balances {
		result[k] = v
	}
	return result
}

// Reset forgets every asset.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = make(map[string]decimal.Decimal)
}
