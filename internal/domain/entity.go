package domain

import (
	"time"
)

// FillRecord is the persisted form of a Fill in the fill journal.
// Decimals are stored as strings to keep exact values in SQLite.
type FillRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Side         string    `gorm:"index" json:"side"`
	Slot         int       `json:"slot"`
	Price        string    `json:"price"`
	Amount       string    `json:"amount"`
	BaseDelta    string    `json:"base_delta"`
	CounterDelta string    `json:"counter_delta"`
	FilledAt     time.Time `gorm:"index" json:"filled_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewFillRecord converts a Fill into its journal row.
func NewFillRecord(f Fill) *FillRecord {
	return &FillRecord{
		Side:         f.Side.String(),
		Slot:         f.Slot,
		Price:        f.Price.String(),
		Amount:       f.Amount.String(),
		BaseDelta:    f.BaseDelta.String(),
		CounterDelta: f.CounterDelta.String(),
		FilledAt:     f.Time,
	}
}
