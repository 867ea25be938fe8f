package domain

import "context"

// SnapshotSource delivers the current order book. Implementations must honor
// ctx cancellation so a hung fetch cannot stall the quoting loop.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]Level, error)
}

// FeedWorker is a SnapshotSource backed by a long-lived connection.
type FeedWorker interface {
	SnapshotSource
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// FillJournal receives every simulated fill (audit trail only).
type FillJournal interface {
	RecordFill(ctx context.Context, fill Fill) error
}
