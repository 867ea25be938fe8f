package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// UnknownAssetError is returned by every balance operation on an asset that
// was never registered. Balances are never created implicitly by a mutation.
type UnknownAssetError struct {
	Asset string
}

func (e *UnknownAssetError) Error() string {
	return "unknown asset " + e.Asset
}

func (e *UnknownAssetError) IsRetriable() bool {
	return false
}

// Is lets callers match with errors.Is(err, ErrUnknownAsset).
func (e *UnknownAssetError) Is(target error) bool {
	return target == ErrUnknownAsset
}

// SnapshotUnavailableError means no usable order book was obtained this cycle
// (transport failure, timeout, bad status, malformed payload).
type SnapshotUnavailableError struct {
	Source string // "rest", "websocket"
	Err    error
}

func (e *SnapshotUnavailableError) Error() string {
	return "snapshot unavailable [" + e.Source + "]: " + e.Err.Error()
}

func (e *SnapshotUnavailableError) IsRetriable() bool {
	return true
}

func (e *SnapshotUnavailableError) Unwrap() error {
	return e.Err
}

// NoLiquidityError means the snapshot was valid but one side of the book is empty.
type NoLiquidityError struct {
	MissingBid bool
	MissingAsk bool
}

func (e *NoLiquidityError) Error() string {
	switch {
	case e.MissingBid && e.MissingAsk:
		return "no liquidity: book has no bids and no asks"
	case e.MissingBid:
		return "no liquidity: book has no bids"
	default:
		return "no liquidity: book has no asks"
	}
}

func (e *NoLiquidityError) IsRetriable() bool {
	return true
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "fetch", "dial", "read")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrUnknownAsset matches any *UnknownAssetError.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrNoSnapshot is returned by a feed that has not received a book yet.
	ErrNoSnapshot = errors.New("no order book received yet")

	// ErrMalformedLevel is returned when a book entry is not a [price, count, amount] triple.
	ErrMalformedLevel = errors.New("malformed order book level")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
