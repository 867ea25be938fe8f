package infra

import (
	"math"
	"time"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 60 * time.Second
)

// CalculateBackoff returns the reconnect delay for a retry count:
// 1s, 2s, 4s ... capped at 60s.
func CalculateBackoff(retryCount int) time.Duration {
	// Cap retry count to prevent overflow (2^6 = 64 seconds > max 60s)
	if retryCount > 6 {
		return reconnectMaxDelay
	}
	if retryCount < 0 {
		retryCount = 0
	}
	delay := reconnectBaseDelay * time.Duration(math.Pow(2, float64(retryCount)))
	if delay > reconnectMaxDelay {
		delay = reconnectMaxDelay
	}
	return delay
}
