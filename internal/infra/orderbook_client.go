package infra

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mm_bot/internal/domain"
)

// OrderbookClient polls a public REST order-book endpoint returning a JSON
// array of [price, count, amount] triples.
type OrderbookClient struct {
	url        string
	retries    int
	retryDelay time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOrderbookClient builds the client for {baseURL}/{symbol}/{precision}.
// timeout bounds each HTTP request; retries is the number of extra attempts.
func NewOrderbookClient(baseURL, symbol, precision string, retries int, timeout time.Duration) *OrderbookClient {
	url := strings.TrimSuffix(baseURL, "/") + "/" + symbol
	if precision != "" {
		url += "/" + precision
	}
	return &OrderbookClient{
		url:        url,
		retries:    retries,
		retryDelay: 250 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "orderbook_client"),
	}
}

// URL returns the polled endpoint.
func (c *OrderbookClient) URL() string {
	return c.url
}

// Snapshot fetches the order book, retrying retriable failures with
// exponential backoff while ctx allows. Every failure is returned as a
// *domain.SnapshotUnavailableError.
func (c *OrderbookClient) Snapshot(ctx context.Context) ([]domain.Level, error) {
	var lastErr error
	for i := 0; i <= c.retries; i++ {
		if i > 0 {
			// Exponential backoff: base, 2*base, 4*base ...
			delay := c.retryDelay << uint(i-1)
			select {
			case <-ctx.Done():
				return nil, &domain.SnapshotUnavailableError{Source: "rest", Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		levels, err := c.doFetch(ctx)
		if err == nil {
			return levels, nil
		}
		lastErr = err
		c.logger.Warn("Order book fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))

		if !domain.IsRetriable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, &domain.SnapshotUnavailableError{Source: "rest", Err: lastErr}
}

func (c *OrderbookClient) doFetch(ctx context.Context) ([]domain.Level, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, domain.NewFatalNetworkError("request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("fetch", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("read", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, domain.NewNetworkError("fetch", statusErr)
		}
		return nil, domain.NewFatalNetworkError("fetch", statusErr)
	}

	levels, err := domain.ParseLevels(body)
	if err != nil {
		return nil, domain.NewFatalNetworkError("decode", err)
	}
	return levels, nil
}
