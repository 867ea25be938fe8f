package bitfinex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mm_bot/internal/domain"
	"mm_bot/internal/infra"

	"github.com/gorilla/websocket"
)

// BookWorker keeps a local copy of a Bitfinex order book from the public
// websocket "book" channel. The quoting loop polls it through Snapshot, so it
// is a drop-in replacement for the REST client.
type BookWorker struct {
	url       string
	symbol    string
	precision string
	metrics   *infra.Metrics
	backoff   func(retryCount int) time.Duration

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	bookMu  sync.RWMutex
	chanID  int64
	hasBook bool
	bids    map[string]domain.Level // keyed by canonical price string
	asks    map[string]domain.Level
}

// NewBookWorker creates a worker for symbol (e.g. "tETHUSD") at precision (e.g. "P0").
// metrics may be nil.
func NewBookWorker(url, symbol, precision string, metrics *infra.Metrics) *BookWorker {
	return &BookWorker{
		url:       url,
		symbol:    symbol,
		precision: precision,
		metrics:   metrics,
		backoff:   infra.CalculateBackoff,
		bids:      make(map[string]domain.Level),
		asks:      make(map[string]domain.Level),
	}
}

// Connect starts the connection loop in the background.
func (w *BookWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *BookWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Bitfinex connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			if !w.waitRetry(ctx, &retryCount) {
				return
			}
			continue
		}

		connCtx, stopPing := context.WithCancel(ctx)
		go w.pingLoop(connCtx)
		gotBook := w.readLoop(ctx)
		stopPing()

		// Only a connection that delivered a book counts as healthy; an
		// endpoint that drops us right after the dial keeps backing off.
		if gotBook {
			retryCount = 0
			continue
		}
		if !w.waitRetry(ctx, &retryCount) {
			return
		}
	}
}

// waitRetry sleeps for the backoff of *retryCount and advances it.
// It returns false if ctx ends first.
func (w *BookWorker) waitRetry(ctx context.Context, retryCount *int) bool {
	delay := w.backoff(*retryCount)
	*retryCount++
	if *retryCount > maxRetries {
		*retryCount = 0
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func (w *BookWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	w.setConnectedGauge(true)

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	slog.Info("Bitfinex Connected", slog.String("symbol", w.symbol), slog.String("prec", w.precision))
	return nil
}

func (w *BookWorker) subscribe() error {
	req := subscribeRequest{
		Event:   "subscribe",
		Channel: channelBook,
		Symbol:  w.symbol,
		Prec:    w.precision,
	}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *BookWorker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			b, _ := json.Marshal(pingRequest{Event: "ping", CID: t.UnixMilli()})
			if err := w.threadSafeWrite(websocket.TextMessage, b); err != nil {
				slog.Debug("Bitfinex ping failed", slog.Any("error", err))
			}
		}
	}
}

func (w *BookWorker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

// readLoop consumes frames until the connection fails. It reports whether a
// book snapshot was received on this connection.
func (w *BookWorker) readLoop(ctx context.Context) (gotBook bool) {
	for {
		select {
		case <-ctx.Done():
			return gotBook
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return gotBook
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("Bitfinex read failed", slog.Any("error", err))
			w.closeConnection()
			return gotBook
		}
		if err := w.handleMessage(msg); err != nil {
			slog.Warn("Bitfinex message rejected", slog.Any("error", err))
		}
		if !gotBook {
			gotBook = w.hasSnapshot()
		}
	}
}

func (w *BookWorker) hasSnapshot() bool {
	w.bookMu.RLock()
	defer w.bookMu.RUnlock()
	return w.hasBook
}

// handleMessage applies one websocket frame to the local book.
func (w *BookWorker) handleMessage(msg []byte) error {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return nil
	}

	if msg[0] == '{' {
		return w.handleEvent(msg)
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(msg, &frame); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if len(frame) < 2 {
		return nil
	}

	var chanID int64
	if err := json.Unmarshal(frame[0], &chanID); err != nil {
		return fmt.Errorf("decode channel id: %w", err)
	}

	w.bookMu.Lock()
	defer w.bookMu.Unlock()

	if w.chanID == 0 || chanID != w.chanID {
		return nil
	}
	payload := bytes.TrimSpace(frame[1])
	if string(payload) == heartbeat {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	// Snapshot: array of triples (possibly empty). Update: a single triple.
	if len(entries) == 0 || bytes.HasPrefix(bytes.TrimSpace(entries[0]), []byte("[")) {
		levels, err := domain.ParseLevels(payload)
		if err != nil {
			return err
		}
		w.bids = make(map[string]domain.Level, len(levels))
		w.asks = make(map[string]domain.Level, len(levels))
		for _, lv := range levels {
			w.applyLevel(lv)
		}
		w.hasBook = true
		return nil
	}

	var lv domain.Level
	if err := json.Unmarshal(payload, &lv); err != nil {
		return err
	}
	w.applyLevel(lv)
	return nil
}

func (w *BookWorker) handleEvent(msg []byte) error {
	var ev eventMessage
	if err := json.Unmarshal(msg, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	switch ev.Event {
	case "subscribed":
		if ev.Channel == channelBook {
			w.bookMu.Lock()
			w.chanID = ev.ChanID
			w.bookMu.Unlock()
			slog.Info("Bitfinex book subscribed", slog.Int64("chan_id", ev.ChanID), slog.String("symbol", ev.Symbol))
		}
	case "error":
		return fmt.Errorf("bitfinex error %d: %s", ev.Code, ev.Msg)
	case "info":
		slog.Debug("Bitfinex info", slog.Int("version", ev.Version), slog.Int("code", ev.Code))
	}
	return nil
}

// applyLevel upserts a level with count > 0 and deletes the price otherwise
// (amount 1 removes a bid, amount -1 an ask). Must be called with bookMu held.
func (w *BookWorker) applyLevel(lv domain.Level) {
	key := lv.Price.String()
	if lv.Count > 0 {
		switch {
		case lv.IsBid():
			w.bids[key] = lv
			delete(w.asks, key)
		case lv.IsAsk():
			w.asks[key] = lv
			delete(w.bids, key)
		}
		return
	}

	switch {
	case lv.IsBid():
		delete(w.bids, key)
	case lv.IsAsk():
		delete(w.asks, key)
	}
}

// Snapshot returns a copy of the local book. It fails until a book snapshot
// has been received on the current connection.
func (w *BookWorker) Snapshot(ctx context.Context) ([]domain.Level, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.SnapshotUnavailableError{Source: "websocket", Err: err}
	}

	w.bookMu.RLock()
	defer w.bookMu.RUnlock()

	if !w.hasBook {
		return nil, &domain.SnapshotUnavailableError{Source: "websocket", Err: domain.ErrNoSnapshot}
	}

	levels := make([]domain.Level, 0, len(w.bids)+len(w.asks))
	for _, lv := range w.bids {
		levels = append(levels, lv)
	}
	for _, lv := range w.asks {
		levels = append(levels, lv)
	}
	return levels, nil
}

func (w *BookWorker) closeConnection() {
	w.mu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
	w.mu.Unlock()

	// A new subscription delivers a fresh snapshot; the old book is stale.
	w.bookMu.Lock()
	w.hasBook = false
	w.chanID = 0
	w.bookMu.Unlock()

	w.setConnectedGauge(false)
}

func (w *BookWorker) setConnectedGauge(connected bool) {
	if w.metrics != nil {
		w.metrics.SetFeedConnected(connected)
	}
}

// Disconnect stops the connection loop and closes the socket.
func (w *BookWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}

// IsConnected reports whether the socket is open.
func (w *BookWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}
