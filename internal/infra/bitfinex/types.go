package bitfinex

import "time"

const (
	maxRetries   = 10
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second // Bitfinex sends a heartbeat every 15s

	channelBook = "book"
	heartbeat   = `"hb"`
)

// subscribeRequest is the book channel subscription.
type subscribeRequest struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
	Prec    string `json:"prec,omitempty"`
}

// eventMessage covers every JSON-object message (info, subscribed, error, pong).
type eventMessage struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	ChanID  int64  `json:"chanId"`
	Symbol  string `json:"symbol"`
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Version int    `json:"version"`
}

type pingRequest struct {
	Event string `json:"event"`
	CID   int64  `json:"cid"`
}
