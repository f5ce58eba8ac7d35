package ingest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmittakarin8/solflow-pipeline/internal/domain"
)

// wireTrade is the on-the-wire shape a producer endpoint sends: one JSON
// object per message, matching the normalized TradeEvent fields. Decoded
// directly into domain.TradeEvent since both sides already agree on the
// field set; a real balance-delta extractor (spec §1 "out of scope") would
// sit upstream of this decode.
type wireTrade struct {
	Timestamp     int64   `json:"timestamp"`
	Mint          string  `json:"mint"`
	Direction     string  `json:"direction"`
	SolAmount     float64 `json:"sol_amount"`
	TokenAmount   float64 `json:"token_amount"`
	TokenDecimals uint8   `json:"token_decimals"`
	UserAccount   string  `json:"user_account"`
	SourceProgram string  `json:"source_program"`
}

func (w wireTrade) toDomain() domain.TradeEvent {
	return domain.TradeEvent{
		Timestamp:     w.Timestamp,
		Mint:          w.Mint,
		Direction:     domain.NormalizeDirection(w.Direction),
		SolAmount:     w.SolAmount,
		TokenAmount:   w.TokenAmount,
		TokenDecimals: w.TokenDecimals,
		UserAccount:   w.UserAccount,
		SourceProgram: w.SourceProgram,
	}
}

// WSProducer is a TradeSource that subscribes to a single websocket
// endpoint and pushes decoded trade events into a Loop via Submit.
// Grounded on the reconnect-with-backoff worker loop pattern used by the
// pack's Binance depth-stream worker: dial, read until error, sleep, retry.
type WSProducer struct {
	endpoint  string
	authToken string
	dialer    *websocket.Dialer
	loop      *Loop

	retryDelay time.Duration
}

// NewWSProducer returns a producer that will push decoded events into loop.
func NewWSProducer(endpoint, authToken string, loop *Loop) *WSProducer {
	return &WSProducer{
		endpoint:   endpoint,
		authToken:  authToken,
		dialer:     websocket.DefaultDialer,
		loop:       loop,
		retryDelay: 5 * time.Second,
	}
}

// Events is unused by WSProducer (it pushes directly into the Loop's
// bounded queue via Submit) but is kept to satisfy the TradeSource
// contract for producers that prefer to be drained externally.
func (p *WSProducer) Events() <-chan domain.TradeEvent { return nil }

// Run dials the endpoint and reads messages until ctx is canceled,
// reconnecting with a fixed backoff on any read/dial error.
func (p *WSProducer) Run(ctx context.Context) error {
	header := http.Header{}
	if p.authToken != "" {
		header.Set("Authorization", "Bearer "+p.authToken)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, _, err := p.dialer.DialContext(ctx, p.endpoint, header)
		if err != nil {
			log.Printf("[WARN] producer dial failed for %s: %v, retrying in %s", p.endpoint, err, p.retryDelay)
			if !sleepOrDone(ctx, p.retryDelay) {
				return ctx.Err()
			}
			continue
		}

		p.readLoop(ctx, conn)
		conn.Close()

		if !sleepOrDone(ctx, p.retryDelay) {
			return ctx.Err()
		}
	}
}

func (p *WSProducer) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WARN] producer read error on %s: %v", p.endpoint, err)
			return
		}

		var w wireTrade
		if err := json.Unmarshal(message, &w); err != nil {
			// MalformedTrade per spec §7: dropped before reaching the engine.
			continue
		}
		p.loop.Submit(w.toDomain())
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
