package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Tick is one live price update from the ticker channel.
type Tick struct {
	ProductID string
	Price     float64
	Time      time.Time
}

// StreamClient manages streaming from the Coinbase public websocket feed.
type StreamClient struct {
	FeedURL string
	dialer  *websocket.Dialer
}

// NewStreamClient builds a websocket client against the public feed host.
func NewStreamClient() *StreamClient {
	return &StreamClient{
		FeedURL: "wss://ws-feed.exchange.coinbase.com",
		dialer:  websocket.DefaultDialer,
	}
}

type subscribeMessage struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// SubscribeTicker subscribes to the ticker channel for the given products
// and pushes parsed ticks into a channel. It returns the channel and a stop
// function.
func (c *StreamClient) SubscribeTicker(ctx context.Context, productIDs []string) (<-chan Tick, func(), error) {
	conn, _, err := c.dialer.DialContext(ctx, c.FeedURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial coinbase ws: %w", err)
	}

	sub := subscribeMessage{
		Type:       "subscribe",
		ProductIDs: productIDs,
		Channels:   []string{"ticker"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("subscribe coinbase ticker: %w", err)
	}

	out := make(chan Tick, 100)
	done := make(chan struct{})

	var once sync.Once
	stop := func() {
		once.Do(func() {
			// Ignore errors; connection may already be closed.
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		})
	}

	// ReadMessage has no deadline; closing the connection is the only way
	// to unblock the reader when the context is cancelled.
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		stop()
	}()

	// Only the reader closes out, so a tick mid-send can never race a
	// caller-invoked stop.
	go func() {
		defer close(out)
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				// If connection already closed by caller/context, just exit quietly.
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				log.Printf("coinbase ws read error: %v", err)
				return
			}

			tick, ok, err := parseTickerMessage(msg)
			if err != nil {
				log.Printf("coinbase ws parse error: %v", err)
				continue
			}
			if !ok {
				// subscription acks, heartbeats
				continue
			}
			select {
			case out <- tick:
			default:
				// slow consumer; latest ticks matter, backlog does not
			}
		}
	}()

	return out, stop, nil
}

func parseTickerMessage(msg []byte) (Tick, bool, error) {
	var raw struct {
		Type      string `json:"type"`
		ProductID string `json:"product_id"`
		Price     string `json:"price"`
		Time      string `json:"time"`
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Tick{}, false, err
	}
	if raw.Type != "ticker" || raw.Price == "" {
		return Tick{}, false, nil
	}

	price, err := strconv.ParseFloat(raw.Price, 64)
	if err != nil {
		return Tick{}, false, fmt.Errorf("ticker price %q: %w", raw.Price, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, raw.Time)
	if err != nil {
		ts = time.Now().UTC()
	}
	return Tick{ProductID: raw.ProductID, Price: price, Time: ts}, true, nil
}
