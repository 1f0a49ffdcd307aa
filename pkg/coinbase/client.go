package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Candle is one historical bucket from the exchange API.
type Candle struct {
	Time   time.Time
	Low    float64
	High   float64
	Open   float64
	Close  float64
	Volume float64
}

// Client wraps REST access to the Coinbase public endpoints: the retail API
// for spot prices and the exchange API for historical candles. Requests
// share a rate limiter tuned below Coinbase's public 10 req/s ceiling.
type Client struct {
	SpotBaseURL     string
	ExchangeBaseURL string
	HTTPClient      *http.Client
	limiter         *rate.Limiter
}

// NewClient builds a REST client against the public Coinbase hosts.
func NewClient() *Client {
	return &Client{
		SpotBaseURL:     "https://api.coinbase.com",
		ExchangeBaseURL: "https://api.exchange.coinbase.com",
		HTTPClient:      &http.Client{Timeout: 10 * time.Second},
		limiter:         rate.NewLimiter(rate.Limit(8), 8),
	}
}

// SpotPrice fetches the current spot price for a product like "BTC-USD".
func (c *Client) SpotPrice(ctx context.Context, productID string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	u := fmt.Sprintf("%s/v2/prices/%s/spot", c.SpotBaseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coinbase spot %s status %d", productID, res.StatusCode)
	}

	var resp struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(resp.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("coinbase spot %s amount %q: %w", productID, resp.Data.Amount, err)
	}
	return price, nil
}

// Candles fetches historical buckets for a product between start and end.
// granularity is in seconds; Coinbase accepts 60, 300, 900, 3600, 21600 and
// 86400. Results come back oldest first.
func (c *Client) Candles(ctx context.Context, productID string, start, end time.Time, granularity int) ([]Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("start", start.UTC().Format(time.RFC3339))
	params.Set("end", end.UTC().Format(time.RFC3339))
	params.Set("granularity", strconv.Itoa(granularity))

	u := fmt.Sprintf("%s/products/%s/candles?%s", c.ExchangeBaseURL, productID, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinbase candles %s status %d", productID, res.StatusCode)
	}

	// Each bucket is [time, low, high, open, close, volume], newest first.
	var raw [][]float64
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		b := raw[i]
		if len(b) < 6 {
			continue
		}
		candles = append(candles, Candle{
			Time:   time.Unix(int64(b[0]), 0).UTC(),
			Low:    b[1],
			High:   b[2],
			Open:   b[3],
			Close:  b[4],
			Volume: b[5],
		})
	}
	return candles, nil
}
