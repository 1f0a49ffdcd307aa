package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/johnprom/rust-trading-simulator/internal/bot"
	"github.com/johnprom/rust-trading-simulator/internal/events"
	"github.com/johnprom/rust-trading-simulator/internal/ledger"
	"github.com/johnprom/rust-trading-simulator/internal/market"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := ledger.New(nil)
	w := market.NewWindow(128)
	now := time.Now()
	for i := 0; i < 10; i++ {
		w.Append(market.PricePoint{Timestamp: now, Asset: "BTC", Price: 50000})
	}

	runner := &bot.Runner{
		Ledger:   l,
		Window:   w,
		Bus:      events.NewBus(),
		Interval: 10 * time.Millisecond,
	}
	catalog := bot.NewCatalog(bot.DefaultPresets())

	return NewServer(&Server{
		Bus:        runner.Bus,
		Ledger:     l,
		Window:     w,
		Registry:   bot.NewRegistry(runner, catalog),
		Catalog:    catalog,
		JWTSecret:  "test-secret",
		Assets:     []string{"BTC"},
		QuoteAsset: "USD",
	})
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, s *Server) string {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice", "password": "hunter22",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice", "password": "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login response: %s", rec.Body.String())
	}
	return resp.Token
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/portfolio", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, expected 401", rec.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)
	registerAndLogin(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, expected 401", rec.Code)
	}
}

func TestDepositTradeWithdrawFlow(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/deposit", token, gin.H{"amount": 10000.0})
	if rec.Code != http.StatusCreated {
		t.Fatalf("deposit status=%d body=%s", rec.Code, rec.Body.String())
	}

	// Deposits outside the allowed bounds are rejected with 400.
	rec = doJSON(t, s, http.MethodPost, "/api/deposit", token, gin.H{"amount": 5.0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("small deposit status=%d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/trade", token, gin.H{
		"base_asset": "BTC", "side": "buy", "quantity": 0.1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("trade status=%d body=%s", rec.Code, rec.Body.String())
	}

	var tx ledger.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatalf("trade response: %v", err)
	}
	if tx.Price != 50000 || tx.Side != ledger.SideBuy {
		t.Fatalf("tx=%+v", tx)
	}

	// Overdraft is a 422, not a state change.
	rec = doJSON(t, s, http.MethodPost, "/api/withdraw", token, gin.H{"amount": 99999.0})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("overdraft status=%d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/portfolio", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("portfolio status=%d", rec.Code)
	}
	var pf struct {
		Balances map[string]float64 `json:"balances"`
		ValueUSD float64            `json:"value_usd"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pf); err != nil {
		t.Fatalf("portfolio response: %v", err)
	}
	if pf.Balances["BTC"] != 0.1 {
		t.Fatalf("BTC=%v", pf.Balances["BTC"])
	}
	// 5000 cash + 0.1 BTC at 50000.
	if pf.ValueUSD != 10000 {
		t.Fatalf("value=%v", pf.ValueUSD)
	}
}

func TestTradeWithoutPriceDataIs503(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/trade", token, gin.H{
		"base_asset": "DOGE", "side": "buy", "quantity": 1.0,
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, expected 503", rec.Code)
	}
}

func TestBotLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)

	doJSON(t, s, http.MethodPost, "/api/deposit", token, gin.H{"amount": 10000.0})

	rec := doJSON(t, s, http.MethodGet, "/api/bot/status", token, nil)
	var st bot.Status
	json.Unmarshal(rec.Body.Bytes(), &st)
	if st.State != bot.StateNotRunning {
		t.Fatalf("initial state=%s", st.State)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/bot/start", token, gin.H{
		"strategy_id": "momentum", "base_asset": "BTC", "stoploss": 500.0,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status=%d body=%s", rec.Code, rec.Body.String())
	}

	// A second start for the same user conflicts.
	rec = doJSON(t, s, http.MethodPost, "/api/bot/start", token, gin.H{
		"strategy_id": "momentum", "base_asset": "BTC", "stoploss": 500.0,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second start status=%d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/bot/stop", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status=%d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &st)
	if st.State != bot.StateStopped {
		t.Fatalf("state after stop=%s", st.State)
	}

	// Stop twice: same answer, no error.
	rec = doJSON(t, s, http.MethodPost, "/api/bot/stop", token, nil)
	json.Unmarshal(rec.Body.Bytes(), &st)
	if rec.Code != http.StatusOK || st.State != bot.StateStopped {
		t.Fatalf("repeat stop status=%d state=%s", rec.Code, st.State)
	}
}

func TestStartBotUnknownStrategy(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/bot/start", token, gin.H{
		"strategy_id": "nope", "base_asset": "BTC", "stoploss": 500.0,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, expected 404", rec.Code)
	}
}

func TestPricesAndIndicators(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/prices/BTC?n=5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("prices status=%d", rec.Code)
	}
	var pricesResp struct {
		Prices []market.PricePoint `json:"prices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pricesResp); err != nil {
		t.Fatalf("prices response: %v", err)
	}
	if len(pricesResp.Prices) != 5 {
		t.Fatalf("got %d prices", len(pricesResp.Prices))
	}

	rec = doJSON(t, s, http.MethodGet, "/api/indicators/BTC?kind=sma&period=5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("indicators status=%d", rec.Code)
	}
	var ind struct {
		Ready bool    `json:"ready"`
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ind); err != nil {
		t.Fatalf("indicators response: %v", err)
	}
	if !ind.Ready || ind.Value != 50000 {
		t.Fatalf("indicator=%+v", ind)
	}

	// Warm-up must read as not ready, never as zero.
	rec = doJSON(t, s, http.MethodGet, "/api/indicators/BTC?kind=rsi&period=14", "", nil)
	json.Unmarshal(rec.Body.Bytes(), &ind)
	if ind.Ready {
		t.Fatal("RSI should not be ready with 10 samples")
	}

	rec = doJSON(t, s, http.MethodGet, "/api/indicators/BTC?kind=bogus&period=5", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus kind status=%d", rec.Code)
	}
}
