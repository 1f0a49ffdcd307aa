package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/johnprom/rust-trading-simulator/internal/bot"
	"github.com/johnprom/rust-trading-simulator/internal/indicators"
	"github.com/johnprom/rust-trading-simulator/internal/ledger"
)

// getStrategies lists the configured strategy presets.
func (s *Server) getStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": s.Catalog.IDs()})
}

// startBot launches a bot for the authenticated user.
func (s *Server) startBot(c *gin.Context) {
	var req struct {
		StrategyID string  `json:"strategy_id"`
		BaseAsset  string  `json:"base_asset"`
		Stoploss   float64 `json:"stoploss"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}
	req.BaseAsset = strings.ToUpper(strings.TrimSpace(req.BaseAsset))
	if req.BaseAsset == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "MISSING_ASSET",
			"error": "base_asset is required",
		})
		return
	}

	status, err := s.Registry.TryStart(CurrentUserID(c), req.StrategyID, req.BaseAsset, s.QuoteAsset, req.Stoploss)
	if err != nil {
		switch {
		case errors.Is(err, bot.ErrBotAlreadyRunning):
			c.JSON(http.StatusConflict, gin.H{
				"code":  "BOT_ALREADY_RUNNING",
				"error": err.Error(),
			})
		case errors.Is(err, bot.ErrUnknownStrategy):
			c.JSON(http.StatusNotFound, gin.H{
				"code":  "UNKNOWN_STRATEGY",
				"error": err.Error(),
			})
		case errors.Is(err, bot.ErrInvalidStoploss):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "INVALID_STOPLOSS",
				"error": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":  "INTERNAL_ERROR",
				"error": err.Error(),
			})
		}
		return
	}
	c.JSON(http.StatusCreated, status)
}

// stopBot requests cooperative shutdown; stopping twice is harmless.
func (s *Server) stopBot(c *gin.Context) {
	c.JSON(http.StatusOK, s.Registry.Stop(CurrentUserID(c)))
}

// getBotStatus reports the current or most recent bot instance.
func (s *Server) getBotStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Registry.Status(CurrentUserID(c)))
}

// executeTrade applies a manual trade at the latest observed price. Manual
// trades go through the same ledger path as bot trades, so they serialize
// with any running bot on the user's account lock.
func (s *Server) executeTrade(c *gin.Context) {
	var req struct {
		BaseAsset string  `json:"base_asset"`
		Side      string  `json:"side"`
		Quantity  float64 `json:"quantity"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}
	req.BaseAsset = strings.ToUpper(strings.TrimSpace(req.BaseAsset))

	var side ledger.Side
	switch strings.ToLower(req.Side) {
	case "buy":
		side = ledger.SideBuy
	case "sell":
		side = ledger.SideSell
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_SIDE",
			"error": "side must be buy or sell",
		})
		return
	}

	price, ok := s.Window.LatestPrice(req.BaseAsset)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "NO_PRICE_DATA",
			"error": "no price data for " + req.BaseAsset,
		})
		return
	}

	baseUSD := price
	quoteUSD := 1.0
	tx, err := s.Ledger.ExecuteTrade(CurrentUserID(c), req.BaseAsset, s.QuoteAsset, side, req.Quantity, price, &baseUSD, &quoteUSD, "")
	if err != nil {
		s.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (s *Server) deposit(c *gin.Context) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}

	tx, err := s.Ledger.Deposit(CurrentUserID(c), req.Amount)
	if err != nil {
		s.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (s *Server) withdraw(c *gin.Context) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}

	tx, err := s.Ledger.Withdraw(CurrentUserID(c), req.Amount)
	if err != nil {
		s.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

// getPortfolio returns balances plus the whole-account USD valuation used
// by the stoploss guard.
func (s *Server) getPortfolio(c *gin.Context) {
	userID := CurrentUserID(c)

	snap, err := s.Ledger.Snapshot(userID)
	if err != nil {
		s.ledgerError(c, err)
		return
	}
	value, err := s.Ledger.PortfolioValueUSD(userID, func(asset string) (float64, bool) {
		return s.Window.LatestPrice(asset)
	})
	if err != nil {
		s.ledgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":   snap.UserID,
		"username":  snap.Username,
		"balances":  snap.Balances,
		"value_usd": value,
	})
}

func (s *Server) getTransactions(c *gin.Context) {
	snap, err := s.Ledger.Snapshot(CurrentUserID(c))
	if err != nil {
		s.ledgerError(c, err)
		return
	}

	limit := queryInt(c, "limit", 100)
	history := snap.History
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{"transactions": history})
}

// getPrices returns recent samples for an asset, oldest first.
func (s *Server) getPrices(c *gin.Context) {
	asset := strings.ToUpper(c.Param("asset"))
	n := queryInt(c, "n", 720)

	points := s.Window.Snapshot(asset, n)
	if len(points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"code":  "NO_PRICE_DATA",
			"error": "no price data for " + asset,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "prices": points})
}

// getIndicators computes the requested indicator over the asset's window.
func (s *Server) getIndicators(c *gin.Context) {
	asset := strings.ToUpper(c.Param("asset"))

	var kind indicators.Kind
	switch strings.ToLower(c.Query("kind")) {
	case "sma":
		kind = indicators.KindSMA
	case "ema":
		kind = indicators.KindEMA
	case "rsi":
		kind = indicators.KindRSI
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_KIND",
			"error": "kind must be sma, ema or rsi",
		})
		return
	}
	period := queryInt(c, "period", 14)
	if period <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PERIOD",
			"error": "period must be positive",
		})
		return
	}

	points := s.Window.Snapshot(asset, queryInt(c, "n", 720))
	if len(points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"code":  "NO_PRICE_DATA",
			"error": "no price data for " + asset,
		})
		return
	}

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}

	id := indicators.SpecID(kind, period)
	snap := indicators.Compute(prices, []indicators.Spec{{ID: id, Kind: kind, Period: period}})

	value, ok := snap.Value(id)
	if !ok {
		// Not enough samples yet; absent, not zero.
		c.JSON(http.StatusOK, gin.H{"asset": asset, "id": id, "ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "id": id, "ready": true, "value": value})
}

// ledgerError maps ledger sentinel errors onto HTTP responses.
func (s *Server) ledgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "USER_NOT_FOUND", "error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientAssets),
		errors.Is(err, ledger.ErrWithdrawalExceedsBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "INSUFFICIENT_BALANCE", "error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrDepositTooSmall),
		errors.Is(err, ledger.ErrDepositTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_AMOUNT", "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
