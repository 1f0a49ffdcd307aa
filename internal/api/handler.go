package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/johnprom/rust-trading-simulator/internal/bot"
	"github.com/johnprom/rust-trading-simulator/internal/events"
	"github.com/johnprom/rust-trading-simulator/internal/ledger"
	"github.com/johnprom/rust-trading-simulator/internal/market"
)

// Server wires HTTP endpoints around the simulator core.
type Server struct {
	Router     *gin.Engine
	Bus        *events.Bus
	Ledger     *ledger.Ledger
	Window     *market.Window
	Registry   *bot.Registry
	Catalog    *bot.Catalog
	JWTSecret  string
	Assets     []string
	QuoteAsset string

	// Persist is invoked with a fresh snapshot after registration so new
	// accounts survive restarts. May be nil.
	Persist func(ledger.Account)
}

// NewServer builds the router with the standard middleware stack.
func NewServer(s *Server) *Server {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s.Router = r
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/prices/:asset", s.getPrices)
		api.GET("/indicators/:asset", s.getIndicators)

		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/strategies", s.getStrategies)

			protected.POST("/bot/start", s.startBot)
			protected.POST("/bot/stop", s.stopBot)
			protected.GET("/bot/status", s.getBotStatus)

			protected.POST("/trade", s.executeTrade)
			protected.POST("/deposit", s.deposit)
			protected.POST("/withdraw", s.withdraw)
			protected.GET("/portfolio", s.getPortfolio)
			protected.GET("/transactions", s.getTransactions)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"assets":      s.Assets,
		"quote_asset": s.QuoteAsset,
	})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
