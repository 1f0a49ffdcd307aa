package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/johnprom/rust-trading-simulator/internal/api"
	"github.com/johnprom/rust-trading-simulator/internal/bot"
	"github.com/johnprom/rust-trading-simulator/internal/db"
	"github.com/johnprom/rust-trading-simulator/internal/events"
	"github.com/johnprom/rust-trading-simulator/internal/ledger"
	"github.com/johnprom/rust-trading-simulator/internal/market"
	"github.com/johnprom/rust-trading-simulator/pkg/coinbase"
	"github.com/johnprom/rust-trading-simulator/pkg/config"
)

const demoUserID = "demo"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting simulator on port %s (assets=%v quote=%s mock=%v)",
		cfg.Port, cfg.Assets, cfg.QuoteAsset, cfg.UseMockFeed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}
	queries := database.Queries()

	// Write-behind persistence: ledger mutations never wait on SQLite.
	persist := func(acc ledger.Account) {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer saveCancel()
		if err := queries.SaveAccount(saveCtx, acc); err != nil {
			log.Printf("persist account %s: %v", acc.UserID, err)
		}
	}

	book := ledger.New(persist)
	accounts, err := queries.LoadAccounts(ctx)
	if err != nil {
		log.Fatalf("load accounts failed: %v", err)
	}
	book.Seed(accounts)
	log.Printf("loaded %d accounts", len(accounts))

	// The demo account resets on every restart and is never persisted.
	if cfg.DemoUser != "" {
		if err := queries.DeleteUser(ctx, demoUserID); err != nil {
			log.Printf("demo reset: %v", err)
		}
		book.RemoveUser(demoUserID)
		demoHash, err := bcrypt.GenerateFromPassword([]byte(cfg.DemoUser), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("demo password hash: %v", err)
		}
		if err := book.CreateUser(demoUserID, cfg.DemoUser, string(demoHash), cfg.InitialCashBalance, true); err != nil {
			log.Fatalf("demo user create: %v", err)
		}
		log.Printf("demo user %q ready with %.2f USD", cfg.DemoUser, cfg.InitialCashBalance)
	}

	bus := events.NewBus()
	window := market.NewWindow(cfg.PriceWindowSize)

	if cfg.UseMockFeed {
		mock := &market.MockFeed{
			Window:   window,
			Bus:      bus,
			Assets:   cfg.Assets,
			Interval: cfg.PollInterval,
			StartPrices: map[string]float64{
				"BTC": 65000,
				"ETH": 3500,
			},
		}
		mock.Start(ctx)
		log.Println("mock feed started")
	} else {
		feed := &market.Feed{
			Client:       coinbase.NewClient(),
			Stream:       coinbase.NewStreamClient(),
			Window:       window,
			Bus:          bus,
			Assets:       cfg.Assets,
			QuoteAsset:   cfg.QuoteAsset,
			PollInterval: cfg.PollInterval,
		}
		feed.Backfill(ctx)
		feed.Start(ctx)
		log.Println("coinbase feed started")
	}

	presets, err := bot.LoadPresets(cfg.StrategiesConfig)
	if err != nil {
		log.Fatalf("strategies config: %v", err)
	}
	catalog := bot.NewCatalog(presets)
	log.Printf("strategy catalog: %v", catalog.IDs())

	runner := &bot.Runner{
		Ledger:   book,
		Window:   window,
		Bus:      bus,
		Interval: cfg.BotCycleInterval,
	}
	registry := bot.NewRegistry(runner, catalog)

	server := api.NewServer(&api.Server{
		Bus:        bus,
		Ledger:     book,
		Window:     window,
		Registry:   registry,
		Catalog:    catalog,
		JWTSecret:  cfg.JWTSecret,
		Assets:     cfg.Assets,
		QuoteAsset: cfg.QuoteAsset,
		Persist:    persist,
	})

	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("http server: %v", err)
		}
	}()
	log.Printf("listening on :%s", cfg.Port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("shutting down: stopping bots")
	registry.StopAll()
	cancel()
	log.Println("bye")
}
