package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the simulator.
type Config struct {
	Port string

	// Market data
	Assets          []string
	QuoteAsset      string
	PriceWindowSize int
	PollInterval    time.Duration
	UseMockFeed     bool

	// Bot scheduling
	BotCycleInterval time.Duration
	StrategiesConfig string

	// Database
	DBPath string

	// Auth
	JWTSecret string

	// Demo account
	DemoUser           string
	InitialCashBalance float64
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Assets:             splitAndTrim(getEnv("ASSETS", "BTC,ETH")),
		QuoteAsset:         getEnv("QUOTE_ASSET", "USD"),
		PriceWindowSize:    getEnvInt("PRICE_WINDOW_SIZE", 17280),
		PollInterval:       getEnvDuration("POLL_INTERVAL", 5*time.Second),
		UseMockFeed:        getEnv("USE_MOCK_FEED", "false") == "true",
		BotCycleInterval:   getEnvDuration("BOT_CYCLE_INTERVAL", 60*time.Second),
		StrategiesConfig:   getEnv("STRATEGIES_CONFIG", ""),
		DBPath:             getEnv("DB_PATH", "./data/simulator.db"),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		DemoUser:           getEnv("DEMO_USER", "demo"),
		InitialCashBalance: getEnvFloat("INITIAL_CASH_BALANCE", 10000.0),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare numbers are seconds, matching the original .env format.
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
