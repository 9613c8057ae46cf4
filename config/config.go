// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"tradesim/internal/portfolio"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Simulation parameters
	InitialCapital float64
	Commission     float64 // rate, e.g. 0.001 = 0.1%
	Slippage       float64 // rate, e.g. 0.0005 = 0.05%
	PositionSize   float64 // fraction of capital per buy

	// Risk limits
	MaxPositions    int
	MaxPositionSize float64
	MaxDrawdown     float64
	StopLoss        float64
	TakeProfit      float64

	// Infrastructure
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	MetricsAddr   string
	APIAddr       string

	// Data feed
	FeedURL         string // WebSocket quote feed; empty uses the synthetic feed
	Symbols         string // comma-separated, e.g. "AAPL,MSFT,GOOG"
	UpdateInterval  time.Duration
	MarketHoursOnly bool // only poll quotes during the regular US session

	// Notifications
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		InitialCapital: getFloat("INITIAL_CAPITAL", 10000),
		Commission:     getFloat("COMMISSION_RATE", 0.001),
		Slippage:       getFloat("SLIPPAGE_RATE", 0.0005),
		PositionSize:   getFloat("POSITION_SIZE", 0.1),

		MaxPositions:    getInt("MAX_POSITIONS", 10),
		MaxPositionSize: getFloat("MAX_POSITION_SIZE", 0.20),
		MaxDrawdown:     getFloat("MAX_DRAWDOWN", 0.15),
		StopLoss:        getFloat("STOP_LOSS", 0.05),
		TakeProfit:      getFloat("TAKE_PROFIT", 0.15),

		SQLitePath:    getEnv("SQLITE_PATH", "data/tradesim.db"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),

		FeedURL:         getEnv("FEED_URL", ""),
		Symbols:         getEnv("SYMBOLS", "AAPL,MSFT,GOOG"),
		UpdateInterval:  getDuration("UPDATE_INTERVAL", 60*time.Second),
		MarketHoursOnly: getBool("MARKET_HOURS_ONLY", false),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ParseSymbols splits the Symbols string into a clean slice.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid duration for %s: %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

// RiskLimits assembles the risk-limit fields into the ledger's limit type.
func (c *Config) RiskLimits() portfolio.Limits {
	return portfolio.Limits{
		MaxPositions:    c.MaxPositions,
		MaxPositionSize: c.MaxPositionSize,
		MaxDrawdown:     c.MaxDrawdown,
		StopLoss:        c.StopLoss,
		TakeProfit:      c.TakeProfit,
	}
}
