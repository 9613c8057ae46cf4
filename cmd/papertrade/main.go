// cmd/papertrade runs the live paper-trading engine: quotes stream in from a
// WebSocket feed (or the synthetic feed when none is configured), strategies
// generate signals, and simulated orders are tracked against a virtual
// portfolio. State is persisted to SQLite and optionally published to Redis.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tradesim/config"
	"tradesim/internal/api"
	"tradesim/internal/feed"
	"tradesim/internal/logger"
	"tradesim/internal/metrics"
	"tradesim/internal/model"
	"tradesim/internal/notification"
	"tradesim/internal/paper"
	"tradesim/internal/strategy"
	redisstore "tradesim/internal/store/redis"
	sqlitestore "tradesim/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("[papertrade] starting...")

	strategies := flag.String("strategies", "sma_crossover", "Comma-separated strategies to run, or 'all'")
	flag.Parse()

	cfg := config.Load()
	logger.Init("papertrade", logger.ParseLevel(cfg.LogLevel))

	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[papertrade] no symbols configured")
	}
	log.Printf("[papertrade] symbols: %v", symbols)

	// ---- Metrics & health ----
	prom := metrics.New()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite recorder (off hot path) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath, Metrics: prom})
	if err != nil {
		log.Fatalf("[papertrade] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	go sqlWriter.Run(ctx)

	// ---- Redis publisher (optional) ----
	var redisWriter *redisstore.Writer
	if cfg.RedisAddr != "" {
		redisWriter, err = redisstore.New(redisstore.WriterConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Metrics:  prom,
		})
		if err != nil {
			log.Printf("[papertrade] WARNING: redis init failed: %v (continuing without redis)", err)
			redisWriter = nil
		}
	}

	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Live event stream + notifications ----
	stream := api.NewStreamHub()
	notifier := buildNotifier(cfg, stream)

	// ---- Paper engine ----
	engine := paper.New(paper.Config{
		InitialCapital:  cfg.InitialCapital,
		Commission:      cfg.Commission,
		Slippage:        cfg.Slippage,
		PositionSize:    cfg.PositionSize,
		Limits:          cfg.RiskLimits(),
		MarketHoursOnly: cfg.MarketHoursOnly,
		Recorder:        newRecorder(ctx, sqlWriter, redisWriter, stream),
		Notifier:        notifier,
		Metrics:         prom,
	})
	for _, name := range parseStrategies(*strategies) {
		strat, err := strategy.New(name, strategy.Config{})
		if err != nil {
			log.Fatalf("[papertrade] %v", err)
		}
		engine.AddStrategy(strat)
	}
	go engine.Run(ctx)

	// ---- Data feed ----
	synthetic := feed.NewSynthetic(time.Now().UnixNano(), time.Now().UTC().AddDate(-1, 0, 0))
	var quoteSource feed.QuoteSource = synthetic
	if cfg.FeedURL != "" {
		ws, err := feed.NewWS(feed.WSConfig{URL: cfg.FeedURL})
		if err != nil {
			log.Fatalf("[papertrade] feed init failed: %v", err)
		}
		ws.OnReconnect = func() {
			prom.FeedReconnects.Inc()
			health.SetFeedConnected(true)
		}
		quoteCh := make(chan model.Quote, 1024)
		go func() {
			if err := ws.Start(ctx, quoteCh); err != nil && ctx.Err() == nil {
				log.Printf("[papertrade] feed stopped: %v", err)
			}
		}()
		go func() {
			for q := range quoteCh {
				health.SetLastQuoteTime(q.Timestamp)
				engine.OnQuote(q)
				if redisWriter != nil {
					redisWriter.PublishQuote(ctx, q)
				}
			}
		}()
		health.SetFeedConnected(true)
		log.Printf("[papertrade] streaming quotes from %s", cfg.FeedURL)
	} else {
		engine.StartSchedulers(ctx, quoteSource, symbols, cfg.UpdateInterval)
		health.SetFeedConnected(true)
		log.Printf("[papertrade] polling synthetic quotes every %s", cfg.UpdateInterval)
	}

	// ---- Periodic equity publishing ----
	go publishEquity(ctx, engine, redisWriter, stream, cfg.UpdateInterval)

	// ---- HTTP API ----
	apiSrv := api.NewServer(cfg.APIAddr, api.Deps{Provider: synthetic, Engine: engine, Stream: stream})
	apiSrv.Start()

	log.Printf("[papertrade] running, capital %.2f", cfg.InitialCapital)
	<-sigCh
	log.Println("[papertrade] shutting down...")

	engine.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	if redisWriter != nil {
		redisWriter.Close()
	}
	log.Println("[papertrade] bye")
}

func parseStrategies(s string) []string {
	if strings.TrimSpace(s) == "all" {
		return strategy.Names()
	}
	var names []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			names = append(names, p)
		}
	}
	return names
}

func buildNotifier(cfg *config.Config, stream *api.StreamHub) notification.Notifier {
	backends := []notification.Notifier{notification.NewLogNotifier(), stream}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[papertrade] webhook notifications enabled")
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[papertrade] telegram notifications enabled")
	}
	return notification.NewMulti(backends...)
}

// recorder persists to SQLite and mirrors trades to Redis and the live
// event stream when available.
type recorder struct {
	ctx    context.Context
	sql    *sqlitestore.Writer
	redis  *redisstore.Writer
	stream *api.StreamHub
}

func newRecorder(ctx context.Context, sql *sqlitestore.Writer, redis *redisstore.Writer, stream *api.StreamHub) model.Recorder {
	return &recorder{ctx: ctx, sql: sql, redis: redis, stream: stream}
}

func (r *recorder) SaveTrade(t model.Trade) {
	r.sql.SaveTrade(t)
	if r.redis != nil {
		r.redis.PublishTrade(r.ctx, t)
	}
	if r.stream != nil {
		r.stream.BroadcastTrade(t)
	}
}

func (r *recorder) SaveBar(b model.Bar) { r.sql.SaveBar(b) }

func (r *recorder) SaveSignal(s model.Signal) { r.sql.SaveSignal(s) }

func publishEquity(ctx context.Context, engine *paper.Engine, redis *redisstore.Writer, stream *api.StreamHub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sum := engine.Summary()
			point := model.EquityPoint{
				Timestamp:     time.Now().UTC(),
				Equity:        sum.PortfolioValue,
				Cash:          sum.Cash,
				PositionValue: sum.PortfolioValue - sum.Cash,
			}
			if redis != nil {
				redis.PublishEquity(ctx, point)
			}
			if stream != nil {
				stream.BroadcastEquity(point)
			}
		}
	}
}
