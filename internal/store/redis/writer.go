// Package redis publishes live trading state to Redis: latest quotes,
// executed trades, and the equity curve. Writes are fire-and-forget behind a
// circuit breaker; trades and equity points are buffered locally while the
// breaker is open and replayed when Redis recovers. Quotes are not buffered,
// a stale quote has no value.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"tradesim/internal/metrics"
	"tradesim/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: roughly a trading week of minute quotes.
	quoteStreamMaxLen  = 12000
	tradeStreamMaxLen  = 10000
	equityStreamMaxLen = 50000
	defaultLatestTTL   = 30 * time.Minute
	defaultMaxBuffered = 10000
)

// ErrNoQuote is returned when no latest quote is stored for a symbol.
var ErrNoQuote = fmt.Errorf("no quote stored")

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Metrics  *metrics.Metrics // nil disables write instrumentation
}

// pendingWrite is a publish that was buffered during circuit-open state.
type pendingWrite struct {
	kind string // "trade" or "equity"
	data []byte
}

// Writer publishes quotes, trades, and equity points to Redis.
type Writer struct {
	client  *goredis.Client
	metrics *metrics.Metrics
	cb      *CircuitBreaker

	mu      sync.Mutex
	pending []pendingWrite
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	w := &Writer{client: client, metrics: cfg.Metrics}
	w.cb = NewCircuitBreaker(5, 10*time.Second)
	w.cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		if to == StateClosed {
			go w.flush(context.Background())
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return w, nil
}

// PublishQuote writes the latest quote for a symbol: SET with TTL, XADD to the
// symbol's quote stream, and PUBLISH for subscribers. Dropped while the
// circuit is open.
func (w *Writer) PublishQuote(ctx context.Context, q model.Quote) {
	err := w.cb.Execute(func() error {
		return w.writeQuote(ctx, q)
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] quote publish error for %s: %v", q.Symbol, err)
	}
}

// PublishTrade appends a trade to the trade stream and notifies subscribers.
// Buffered locally while the circuit is open.
func (w *Writer) PublishTrade(ctx context.Context, t model.Trade) {
	err := w.cb.Execute(func() error {
		return w.writeTrade(ctx, t)
	})
	if err == ErrCircuitOpen {
		w.buffer("trade", t)
		return
	}
	if err != nil {
		log.Printf("[redis] trade publish error for %s: %v", t.Symbol, err)
	}
}

// PublishEquity appends an equity point to the equity stream and refreshes
// the latest-equity key. Buffered locally while the circuit is open.
func (w *Writer) PublishEquity(ctx context.Context, p model.EquityPoint) {
	err := w.cb.Execute(func() error {
		return w.writeEquity(ctx, p)
	})
	if err == ErrCircuitOpen {
		w.buffer("equity", p)
		return
	}
	if err != nil {
		log.Printf("[redis] equity publish error: %v", err)
	}
}

// LatestQuote reads back the latest stored quote for a symbol.
func (w *Writer) LatestQuote(ctx context.Context, symbol string) (model.Quote, error) {
	data, err := w.client.Get(ctx, "quote:latest:"+symbol).Result()
	if err == goredis.Nil {
		return model.Quote{}, ErrNoQuote
	}
	if err != nil {
		return model.Quote{}, fmt.Errorf("redis GET quote: %w", err)
	}
	var q model.Quote
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return model.Quote{}, fmt.Errorf("unmarshal quote: %w", err)
	}
	return q, nil
}

// PendingCount returns the number of buffered writes waiting for replay.
func (w *Writer) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Writer) writeQuote(ctx context.Context, q model.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	jsonData := string(data)

	start := time.Now()
	pipe := w.client.Pipeline()
	pipe.Set(ctx, "quote:latest:"+q.Symbol, jsonData, defaultLatestTTL)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: "stream:quotes:" + q.Symbol,
		MaxLen: quoteStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, "pub:quote:"+q.Symbol, jsonData)
	_, err = pipe.Exec(ctx)
	w.observe(start)
	return err
}

func (w *Writer) writeTrade(ctx context.Context, t model.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	jsonData := string(data)

	start := time.Now()
	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: "stream:trades",
		MaxLen: tradeStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, "pub:trades", jsonData)
	_, err = pipe.Exec(ctx)
	w.observe(start)
	return err
}

func (w *Writer) writeEquity(ctx context.Context, p model.EquityPoint) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	jsonData := string(data)

	start := time.Now()
	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: "stream:equity",
		MaxLen: equityStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Set(ctx, "equity:latest", jsonData, defaultLatestTTL)
	_, err = pipe.Exec(ctx)
	w.observe(start)
	return err
}

func (w *Writer) observe(start time.Time) {
	if w.metrics != nil {
		w.metrics.RedisWriteDur.Observe(time.Since(start).Seconds())
	}
}

func (w *Writer) buffer(kind string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[redis] buffer marshal error: %v", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) >= defaultMaxBuffered {
		// Buffer full, drop oldest.
		w.pending = w.pending[1:]
	}
	w.pending = append(w.pending, pendingWrite{kind: kind, data: data})
}

// flush replays all buffered writes after the circuit closes.
func (w *Writer) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	toFlush := w.pending
	w.pending = nil
	w.mu.Unlock()

	for _, pw := range toFlush {
		switch pw.kind {
		case "trade":
			var t model.Trade
			if json.Unmarshal(pw.data, &t) == nil {
				if err := w.writeTrade(ctx, t); err != nil {
					log.Printf("[redis] replay trade error: %v", err)
				}
			}
		case "equity":
			var p model.EquityPoint
			if json.Unmarshal(pw.data, &p) == nil {
				if err := w.writeEquity(ctx, p); err != nil {
					log.Printf("[redis] replay equity error: %v", err)
				}
			}
		}
	}
	log.Printf("[redis] replayed %d buffered writes", len(toFlush))
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
