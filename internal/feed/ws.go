package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradesim/internal/model"
)

// WSConfig configures the WebSocket quote client.
type WSConfig struct {
	// URL of the quote server, e.g. "ws://localhost:9001/ws".
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *WSConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// WS streams quotes from a plain-JSON WebSocket server (e.g. cmd/tickserver)
// and remembers the latest quote per symbol. Reconnects automatically with
// exponential backoff.
type WS struct {
	cfg WSConfig

	// OnReconnect, when set, is called each time a reconnection happens.
	OnReconnect func()

	mu     sync.RWMutex
	latest map[string]model.Quote
}

// NewWS creates a WebSocket quote client. Returns an error if the URL is
// unparseable.
func NewWS(cfg WSConfig) (*WS, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &WS{cfg: cfg, latest: make(map[string]model.Quote)}, nil
}

// LatestQuote returns the most recent quote seen for symbol.
func (w *WS) LatestQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return model.Quote{}, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	q, ok := w.latest[symbol]
	if !ok {
		return model.Quote{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return q, nil
}

// Start connects to the server and streams quotes into quoteCh. Blocks until
// ctx is cancelled, reconnecting on disconnect.
func (w *WS) Start(ctx context.Context, quoteCh chan<- model.Quote) error {
	delay := w.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := w.runOnce(ctx, quoteCh)
		if err == nil {
			return nil
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s", err, delay)
		if w.OnReconnect != nil {
			w.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > w.cfg.MaxReconnectDelay {
			delay = w.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancellation.
func (w *WS) runOnce(ctx context.Context, quoteCh chan<- model.Quote) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", w.cfg.URL)

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var q model.Quote
		if err := json.Unmarshal(raw, &q); err != nil {
			log.Printf("[feed] parse error: %v (raw: %s)", err, raw)
			continue
		}
		if q.Symbol == "" || q.Price <= 0 {
			log.Printf("[feed] skipping malformed quote: %s", raw)
			continue
		}
		if q.Timestamp.IsZero() {
			q.Timestamp = time.Now().UTC()
		}

		w.mu.Lock()
		w.latest[q.Symbol] = q
		w.mu.Unlock()

		select {
		case quoteCh <- q:
		default:
			log.Println("[feed] quote channel full, dropping quote")
		}
	}
}
