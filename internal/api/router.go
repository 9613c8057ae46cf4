// Package api exposes the trading system over HTTP: backtest runs, strategy
// discovery, and the live paper-trading portfolio.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"tradesim/internal/backtest"
	"tradesim/internal/feed"
	"tradesim/internal/model"
	"tradesim/internal/paper"
	"tradesim/internal/strategy"
)

// Deps are the collaborators the router serves from. Engine may be nil when
// only backtesting endpoints are wanted; Stream may be nil when live event
// streaming is not enabled.
type Deps struct {
	Provider feed.HistoricalProvider
	Engine   *paper.Engine
	Stream   *StreamHub
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// backtestRequest is the POST /api/v1/backtest body. Zero-valued strategy
// parameters use the strategy defaults; zero-valued simulation parameters use
// the engine defaults.
type backtestRequest struct {
	Strategy string `json:"strategy"`
	Symbol   string `json:"symbol"`
	Period   string `json:"period"`   // e.g. "1y", "3mo", "30d"
	Interval string `json:"interval"` // e.g. "1d"

	InitialCapital float64 `json:"initial_capital"`
	PositionSize   float64 `json:"position_size"`
	Commission     float64 `json:"commission"`
	Slippage       float64 `json:"slippage"`

	FastPeriod int     `json:"fast_period"`
	SlowPeriod int     `json:"slow_period"`
	RSIPeriod  int     `json:"rsi_period"`
	Oversold   float64 `json:"oversold"`
	Overbought float64 `json:"overbought"`
	BBPeriod   int     `json:"bb_period"`
	BBStdDev   float64 `json:"bb_std_dev"`
}

// NewRouter registers all HTTP routes.
func NewRouter(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()
	processStart := time.Now()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"uptime_sec": int64(time.Since(processStart).Seconds()),
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	mux.HandleFunc("/api/v1/strategies", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, strategy.Names())
	})

	mux.HandleFunc("/api/v1/backtest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			SetCORS(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}
		if deps.Provider == nil {
			writeError(w, http.StatusServiceUnavailable, "no data provider configured")
			return
		}
		handleBacktest(w, r, deps.Provider)
	})

	mux.HandleFunc("/api/v1/portfolio/summary", func(w http.ResponseWriter, r *http.Request) {
		if deps.Engine == nil {
			writeError(w, http.StatusServiceUnavailable, "paper trading not running")
			return
		}
		writeJSON(w, http.StatusOK, deps.Engine.Summary())
	})

	mux.HandleFunc("/api/v1/positions", func(w http.ResponseWriter, r *http.Request) {
		if deps.Engine == nil {
			writeError(w, http.StatusServiceUnavailable, "paper trading not running")
			return
		}
		writeJSON(w, http.StatusOK, deps.Engine.Ledger().Positions())
	})

	mux.HandleFunc("/api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		if deps.Engine == nil {
			writeError(w, http.StatusServiceUnavailable, "paper trading not running")
			return
		}
		switch r.Method {
		case http.MethodOptions:
			SetCORS(w)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, deps.Engine.Orders())
		case http.MethodPost:
			var req struct {
				Symbol   string  `json:"symbol"`
				Side     string  `json:"side"`
				Quantity float64 `json:"quantity"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON")
				return
			}
			order, err := deps.Engine.SubmitOrder(r.Context(), req.Symbol, model.Action(req.Side), req.Quantity)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, order)
		default:
			writeError(w, http.StatusMethodNotAllowed, "GET or POST required")
		}
	})

	mux.HandleFunc("/api/v1/stream", func(w http.ResponseWriter, r *http.Request) {
		if deps.Stream == nil {
			writeError(w, http.StatusServiceUnavailable, "event streaming not enabled")
			return
		}
		deps.Stream.HandleWS(w, r)
	})

	return mux
}

func handleBacktest(w http.ResponseWriter, r *http.Request, provider feed.HistoricalProvider) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if req.Period == "" {
		req.Period = "1y"
	}

	strat, err := strategy.New(req.Strategy, strategy.Config{
		FastPeriod: req.FastPeriod,
		SlowPeriod: req.SlowPeriod,
		RSIPeriod:  req.RSIPeriod,
		Oversold:   req.Oversold,
		Overbought: req.Overbought,
		BBPeriod:   req.BBPeriod,
		BBStdDev:   req.BBStdDev,
	})
	if err != nil {
		if errors.Is(err, strategy.ErrUnknownStrategy) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	bars, err := provider.GetBars(r.Context(), req.Symbol, req.Period, req.Interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := backtest.DefaultConfig()
	if req.InitialCapital > 0 {
		cfg.InitialCapital = req.InitialCapital
	}
	if req.PositionSize > 0 {
		cfg.PositionSize = req.PositionSize
	}
	if req.Commission > 0 {
		cfg.Commission = req.Commission
	}
	if req.Slippage > 0 {
		cfg.Slippage = req.Slippage
	}

	result, err := backtest.New(cfg).Run(strat, bars)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Server wraps the router in an http.Server with graceful shutdown.
type Server struct {
	srv *http.Server
}

// NewServer creates an API server listening on addr.
func NewServer(addr string, deps Deps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(deps),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Start serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Printf("[api] shutdown error: %v", err)
	}
}
