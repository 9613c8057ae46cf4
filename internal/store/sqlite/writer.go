// Package sqlite persists trades, market data, and signals to a local SQLite
// database. Writes are asynchronous: the engines push records into channels
// and a single writer goroutine commits them in batched transactions. A full
// channel drops the record rather than stalling the trading loop.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"tradesim/internal/metrics"
	"tradesim/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
	defaultQueueSize  = 1024
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath  string           // path to SQLite database file, e.g. "data/tradesim.db"
	Metrics *metrics.Metrics // nil disables commit instrumentation
}

// Writer is a single-goroutine SQLite writer with transaction batching.
// It implements model.Recorder.
type Writer struct {
	db      *sql.DB
	metrics *metrics.Metrics

	tradeCh  chan model.Trade
	barCh    chan model.Bar
	signalCh chan model.Signal
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer, single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{
		db:       db,
		metrics:  cfg.Metrics,
		tradeCh:  make(chan model.Trade, defaultQueueSize),
		barCh:    make(chan model.Bar, defaultQueueSize),
		signalCh: make(chan model.Signal, defaultQueueSize),
	}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			ts         INTEGER NOT NULL,
			symbol     TEXT    NOT NULL,
			side       TEXT    NOT NULL,
			quantity   REAL    NOT NULL,
			price      REAL    NOT NULL,
			value      REAL    NOT NULL,
			commission REAL    NOT NULL,
			reason     TEXT
		);

		CREATE TABLE IF NOT EXISTS market_data (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume INTEGER,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS signals (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			ts       INTEGER NOT NULL,
			strategy TEXT    NOT NULL,
			symbol   TEXT    NOT NULL,
			label    TEXT    NOT NULL,
			price    REAL    NOT NULL,
			strength REAL    NOT NULL,
			reason   TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_trades_symbol_ts ON trades (symbol, ts);
		CREATE INDEX IF NOT EXISTS idx_signals_strategy_ts ON signals (strategy, ts);
	`)
	return err
}

// SaveTrade enqueues a trade for persistence. Never blocks.
func (w *Writer) SaveTrade(trade model.Trade) {
	select {
	case w.tradeCh <- trade:
	default:
		log.Printf("[sqlite] trade queue full, dropping %s %s", trade.Side, trade.Symbol)
	}
}

// SaveBar enqueues a bar for persistence. Never blocks.
func (w *Writer) SaveBar(bar model.Bar) {
	select {
	case w.barCh <- bar:
	default:
		log.Printf("[sqlite] bar queue full, dropping %s", bar.Symbol)
	}
}

// SaveSignal enqueues a signal for persistence. Never blocks.
func (w *Writer) SaveSignal(signal model.Signal) {
	select {
	case w.signalCh <- signal:
	default:
		log.Printf("[sqlite] signal queue full, dropping %s %s", signal.Strategy, signal.Symbol)
	}
}

// Run drains the queues and commits records in batched transactions. A batch
// is flushed when it reaches defaultBatchSize records or after defaultFlushDelay,
// whichever comes first. Blocks until ctx is cancelled; pending records are
// flushed on shutdown.
func (w *Writer) Run(ctx context.Context) {
	trades := make([]model.Trade, 0, defaultBatchSize)
	bars := make([]model.Bar, 0, defaultBatchSize)
	signals := make([]model.Signal, 0, defaultBatchSize)

	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(trades) == 0 && len(bars) == 0 && len(signals) == 0 {
			return
		}
		start := time.Now()
		if err := w.commit(trades, bars, signals); err != nil {
			log.Printf("[sqlite] batch commit error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d trades, %d bars, %d signals in %v",
				len(trades), len(bars), len(signals), time.Since(start))
		}
		if w.metrics != nil {
			w.metrics.SQLiteCommitDur.Observe(time.Since(start).Seconds())
		}
		trades = trades[:0]
		bars = bars[:0]
		signals = signals[:0]
	}

	full := func() bool {
		return len(trades)+len(bars)+len(signals) >= defaultBatchSize
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case trade := <-w.tradeCh:
			trades = append(trades, trade)
			if full() {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case bar := <-w.barCh:
			bars = append(bars, bar)
			if full() {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case signal := <-w.signalCh:
			signals = append(signals, signal)
			if full() {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// commit writes all pending records in a single transaction.
func (w *Writer) commit(trades []model.Trade, bars []model.Bar, signals []model.Signal) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	if len(trades) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO trades (ts, symbol, side, quantity, price, value, commission, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			tx.Rollback()
			return err
		}
		for _, t := range trades {
			if _, err := stmt.Exec(t.Timestamp.Unix(), t.Symbol, string(t.Side), t.Quantity, t.Price, t.Value, t.Commission, t.Reason); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}
		stmt.Close()
	}

	if len(bars) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO market_data (symbol, ts, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			tx.Rollback()
			return err
		}
		for _, b := range bars {
			if _, err := stmt.Exec(b.Symbol, b.Timestamp.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}
		stmt.Close()
	}

	if len(signals) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO signals (ts, strategy, symbol, label, price, strength, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			tx.Rollback()
			return err
		}
		for _, s := range signals {
			if _, err := stmt.Exec(s.Timestamp.Unix(), s.Strategy, s.Symbol, string(s.Label), s.Price, s.Strength, s.Reason); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}
		stmt.Close()
	}

	return tx.Commit()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
