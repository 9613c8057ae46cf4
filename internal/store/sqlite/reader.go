package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"tradesim/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to stored market data and trades, used by
// the backtest command to replay recorded sessions.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars reads stored bars for a symbol after afterTS (Unix seconds),
// ordered by timestamp ascending for correct replay order.
func (r *Reader) ReadBars(symbol string, afterTS int64) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close, volume
		FROM market_data
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query market_data: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&b.Symbol, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan market_data: %w", err)
		}
		b.Timestamp = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ReadTrades reads stored trades for a symbol, ordered by timestamp. An empty
// symbol reads all trades.
func (r *Reader) ReadTrades(symbol string) ([]model.Trade, error) {
	query := `
		SELECT ts, symbol, side, quantity, price, value, commission, reason
		FROM trades
	`
	args := []interface{}{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY ts ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var tsUnix int64
		var side string
		var reason sql.NullString
		if err := rows.Scan(&tsUnix, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Value, &t.Commission, &reason); err != nil {
			return nil, fmt.Errorf("sqlite scan trades: %w", err)
		}
		t.Timestamp = time.Unix(tsUnix, 0).UTC()
		t.Side = model.Action(side)
		t.Reason = reason.String
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// LastBarTimestamp returns the most recent stored bar timestamp for a symbol
// as Unix seconds, or 0 when no bars exist.
func (r *Reader) LastBarTimestamp(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := r.db.QueryRow(
		`SELECT MAX(ts) FROM market_data WHERE symbol = ?`, symbol,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
