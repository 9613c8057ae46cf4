// Package notification delivers trading alerts (fills, rejections, risk
// breaches) to external channels: webhooks, Telegram, or the process log.
package notification

import (
	"context"
	"fmt"
	"log"

	"tradesim/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is a notification to be delivered.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Symbol  string     `json:"symbol,omitempty"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// TradeAlert builds an informational alert for an executed trade.
func TradeAlert(t model.Trade) Alert {
	return Alert{
		Level:  AlertInfo,
		Symbol: t.Symbol,
		Title:  fmt.Sprintf("%s %s", t.Side, t.Symbol),
		Message: fmt.Sprintf("%.4f shares at %.2f (value %.2f, commission %.2f) %s",
			t.Quantity, t.Price, t.Value, t.Commission, t.Reason),
	}
}

// RiskAlert builds a critical alert for a risk-limit breach.
func RiskAlert(symbol, reason string, price float64) Alert {
	return Alert{
		Level:   AlertCritical,
		Symbol:  symbol,
		Title:   fmt.Sprintf("risk close %s", symbol),
		Message: fmt.Sprintf("%s forced close at %.2f", reason, price),
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns an error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts to the process log. Used in development and as the
// fallback backend.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to several backends. Delivery failures are logged
// per backend; the first error is returned after all backends were tried.
type Multi struct {
	backends []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	var first error
	for _, n := range m.backends {
		if err := n.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend %T failed: %v", n, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
