package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradesim/internal/model"
)

type stubNotifier struct {
	alerts []Alert
	err    error
}

func (s *stubNotifier) Send(ctx context.Context, a Alert) error {
	s.alerts = append(s.alerts, a)
	return s.err
}

func TestTradeAlert(t *testing.T) {
	trade := model.Trade{
		Timestamp:  time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
		Symbol:     "AAPL",
		Side:       model.ActionBuy,
		Quantity:   10,
		Price:      100.05,
		Value:      1000.5,
		Commission: 1.0005,
		Reason:     "golden cross",
	}
	a := TradeAlert(trade)
	if a.Level != AlertInfo {
		t.Errorf("level = %s, want INFO", a.Level)
	}
	if a.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", a.Symbol)
	}
	if !strings.Contains(a.Title, "buy") || !strings.Contains(a.Title, "AAPL") {
		t.Errorf("title = %q, want side and symbol", a.Title)
	}
	if !strings.Contains(a.Message, "100.05") {
		t.Errorf("message = %q, want fill price", a.Message)
	}
}

func TestRiskAlert(t *testing.T) {
	a := RiskAlert("MSFT", model.ReasonStopLoss, 94.2)
	if a.Level != AlertCritical {
		t.Errorf("level = %s, want CRITICAL", a.Level)
	}
	if a.Symbol != "MSFT" {
		t.Errorf("symbol = %q, want MSFT", a.Symbol)
	}
	if !strings.Contains(a.Message, model.ReasonStopLoss) {
		t.Errorf("message = %q, want close reason", a.Message)
	}
}

func TestMultiFansOutAndReturnsFirstError(t *testing.T) {
	failing := &stubNotifier{err: errors.New("boom")}
	ok := &stubNotifier{}
	m := NewMulti(failing, ok)

	alert := Alert{Level: AlertInfo, Title: "t", Message: "m"}
	err := m.Send(context.Background(), alert)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(failing.alerts) != 1 || len(ok.alerts) != 1 {
		t.Fatal("all backends must be tried even when one fails")
	}
}

func TestWebhookNotifierPayload(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{
		Level:   AlertWarning,
		Symbol:  "AAPL",
		Title:   "order rejected",
		Message: "insufficient cash",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["level"] != "WARNING" || got["symbol"] != "AAPL" || got["title"] != "order rejected" {
		t.Fatalf("payload = %v", got)
	}
}

func TestWebhookNotifierRejectsClientErrorWithoutRetry(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Title: "t"}); err == nil {
		t.Fatal("want error on 4xx status")
	}
	if hits != 1 {
		t.Errorf("hits = %d, want 1 (4xx must not be retried)", hits)
	}
}

func TestWebhookNotifierRetriesServerError(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Title: "t"}); err != nil {
		t.Fatalf("Send after retry: %v", err)
	}
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
}

func TestTelegramNotifierSendsRequest(t *testing.T) {
	var got telegramRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "chat123")
	n.apiBase = srv.URL
	err := n.Send(context.Background(), Alert{
		Level:   AlertInfo,
		Symbol:  "AAPL",
		Title:   "buy AAPL",
		Message: "filled",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.ChatID != "chat123" || got.ParseMode != "MarkdownV2" {
		t.Errorf("request = %+v", got)
	}
	if !got.DisableNotification {
		t.Error("info alerts should be silent")
	}
	if !strings.Contains(got.Text, "AAPL") {
		t.Errorf("text = %q, want symbol", got.Text)
	}
}

func TestTelegramNotifierAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token", "nope")
	n.apiBase = srv.URL
	err := n.Send(context.Background(), Alert{Level: AlertCritical, Title: "t"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v, want api description", err)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("a_b*c.d")
	want := `a\_b\*c\.d`
	if got != want {
		t.Errorf("escapeMarkdown = %q, want %q", got, want)
	}
}
