package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradesim/internal/feed"
	"tradesim/internal/paper"
)

func testRouter(t *testing.T, engine *paper.Engine) http.Handler {
	t.Helper()
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	return NewRouter(Deps{
		Provider: feed.NewSynthetic(42, start),
		Engine:   engine,
	})
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestStrategiesList(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/strategies", nil))

	var names []string
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	found := false
	for _, n := range names {
		if n == "sma_crossover" {
			found = true
		}
	}
	if !found {
		t.Errorf("names = %v, want sma_crossover included", names)
	}
}

func TestBacktestEndpoint(t *testing.T) {
	body := `{"strategy":"sma_crossover","symbol":"AAPL","period":"1y"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/backtest", strings.NewReader(body))
	testRouter(t, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"total_return", "sharpe_ratio", "max_drawdown", "equity_curve"} {
		if _, ok := result[key]; !ok {
			t.Errorf("response missing %q", key)
		}
	}
}

func TestBacktestUnknownStrategy(t *testing.T) {
	body := `{"strategy":"hodl","symbol":"AAPL"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/backtest", strings.NewReader(body))
	testRouter(t, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBacktestRequiresPost(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/backtest", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestPortfolioEndpointsWithoutEngine(t *testing.T) {
	for _, path := range []string{"/api/v1/portfolio/summary", "/api/v1/positions", "/api/v1/orders"} {
		rec := httptest.NewRecorder()
		testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, rec.Code)
		}
	}
}

func TestPortfolioEndpointsWithEngine(t *testing.T) {
	engine := paper.New(paper.DefaultConfig())
	router := testRouter(t, engine)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/portfolio/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var summary map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if summary["portfolio_value"].(float64) != 10000 {
		t.Errorf("summary = %v", summary)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/orders", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("orders status = %d", rec.Code)
	}

	// No quote has been seen for the symbol: the order is refused up front.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/orders", strings.NewReader(`{"symbol":"AAPL","side":"buy","quantity":5}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("order status = %d, want 400", rec.Code)
	}
}
