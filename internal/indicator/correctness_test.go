package indicator

import (
	"math"
	"testing"
)

const eps = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6
}

func TestSMA_WarmupAndValues(t *testing.T) {
	s := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if len(s) != 5 {
		t.Fatalf("expected len=5, got %d", len(s))
	}
	if s.Defined(0) || s.Defined(1) {
		t.Errorf("warmup points must be undefined")
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		idx := i + 2
		if !s.Defined(idx) || !almostEqual(s[idx], w) {
			t.Errorf("SMA[%d]: expected %.4f, got %.4f", idx, w, s[idx])
		}
	}
}

func TestSMA_UndefinedIsNotZero(t *testing.T) {
	s := SMA([]float64{0, 0, 0}, 2)
	if s.Defined(0) {
		t.Errorf("index 0 must be undefined")
	}
	if !s.Defined(1) || s[1] != 0 {
		t.Errorf("index 1 must be a defined zero, got %v", s[1])
	}
}

func TestEMA_Recurrence(t *testing.T) {
	s := EMA([]float64{1, 2, 3}, 2)
	alpha := 2.0 / 3.0
	e1 := alpha*2 + (1-alpha)*1
	e2 := alpha*3 + (1-alpha)*e1
	if !almostEqual(s[0], 1) || !almostEqual(s[1], e1) || !almostEqual(s[2], e2) {
		t.Errorf("EMA mismatch: got %v, want [1 %.6f %.6f]", s, e1, e2)
	}
}

func TestEMA_ConstantSeries(t *testing.T) {
	s := EMA([]float64{10, 10, 10, 10}, 3)
	for i := range s {
		if !almostEqual(s[i], 10) {
			t.Errorf("EMA[%d]: expected 10, got %v", i, s[i])
		}
	}
}

func TestRSI_KnownValue(t *testing.T) {
	prices := []float64{44.00, 44.34, 44.09, 44.15, 43.61, 44.33}
	s := RSI(prices, 5)
	for i := 0; i < 5; i++ {
		if s.Defined(i) {
			t.Errorf("RSI[%d]: expected undefined during warmup", i)
		}
	}
	// avgGain = 1.12/5, avgLoss = 0.79/5
	rs := (1.12 / 5) / (0.79 / 5)
	want := 100 - 100/(1+rs)
	if !s.Defined(5) || math.Abs(s[5]-want) > 1e-3 {
		t.Errorf("RSI[5]: expected %.4f, got %.4f", want, s[5])
	}
}

func TestRSI_ZeroLossIsUndefined(t *testing.T) {
	s := RSI([]float64{1, 2, 3, 4, 5, 6}, 3)
	for i := range s {
		if s.Defined(i) {
			t.Errorf("RSI[%d]: expected undefined when loss average is zero", i)
		}
	}
}

func TestBollinger_Values(t *testing.T) {
	b := Bollinger([]float64{1, 2, 3, 4, 5}, 3, 2)
	// window [1,2,3]: mean=2, sample std=1
	if !almostEqual(b.Middle[2], 2) || !almostEqual(b.Upper[2], 4) || !almostEqual(b.Lower[2], 0) {
		t.Errorf("bands at 2: got mid=%v up=%v low=%v", b.Middle[2], b.Upper[2], b.Lower[2])
	}
	if !almostEqual(b.Width[2], 200) {
		t.Errorf("width at 2: expected 200, got %v", b.Width[2])
	}
	if b.Upper.Defined(1) {
		t.Errorf("warmup band point must be undefined")
	}
}

func TestMACD_HistogramRelation(t *testing.T) {
	values := []float64{1, 3, 2, 5, 4, 7, 6, 9, 8, 11}
	m := MACD(values, 3, 6, 4)
	for i := range values {
		if !m.Line.Defined(i) || !m.Signal.Defined(i) {
			t.Fatalf("MACD[%d]: expected defined, got line=%v signal=%v", i, m.Line[i], m.Signal[i])
		}
		if !almostEqual(m.Histogram[i], m.Line[i]-m.Signal[i]) {
			t.Errorf("histogram[%d] != line-signal", i)
		}
	}
}

func TestStochastic_Bounds(t *testing.T) {
	high := []float64{2, 3, 4, 5}
	low := []float64{0, 1, 2, 3}
	close := []float64{1, 2, 3, 4}
	st := Stochastic(high, low, close, 2, 2)
	if st.K.Defined(0) {
		t.Errorf("%%K warmup point must be undefined")
	}
	// window highs [2,3] max=3, lows [0,1] min=0 -> K = 100*(2-0)/3
	if !almostEqual(st.K[1], 100.0*2/3) {
		t.Errorf("%%K[1]: expected %.4f, got %.4f", 100.0*2/3, st.K[1])
	}
	for i := range close {
		if st.K.Defined(i) && (st.K[i] < -eps || st.K[i] > 100+eps) {
			t.Errorf("%%K[%d] out of bounds: %v", i, st.K[i])
		}
	}
}

func TestStochastic_FlatWindowUndefined(t *testing.T) {
	flat := []float64{5, 5, 5}
	st := Stochastic(flat, flat, flat, 2, 2)
	for i := range flat {
		if st.K.Defined(i) {
			t.Errorf("%%K[%d]: expected undefined on zero-range window", i)
		}
	}
}

func TestATR_Values(t *testing.T) {
	high := []float64{2, 3}
	low := []float64{1, 1}
	close := []float64{1.5, 2}
	s := ATR(high, low, close, 2)
	if s.Defined(0) {
		t.Errorf("ATR[0] must be undefined")
	}
	// TR = [1, max(2, 1.5, 0.5)] = [1, 2]
	if !almostEqual(s[1], 1.5) {
		t.Errorf("ATR[1]: expected 1.5, got %v", s[1])
	}
}

func TestWilliamsR_Extremes(t *testing.T) {
	high := []float64{10, 10, 10}
	low := []float64{5, 5, 5}
	s := WilliamsR(high, low, []float64{10, 10, 5}, 2)
	if !almostEqual(s[1], 0) {
		t.Errorf("close at highest high should give 0, got %v", s[1])
	}
	if !almostEqual(s[2], -100) {
		t.Errorf("close at lowest low should give -100, got %v", s[2])
	}
}

func TestADX_WarmupAndRange(t *testing.T) {
	var high, low, close []float64
	for i := 0; i < 12; i++ {
		base := 100 + float64(i)*2
		high = append(high, base+1)
		low = append(low, base-1)
		close = append(close, base)
	}
	s := ADX(high, low, close, 3)
	for i := 0; i < 4; i++ {
		if s.Defined(i) {
			t.Errorf("ADX[%d]: expected undefined during warmup", i)
		}
	}
	if !s.Defined(6) {
		t.Fatalf("ADX[6]: expected defined")
	}
	for i := range s {
		if s.Defined(i) && (s[i] < -eps || s[i] > 100+eps) {
			t.Errorf("ADX[%d] out of range: %v", i, s[i])
		}
	}
}

func TestRollingMean_NaNPropagation(t *testing.T) {
	values := []float64{math.NaN(), 2, 3, 4}
	s := rollingMean(values, 2)
	if s.Defined(1) {
		t.Errorf("window containing NaN must be undefined")
	}
	if !s.Defined(2) || !almostEqual(s[2], 2.5) {
		t.Errorf("expected 2.5 at index 2, got %v", s[2])
	}
}
