package factors

import (
	"testing"
	"time"

	"signal-engine/internal/market"
)

func barsFromCloses(ticker string, closes []float64) []market.Bar {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Ticker:    ticker,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		}
	}
	return bars
}

func TestReturnKnownValues(t *testing.T) {
	closes := []float64{100, 110}
	if got := Return(closes, 1); got != 0.1 {
		t.Errorf("Return(1) = %v, want 0.1", got)
	}
	if got := Return([]float64{100, 90}, 1); got != -0.1 {
		t.Errorf("Return(1) = %v, want -0.1", got)
	}
}

func TestShortHistoryYieldsNeutralDefaults(t *testing.T) {
	cfg := DefaultConfig()
	bars := barsFromCloses("XYZ", []float64{100})

	vec := Compute(bars, cfg)
	if vec != (Vector{}) {
		t.Errorf("one-bar history should yield all-zero factors, got %+v", vec)
	}
}

func TestPartialHistoryDegradesPerFactor(t *testing.T) {
	cfg := Config{ShortWindow: 1, LongWindow: 50, VolWindow: 50, MomentumWindow: 50}
	bars := barsFromCloses("XYZ", []float64{100, 101, 102})

	vec := Compute(bars, cfg)
	if vec.ShortReturn == 0 {
		t.Error("short return should be defined with 3 bars")
	}
	if vec.LongReturn != 0 || vec.Volatility != 0 || vec.Momentum != 0 {
		t.Errorf("undersized factors should default to 0, got %+v", vec)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	closes := make([]float64, 0, 64)
	price := 100.0
	for i := 0; i < 64; i++ {
		// deterministic pseudo-walk
		if i%3 == 0 {
			price *= 1.013
		} else {
			price *= 0.996
		}
		closes = append(closes, price)
	}
	bars := barsFromCloses("XYZ", closes)

	first := Compute(bars, cfg)
	for i := 0; i < 100; i++ {
		if got := Compute(bars, cfg); got != first {
			t.Fatalf("run %d: factors differ: %+v vs %+v", i, got, first)
		}
	}
}

func TestVolatilityZeroOnFlatSeries(t *testing.T) {
	closes := []float64{50, 50, 50, 50, 50, 50}
	if got := Volatility(closes, 5); got != 0 {
		t.Errorf("flat series volatility = %v, want 0", got)
	}
}

func TestMomentumAboveAndBelowSMA(t *testing.T) {
	rising := []float64{100, 100, 100, 100, 120}
	if got := Momentum(rising, 5); got <= 0 {
		t.Errorf("momentum above SMA should be positive, got %v", got)
	}
	falling := []float64{100, 100, 100, 100, 80}
	if got := Momentum(falling, 5); got >= 0 {
		t.Errorf("momentum below SMA should be negative, got %v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	bad := Config{ShortWindow: 0, LongWindow: 20, VolWindow: 10, MomentumWindow: 10}
	if err := bad.Validate(); err == nil {
		t.Error("zero window should fail validation")
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestMinBarsCoversEveryWindow(t *testing.T) {
	cfg := Config{ShortWindow: 3, LongWindow: 30, VolWindow: 12, MomentumWindow: 40}
	if got := cfg.MinBars(); got != 40 {
		t.Errorf("MinBars = %d, want 40", got)
	}
	cfg.MomentumWindow = 5
	if got := cfg.MinBars(); got != 31 {
		t.Errorf("MinBars = %d, want 31 (long window + 1)", got)
	}
}
