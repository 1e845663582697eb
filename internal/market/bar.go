package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV observation for a ticker.
// Bars for a ticker must be strictly increasing in timestamp.
type Bar struct {
	Ticker    string    `json:"ticker"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

var (
	ErrEmptyTicker = errors.New("bar has empty ticker")
	ErrBadPrice    = errors.New("bar has NaN, infinite or non-positive price")
	ErrBadVolume   = errors.New("bar has negative or non-finite volume")
)

// Validate rejects bars the engine must never feed into factor math.
func (b Bar) Validate() error {
	if b.Ticker == "" {
		return ErrEmptyTicker
	}
	for _, p := range [4]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return fmt.Errorf("%w: %s at %s", ErrBadPrice, b.Ticker, b.Timestamp.Format(time.RFC3339))
		}
	}
	if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
		return fmt.Errorf("%w: %s at %s", ErrBadVolume, b.Ticker, b.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// ValidateSeries checks a single-ticker bar sequence: non-empty, one ticker,
// valid prices, strictly increasing timestamps.
func ValidateSeries(bars []Bar) error {
	if len(bars) == 0 {
		return errors.New("empty bar sequence")
	}
	ticker := bars[0].Ticker
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return err
		}
		if b.Ticker != ticker {
			return fmt.Errorf("mixed tickers in sequence: %s and %s", ticker, b.Ticker)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("non-monotonic timestamp for %s at index %d", ticker, i)
		}
	}
	return nil
}

// Closes extracts closing prices in bar order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
