// Package factors derives technical factors from price history.
// Every function here is pure: no state, no I/O, and a fixed ascending
// summation order so repeated runs on identical input are bit-identical.
package factors

import (
	"errors"
	"math"

	"signal-engine/internal/market"
)

// Config declares the lookback window for each factor.
type Config struct {
	ShortWindow    int `json:"short_window" yaml:"short_window"`       // bars back for the short return
	LongWindow     int `json:"long_window" yaml:"long_window"`         // bars back for the long return
	VolWindow      int `json:"vol_window" yaml:"vol_window"`           // bar-to-bar returns in the volatility estimate
	MomentumWindow int `json:"momentum_window" yaml:"momentum_window"` // SMA length for the momentum factor
}

// DefaultConfig returns the windows used when a caller supplies none.
func DefaultConfig() Config {
	return Config{
		ShortWindow:    1,
		LongWindow:     20,
		VolWindow:      10,
		MomentumWindow: 10,
	}
}

// Validate rejects non-positive windows.
func (c Config) Validate() error {
	if c.ShortWindow <= 0 || c.LongWindow <= 0 || c.VolWindow <= 0 || c.MomentumWindow <= 0 {
		return errors.New("factor windows must be positive")
	}
	return nil
}

// MinBars is the history length at which every factor is fully defined.
// Shorter histories still compute; undersized factors fall back to 0.
func (c Config) MinBars() int {
	n := c.ShortWindow + 1
	if v := c.LongWindow + 1; v > n {
		n = v
	}
	if v := c.VolWindow + 1; v > n {
		n = v
	}
	if v := c.MomentumWindow; v > n {
		n = v
	}
	return n
}

// Vector is the fixed-shape factor output consumed by the scorer.
type Vector struct {
	ShortReturn float64 `json:"short_return"`
	LongReturn  float64 `json:"long_return"`
	Volatility  float64 `json:"volatility"`
	Momentum    float64 `json:"momentum"`
}

// Compute derives all factors from a single-ticker bar sequence.
// A window shorter than a factor's minimum yields 0 for that factor,
// never an error.
func Compute(bars []market.Bar, cfg Config) Vector {
	closes := market.Closes(bars)
	return Vector{
		ShortReturn: Return(closes, cfg.ShortWindow),
		LongReturn:  Return(closes, cfg.LongWindow),
		Volatility:  Volatility(closes, cfg.VolWindow),
		Momentum:    Momentum(closes, cfg.MomentumWindow),
	}
}

// Return is the fractional price change over the last period bars.
// Needs period+1 closes; returns 0 below that.
func Return(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 0
	}
	base := closes[len(closes)-1-period]
	if base == 0 {
		return 0
	}
	return (closes[len(closes)-1] - base) / base
}

// Volatility is the population standard deviation of the last period
// bar-to-bar returns. Needs period+1 closes; returns 0 below that.
func Volatility(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 0
	}
	rets := make([]float64, 0, period)
	for i := len(closes) - period; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return 0
		}
		rets = append(rets, (closes[i]-closes[i-1])/closes[i-1])
	}

	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	variance := 0.0
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rets))

	return math.Sqrt(variance)
}

// Momentum compares the latest close to its period SMA, as a fraction.
// Needs period closes; returns 0 below that.
func Momentum(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	sma := SMA(closes, period)
	if sma == 0 {
		return 0
	}
	return closes[len(closes)-1]/sma - 1
}

// SMA is the simple moving average of the last period closes.
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period)
}
