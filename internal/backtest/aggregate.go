// Package backtest turns the engine's signal stream into performance
// reports: equity curves, drawdown, and summary statistics. Everything here
// is derived and recomputable from the signals plus the price series; the
// engine itself persists nothing.
package backtest

import (
	"math"
	"time"

	"signal-engine/internal/sim"
)

// EquityPoint is one realized PnL observation on a ticker's curve.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
	Drawdown  float64   `json:"drawdown"`
}

// TickerResult is the per-ticker outcome of one run.
type TickerResult struct {
	Ticker           string        `json:"ticker"`
	State            string        `json:"state"`
	Err              string        `json:"error,omitempty"`
	Signals          int           `json:"signals"`
	Fills            []sim.Fill    `json:"fills"`
	Equity           []EquityPoint `json:"equity"`
	CumulativeReturn float64       `json:"cumulative_return"`
	MaxDrawdown      float64       `json:"max_drawdown"`
	Sharpe           float64       `json:"sharpe"`
}

// Report is the aggregate of one simulation run.
type Report struct {
	RunID          string         `json:"run_id"`
	WeightsVersion string         `json:"weights_version"`
	CreatedAt      time.Time      `json:"created_at"`
	Tickers        []TickerResult `json:"tickers"`
}

// Curve builds an equity curve from a ticker's signal trace, tracking
// drawdown against the running peak.
func Curve(signals []sim.Signal) []EquityPoint {
	points := make([]EquityPoint, 0, len(signals))
	peak := math.Inf(-1)
	for _, s := range signals {
		if s.Err != "" {
			continue
		}
		eq := s.Cash + s.Position*s.Price
		if eq > peak {
			peak = eq
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - eq) / peak
		}
		points = append(points, EquityPoint{Timestamp: s.Timestamp, Equity: eq, Drawdown: dd})
	}
	return points
}

// Summarize computes cumulative return, max drawdown and a Sharpe-like
// ratio (mean over stddev of per-point returns, no annualization) from an
// equity curve.
func Summarize(initialCash float64, curve []EquityPoint) (cumReturn, maxDrawdown, sharpe float64) {
	if len(curve) == 0 {
		return 0, 0, 0
	}
	if initialCash > 0 {
		cumReturn = curve[len(curve)-1].Equity/initialCash - 1
	}
	for _, p := range curve {
		if p.Drawdown > maxDrawdown {
			maxDrawdown = p.Drawdown
		}
	}

	if len(curve) < 2 {
		return cumReturn, maxDrawdown, 0
	}
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		rets = append(rets, curve[i].Equity/prev-1)
	}
	if len(rets) == 0 {
		return cumReturn, maxDrawdown, 0
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

	if variance == 0 {
		return cumReturn, maxDrawdown, 0
	}
	return cumReturn, maxDrawdown, mean / math.Sqrt(variance)
}
