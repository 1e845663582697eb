package db

import "time"

// Run is a stored backtest run header.
type Run struct {
	ID             string    `json:"id"`
	WeightsVersion string    `json:"weights_version"`
	Config         string    `json:"config"` // JSON snapshot of the sim config
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// TickerStats is the stored per-ticker summary of a run.
type TickerStats struct {
	RunID            string  `json:"run_id"`
	Ticker           string  `json:"ticker"`
	State            string  `json:"state"`
	Error            string  `json:"error,omitempty"`
	Signals          int     `json:"signals"`
	CumulativeReturn float64 `json:"cumulative_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	Sharpe           float64 `json:"sharpe"`
}

// FillRow is a stored simulated execution.
type FillRow struct {
	RunID     string    `json:"run_id"`
	Ticker    string    `json:"ticker"`
	Timestamp time.Time `json:"timestamp"`
	Side      string    `json:"side"`
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"`
}

// EquityRow is a stored equity curve point.
type EquityRow struct {
	RunID     string    `json:"run_id"`
	Ticker    string    `json:"ticker"`
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
	Drawdown  float64   `json:"drawdown"`
}
