package sim

import "time"

// State is the lifecycle of one per-ticker simulator.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateCancelled:
		return "CANCELLED"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Signal is the per-bar output of the engine. Score encodes direction (sign)
// and conviction (magnitude); Strength is the sizing weight in [0,1].
// Position, Cash and Price expose the simulated execution trace so the
// aggregation layer can recompute equity without engine state.
type Signal struct {
	Ticker         string    `json:"ticker"`
	Timestamp      time.Time `json:"timestamp"`
	Score          float64   `json:"score"`
	Strength       float64   `json:"strength"`
	WeightsVersion string    `json:"weights_version"`
	Price          float64   `json:"price"`
	Position       float64   `json:"position"`
	Cash           float64   `json:"cash"`
	Filled         bool      `json:"filled"`

	// FillPrice is the executed price when Filled, slippage included. Price
	// above is the raw close; the cash ledger moves at FillPrice.
	FillPrice float64 `json:"fill_price,omitempty"`

	Err string `json:"error,omitempty"`
}

// Fill records one simulated execution.
type Fill struct {
	Ticker    string    `json:"ticker"`
	Timestamp time.Time `json:"timestamp"`
	Side      string    `json:"side"` // BUY or SELL
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"`
}
