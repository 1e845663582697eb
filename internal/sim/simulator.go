// Package sim implements the per-ticker execution simulator: a state machine
// that consumes a bar stream, scores every bar, and books simulated fills
// against a position/cash pair.
package sim

import (
	"fmt"
	"time"

	"signal-engine/internal/factors"
	"signal-engine/internal/market"
	"signal-engine/internal/scorer"
)

// Simulator owns the state for exactly one ticker. It is not safe for
// concurrent use; a streaming session drives each instance from one
// goroutine.
type Simulator struct {
	ticker string
	cfg    Config

	state  State
	bars   []market.Bar
	lastTS time.Time

	position  float64
	cash      float64
	lastPrice float64

	// Last known text-derived features; updated asynchronously, read per bar.
	sentiment   float64
	eventImpact float64

	err error
}

// NewSimulator builds an Idle simulator for one ticker. cfg must already be
// validated.
func NewSimulator(ticker string, cfg Config) *Simulator {
	return &Simulator{
		ticker: ticker,
		cfg:    cfg,
		state:  StateIdle,
		bars:   make([]market.Bar, 0, cfg.WindowCap),
		cash:   cfg.InitialCash,
	}
}

func (s *Simulator) Ticker() string    { return s.ticker }
func (s *Simulator) State() State      { return s.state }
func (s *Simulator) Position() float64 { return s.position }
func (s *Simulator) Cash() float64     { return s.cash }
func (s *Simulator) Err() error        { return s.err }

// Equity is cash plus the position marked at the last seen close.
func (s *Simulator) Equity() float64 {
	return s.cash + s.position*s.lastPrice
}

// SetSentiment records the latest text-derived features for this ticker.
// They are treated as last-known values, not re-fetched per bar.
func (s *Simulator) SetSentiment(sentiment, eventImpact float64) {
	s.sentiment = sentiment
	s.eventImpact = eventImpact
}

// OnBar runs one step of the per-bar transition: window append, factor
// computation, scoring, fill decision, signal emission. A malformed bar
// moves the simulator to Failed and returns an explicit error signal;
// position and cash are left untouched.
func (s *Simulator) OnBar(b market.Bar) (Signal, *Fill, error) {
	switch s.state {
	case StateIdle:
		s.state = StateRunning
	case StateRunning:
	default:
		err := fmt.Errorf("simulator for %s is %s, not accepting bars", s.ticker, s.state)
		return s.errorSignal(b.Timestamp, err), nil, err
	}

	if err := s.validateBar(b); err != nil {
		return s.fail(b.Timestamp, err), nil, err
	}

	s.appendBar(b)

	vec := factors.Compute(s.bars, s.cfg.Factors)
	score, strength := scorer.Score(vec, s.sentiment, s.eventImpact, s.cfg.Weights)

	fill := s.maybeFill(score, b)
	s.lastTS = b.Timestamp
	s.lastPrice = b.Close

	sig := Signal{
		Ticker:         s.ticker,
		Timestamp:      b.Timestamp,
		Score:          score,
		Strength:       strength,
		WeightsVersion: s.cfg.Weights.Version,
		Price:          b.Close,
		Position:       s.position,
		Cash:           s.cash,
		Filled:         fill != nil,
	}
	if fill != nil {
		sig.FillPrice = fill.Price
	}
	return sig, fill, nil
}

// Finish marks natural end of stream.
func (s *Simulator) Finish() {
	if s.state == StateRunning || s.state == StateIdle {
		s.state = StateCompleted
	}
}

// Cancel marks cooperative cancellation; no further signals are produced.
func (s *Simulator) Cancel() {
	if s.state == StateRunning || s.state == StateIdle {
		s.state = StateCancelled
	}
}

func (s *Simulator) validateBar(b market.Bar) error {
	if b.Ticker != s.ticker {
		return fmt.Errorf("bar ticker %s routed to simulator for %s", b.Ticker, s.ticker)
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if !s.lastTS.IsZero() && !b.Timestamp.After(s.lastTS) {
		return fmt.Errorf("non-monotonic timestamp for %s: %s after %s",
			s.ticker, b.Timestamp.Format(time.RFC3339), s.lastTS.Format(time.RFC3339))
	}
	return nil
}

// appendBar keeps the bar window at WindowCap by shifting in place, so a
// stream of any length holds constant memory.
func (s *Simulator) appendBar(b market.Bar) {
	if len(s.bars) == s.cfg.WindowCap {
		copy(s.bars, s.bars[1:])
		s.bars[len(s.bars)-1] = b
		return
	}
	s.bars = append(s.bars, b)
}

// maybeFill applies the deterministic fill policy: when the score crosses
// the threshold against the current position sign, move to the unit
// position at the close adjusted by slippage. Position and cash are
// assigned together; no intermediate state is observable.
func (s *Simulator) maybeFill(score float64, b market.Bar) *Fill {
	switch {
	case score >= s.cfg.FillThreshold && s.position <= 0:
		qty := s.cfg.UnitPosition - s.position
		price := b.Close * (1 + s.cfg.SlippageFrac)
		s.position, s.cash = s.cfg.UnitPosition, s.cash-qty*price
		return &Fill{Ticker: s.ticker, Timestamp: b.Timestamp, Side: "BUY", Qty: qty, Price: price}

	case score <= -s.cfg.FillThreshold && s.position >= 0:
		qty := s.position + s.cfg.UnitPosition
		price := b.Close * (1 - s.cfg.SlippageFrac)
		s.position, s.cash = -s.cfg.UnitPosition, s.cash+qty*price
		return &Fill{Ticker: s.ticker, Timestamp: b.Timestamp, Side: "SELL", Qty: qty, Price: price}
	}
	return nil
}

func (s *Simulator) fail(ts time.Time, err error) Signal {
	s.state = StateFailed
	s.err = err
	return s.errorSignal(ts, err)
}

func (s *Simulator) errorSignal(ts time.Time, err error) Signal {
	return Signal{
		Ticker:         s.ticker,
		Timestamp:      ts,
		WeightsVersion: s.cfg.Weights.Version,
		Position:       s.position,
		Cash:           s.cash,
		Err:            err.Error(),
	}
}
