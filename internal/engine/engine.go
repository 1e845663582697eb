// Package engine is the coordinator-facing API: batch signal computation and
// streaming execution simulation over per-ticker simulators.
package engine

import (
	"fmt"
	"runtime"
	"sync"

	"signal-engine/internal/events"
	"signal-engine/internal/factors"
	"signal-engine/internal/market"
	"signal-engine/internal/scorer"
	"signal-engine/internal/sim"
)

// FactorInput is one independent unit of batch computation: a window of
// price history for a single ticker plus its contemporaneous text-derived
// features.
type FactorInput struct {
	Bars        []market.Bar `json:"bars"`
	Sentiment   float64      `json:"sentiment"`
	EventImpact float64      `json:"event_impact"`
}

// Result pairs a signal with the per-item error, if any. Errors on one item
// never affect the others.
type Result struct {
	Signal sim.Signal
	Err    error
}

// Engine hosts batch computation and tracks exclusive ticker ownership
// across active streaming sessions. It holds no per-ticker market state
// itself; each session owns its own simulator map.
type Engine struct {
	bus     *events.Bus
	workers int

	mu    sync.Mutex
	owned map[string]string // ticker -> session ID
}

// New builds an engine. workers bounds batch parallelism; zero or negative
// means GOMAXPROCS.
func New(bus *events.Bus, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		bus:     bus,
		workers: workers,
		owned:   make(map[string]string),
	}
}

// ComputeSignals scores each input independently and returns results in
// request order. Inputs share no state, so they are computed in parallel;
// processing order cannot affect any output value. The call completes as a
// unit and is not cancellable mid-flight.
func (e *Engine) ComputeSignals(fcfg factors.Config, weights scorer.Weights, inputs []FactorInput) ([]Result, error) {
	if err := fcfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	results := make([]Result, len(inputs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = computeOne(fcfg, weights, inputs[i])
			}
		}()
	}
	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

func computeOne(fcfg factors.Config, weights scorer.Weights, in FactorInput) Result {
	if err := market.ValidateSeries(in.Bars); err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrInvalidInput, err)}
	}

	vec := factors.Compute(in.Bars, fcfg)
	score, strength := scorer.Score(vec, in.Sentiment, in.EventImpact, weights)

	last := in.Bars[len(in.Bars)-1]
	return Result{Signal: sim.Signal{
		Ticker:         last.Ticker,
		Timestamp:      last.Timestamp,
		Score:          score,
		Strength:       strength,
		WeightsVersion: weights.Version,
		Price:          last.Close,
	}}
}

// claim takes exclusive ownership of a ticker for a session. A second
// concurrent claim is a configuration error, rejected outright rather than
// resolved by locking.
func (e *Engine) claim(ticker, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if owner, ok := e.owned[ticker]; ok && owner != sessionID {
		return fmt.Errorf("%w: %s", ErrStateConflict, ticker)
	}
	e.owned[ticker] = sessionID
	return nil
}

// ownerOf reports which session currently owns a ticker.
func (e *Engine) ownerOf(ticker string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	owner, ok := e.owned[ticker]
	return owner, ok
}

// release drops ownership of every ticker held by a session.
func (e *Engine) release(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ticker, owner := range e.owned {
		if owner == sessionID {
			delete(e.owned, ticker)
		}
	}
}
