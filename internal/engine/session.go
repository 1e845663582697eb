package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"signal-engine/internal/events"
	"signal-engine/internal/market"
	"signal-engine/internal/sim"
)

// Session is one streaming simulation run. It owns a private map of
// per-ticker simulators; nothing is shared across sessions except the
// engine's ownership registry, so independent backtests run concurrently
// without interference.
type Session struct {
	id  string
	eng *Engine
	cfg sim.Config

	mu       sync.Mutex
	sims     map[string]*sim.Simulator
	claimed  map[string]bool
	rejected map[string]bool
	closed   bool
}

// OpenSession validates cfg and creates an empty session. Tickers are
// claimed on their first bar; a ticker owned by another active session is
// rejected for this whole stream.
func (e *Engine) OpenSession(cfg sim.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &Session{
		id:       uuid.NewString(),
		eng:      e,
		cfg:      cfg,
		sims:     make(map[string]*sim.Simulator),
		claimed:  make(map[string]bool),
		rejected: make(map[string]bool),
	}, nil
}

// ID returns the session's run identifier.
func (s *Session) ID() string { return s.id }

// SetSentiment records the latest text-derived features for a ticker. Safe
// to call while Run is consuming bars; the simulator reads the last known
// values on its next bar.
func (s *Session) SetSentiment(ticker string, sentiment, eventImpact float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sm, ok := s.sims[ticker]; ok {
		sm.SetSentiment(sentiment, eventImpact)
		return
	}
	if !s.rejected[ticker] {
		sm := sim.NewSimulator(ticker, s.cfg)
		sm.SetSentiment(sentiment, eventImpact)
		s.sims[ticker] = sm
	}
}

// States snapshots the per-ticker simulator states.
func (s *Session) States() map[string]sim.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]sim.State, len(s.sims))
	for t, sm := range s.sims {
		out[t] = sm.State()
	}
	return out
}

// Run consumes the bar stream and emits one signal per accepted bar on out,
// closing out when it returns. Within a ticker, signals keep bar order and
// reflect only bars seen so far; across tickers no order is guaranteed.
// A failed ticker stops producing but never disturbs the others. On ctx
// cancellation every simulator moves to Cancelled, no further signals are
// flushed, and per-ticker state is released immediately.
func (s *Session) Run(ctx context.Context, bars <-chan market.Bar, out chan<- sim.Signal) error {
	defer close(out)
	defer s.Close()

	if s.eng.bus != nil {
		s.eng.bus.Publish(events.TopicRunStarted, s.id)
	}

	for {
		select {
		case <-ctx.Done():
			s.cancelAll()
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())

		case b, ok := <-bars:
			if !ok {
				s.finishAll()
				if s.eng.bus != nil {
					s.eng.bus.Publish(events.TopicRunCompleted, s.id)
				}
				return nil
			}

			sig, emit := s.step(b)
			if !emit {
				continue
			}
			select {
			case out <- sig:
			case <-ctx.Done():
				s.cancelAll()
				return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
			}
		}
	}
}

// step routes one bar to its simulator, creating and claiming it on first
// sight. The returned bool is false when the bar produced nothing to emit
// (rejected or already-terminal ticker).
func (s *Session) step(b market.Bar) (sim.Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejected[b.Ticker] {
		return sim.Signal{}, false
	}

	if !s.claimed[b.Ticker] {
		if err := s.eng.claim(b.Ticker, s.id); err != nil {
			s.rejected[b.Ticker] = true
			delete(s.sims, b.Ticker)
			log.Printf("session %s: %v", s.id, err)
			return sim.Signal{Ticker: b.Ticker, Timestamp: b.Timestamp, Err: err.Error()}, true
		}
		s.claimed[b.Ticker] = true
	} else if owner, ok := s.eng.ownerOf(b.Ticker); !ok || owner != s.id {
		// Ownership must hold for the whole stream; losing it mid-run is a
		// broken invariant, not a user error.
		err := fmt.Errorf("%w: ownership of %s lost mid-stream", ErrInternal, b.Ticker)
		s.rejected[b.Ticker] = true
		delete(s.sims, b.Ticker)
		log.Printf("session %s: %v", s.id, err)
		return sim.Signal{Ticker: b.Ticker, Timestamp: b.Timestamp, Err: err.Error()}, true
	}
	sm, ok := s.sims[b.Ticker]
	if !ok {
		sm = sim.NewSimulator(b.Ticker, s.cfg)
		s.sims[b.Ticker] = sm
	}

	if st := sm.State(); st != sim.StateIdle && st != sim.StateRunning {
		return sim.Signal{}, false
	}

	sig, fill, err := sm.OnBar(b)
	if s.eng.bus != nil {
		if err != nil {
			s.eng.bus.Publish(events.TopicSimFailed, sig)
		} else {
			s.eng.bus.Publish(events.TopicSignal, sig)
			if fill != nil {
				s.eng.bus.Publish(events.TopicFill, *fill)
			}
		}
	}
	if err != nil {
		log.Printf("session %s: ticker %s failed: %v", s.id, b.Ticker, err)
	}
	return sig, true
}

// Close releases every ticker claim. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.eng.release(s.id)
}

func (s *Session) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sm := range s.sims {
		sm.Cancel()
	}
}

func (s *Session) finishAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sm := range s.sims {
		sm.Finish()
	}
}
