package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"signal-engine/internal/events"
	"signal-engine/internal/market"
	"signal-engine/internal/sim"
)

func runSession(t *testing.T, s *Session, bars []market.Bar) ([]sim.Signal, error) {
	t.Helper()
	in := make(chan market.Bar)
	out := make(chan sim.Signal, len(bars)+1)
	done := make(chan error, 1)

	go func() { done <- s.Run(context.Background(), in, out) }()
	for _, b := range bars {
		in <- b
	}
	close(in)

	var signals []sim.Signal
	for sig := range out {
		signals = append(signals, sig)
	}
	return signals, <-done
}

func TestSessionPerTickerOrdering(t *testing.T) {
	eng := New(events.NewBus(), 2)
	s, err := eng.OpenSession(sim.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	bars := []market.Bar{
		bar("AAA", 0, 100), bar("BBB", 0, 50),
		bar("AAA", 1, 101), bar("BBB", 1, 51),
		bar("AAA", 2, 102),
	}
	signals, err := runSession(t, s, bars)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(signals) != len(bars) {
		t.Fatalf("got %d signals for %d bars", len(signals), len(bars))
	}

	lastTS := map[string]time.Time{}
	for _, sig := range signals {
		if prev, ok := lastTS[sig.Ticker]; ok && !sig.Timestamp.After(prev) {
			t.Errorf("%s signals out of order", sig.Ticker)
		}
		lastTS[sig.Ticker] = sig.Timestamp
	}
}

func TestSessionFailureIsolation(t *testing.T) {
	eng := New(events.NewBus(), 2)
	s, err := eng.OpenSession(sim.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	nan := bar("AAA", 1, 100)
	nan.Close = math.NaN()

	bars := []market.Bar{
		bar("AAA", 0, 100),
		bar("BBB", 0, 50),
		nan,
		bar("BBB", 1, 51),
		bar("AAA", 2, 102), // ignored, A already failed
	}
	signals, err := runSession(t, s, bars)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var aSignals, bSignals, aErrors int
	for _, sig := range signals {
		switch sig.Ticker {
		case "AAA":
			aSignals++
			if sig.Err != "" {
				aErrors++
			}
		case "BBB":
			bSignals++
			if sig.Err != "" {
				t.Errorf("B emitted error signal: %s", sig.Err)
			}
		}
	}
	if bSignals != 2 {
		t.Errorf("B emitted %d signals, want 2 (unaffected by A's failure)", bSignals)
	}
	if aErrors != 1 {
		t.Errorf("A emitted %d error signals, want exactly 1", aErrors)
	}
	if aSignals != 2 { // one valid, one error, trailing bar dropped
		t.Errorf("A emitted %d signals, want 2", aSignals)
	}
	if st := s.States()["AAA"]; st != sim.StateFailed {
		t.Errorf("A state = %s, want FAILED", st)
	}
	if st := s.States()["BBB"]; st != sim.StateCompleted {
		t.Errorf("B state = %s, want COMPLETED", st)
	}
}

func TestSessionTickerOwnershipConflict(t *testing.T) {
	eng := New(events.NewBus(), 2)

	s1, err := eng.OpenSession(sim.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenSession s1: %v", err)
	}
	s2, err := eng.OpenSession(sim.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenSession s2: %v", err)
	}

	in1 := make(chan market.Bar)
	out1 := make(chan sim.Signal, 16)
	done1 := make(chan error, 1)
	go func() { done1 <- s1.Run(context.Background(), in1, out1) }()

	in1 <- bar("AAA", 0, 100)
	<-out1 // AAA now owned by s1

	// Second stream claiming AAA is rejected for that ticker.
	signals, err := runSession(t, s2, []market.Bar{bar("AAA", 0, 100), bar("BBB", 0, 50)})
	if err != nil {
		t.Fatalf("s2 Run: %v", err)
	}
	var sawConflict, sawB bool
	for _, sig := range signals {
		if sig.Ticker == "AAA" && sig.Err != "" {
			sawConflict = true
		}
		if sig.Ticker == "BBB" && sig.Err == "" {
			sawB = true
		}
	}
	if !sawConflict {
		t.Error("expected conflict error signal for AAA on second stream")
	}
	if !sawB {
		t.Error("unowned ticker BBB should still stream on second session")
	}

	close(in1)
	for range out1 {
	}
	if err := <-done1; err != nil {
		t.Fatalf("s1 Run: %v", err)
	}

	// Ownership is released when the first stream ends.
	s3, err := eng.OpenSession(sim.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenSession s3: %v", err)
	}
	signals, err = runSession(t, s3, []market.Bar{bar("AAA", 0, 100)})
	if err != nil {
		t.Fatalf("s3 Run: %v", err)
	}
	if len(signals) != 1 || signals[0].Err != "" {
		t.Errorf("released ticker should stream again, got %+v", signals)
	}
}

func TestSessionLostOwnershipIsInternalError(t *testing.T) {
	eng := New(events.NewBus(), 2)
	s, err := eng.OpenSession(sim.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	in := make(chan market.Bar)
	out := make(chan sim.Signal, 16)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), in, out) }()

	in <- bar("AAA", 0, 100)
	if sig := <-out; sig.Err != "" {
		t.Fatalf("first bar errored: %s", sig.Err)
	}

	// Drop ownership out from under the live stream.
	eng.release(s.ID())

	in <- bar("AAA", 1, 101)
	sig := <-out
	if sig.Err == "" {
		t.Fatal("expected error signal after losing ownership mid-stream")
	}
	if !strings.Contains(sig.Err, ErrInternal.Error()) {
		t.Errorf("error = %q, want wrapped ErrInternal", sig.Err)
	}

	close(in)
	for range out {
	}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSessionCancellation(t *testing.T) {
	eng := New(events.NewBus(), 2)
	s, err := eng.OpenSession(sim.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan market.Bar)
	out := make(chan sim.Signal, 16)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, in, out) }()

	in <- bar("AAA", 0, 100)
	<-out

	cancel()
	if err := <-done; !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run error = %v, want ErrCancelled", err)
	}
	if st := s.States()["AAA"]; st != sim.StateCancelled {
		t.Errorf("state = %s, want CANCELLED", st)
	}

	// State is released immediately; a new session may claim the ticker.
	s2, err := eng.OpenSession(sim.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenSession s2: %v", err)
	}
	signals, err := runSession(t, s2, []market.Bar{bar("AAA", 0, 100)})
	if err != nil {
		t.Fatalf("s2 Run: %v", err)
	}
	if len(signals) != 1 || signals[0].Err != "" {
		t.Errorf("cancelled ticker should be claimable, got %+v", signals)
	}
}

func TestSessionSentimentAffectsSignals(t *testing.T) {
	eng := New(events.NewBus(), 2)
	s, err := eng.OpenSession(sim.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	s.SetSentiment("AAA", 0.9, 0.5)

	signals, err := runSession(t, s, []market.Bar{bar("AAA", 0, 100)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	if signals[0].Score <= 0 {
		t.Errorf("positive sentiment should push score positive, got %v", signals[0].Score)
	}
}

func TestOpenSessionRejectsBadConfig(t *testing.T) {
	eng := New(events.NewBus(), 2)
	cfg := sim.DefaultConfig()
	cfg.WindowCap = -1
	if _, err := eng.OpenSession(cfg); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}
