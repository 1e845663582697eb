package backtest

import (
	"context"
	"errors"
	"sort"
	"time"

	"signal-engine/internal/engine"
	"signal-engine/internal/market"
	"signal-engine/internal/sim"
)

// Sentiment is the last-known text-derived feature pair for one ticker,
// applied before the replay starts.
type Sentiment struct {
	Sentiment   float64 `json:"sentiment"`
	EventImpact float64 `json:"event_impact"`
}

// Runner replays historical bars through a streaming session and aggregates
// the resulting signal trace into a Report.
type Runner struct {
	eng *engine.Engine
}

// NewRunner wraps an engine for batch backtests.
func NewRunner(eng *engine.Engine) *Runner {
	return &Runner{eng: eng}
}

// Run feeds bars in the given order (multi-ticker interleaving allowed)
// through one session and summarizes per ticker. ctx cancellation aborts
// the replay; partial results are discarded.
func (r *Runner) Run(ctx context.Context, cfg sim.Config, bars []market.Bar, sentiments map[string]Sentiment) (*Report, error) {
	if len(bars) == 0 {
		return nil, errors.New("no bars to replay")
	}

	session, err := r.eng.OpenSession(cfg)
	if err != nil {
		return nil, err
	}

	for ticker, s := range sentiments {
		session.SetSentiment(ticker, s.Sentiment, s.EventImpact)
	}

	in := make(chan market.Bar)
	out := make(chan sim.Signal, 64)
	runErr := make(chan error, 1)

	go func() {
		runErr <- session.Run(ctx, in, out)
	}()
	go func() {
		defer close(in)
		for _, b := range bars {
			select {
			case in <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	byTicker := make(map[string][]sim.Signal)
	for sig := range out {
		byTicker[sig.Ticker] = append(byTicker[sig.Ticker], sig)
	}
	if err := <-runErr; err != nil {
		return nil, err
	}

	states := session.States()

	report := &Report{
		RunID:          session.ID(),
		WeightsVersion: cfg.Weights.Version,
		CreatedAt:      time.Now().UTC(),
	}
	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, t := range tickers {
		signals := byTicker[t]
		// A ticker rejected at claim time never got a simulator; reporting
		// the zero state would read as IDLE next to the conflict error.
		state := "REJECTED"
		if st, ok := states[t]; ok {
			state = st.String()
		}
		res := TickerResult{
			Ticker:  t,
			Signals: len(signals),
			State:   state,
			Fills:   fills(signals),
			Equity:  Curve(signals),
		}
		for _, s := range signals {
			if s.Err != "" {
				res.Err = s.Err
			}
		}
		res.CumulativeReturn, res.MaxDrawdown, res.Sharpe = Summarize(cfg.InitialCash, res.Equity)
		report.Tickers = append(report.Tickers, res)
	}
	return report, nil
}

// fills reconstructs the fill records from the signal trace. Prices come
// from FillPrice, the executed (slippage-adjusted) price the cash ledger
// moved at, never the raw close.
func fills(signals []sim.Signal) []sim.Fill {
	var out []sim.Fill
	prevPos := 0.0
	for _, s := range signals {
		if s.Err != "" || !s.Filled {
			continue
		}
		qty := s.Position - prevPos
		side := "BUY"
		if qty < 0 {
			side = "SELL"
			qty = -qty
		}
		out = append(out, sim.Fill{
			Ticker:    s.Ticker,
			Timestamp: s.Timestamp,
			Side:      side,
			Qty:       qty,
			Price:     s.FillPrice,
		})
		prevPos = s.Position
	}
	return out
}
