package backtest

import (
	"context"
	"encoding/json"
	"fmt"

	"signal-engine/internal/sim"
	"signal-engine/pkg/db"
)

// Recorder writes finished reports to the store. The whole report goes in
// one transaction so it is either fully stored or absent.
type Recorder struct {
	q *db.ReportQueries
}

// NewRecorder binds a recorder to the report store.
func NewRecorder(q *db.ReportQueries) *Recorder {
	return &Recorder{q: q}
}

// Persist stores a report alongside the exact configuration that produced
// it, so any run can be reproduced from the row alone.
func (r *Recorder) Persist(ctx context.Context, cfg sim.Config, rep *Report) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}

	status := "COMPLETED"
	for _, t := range rep.Tickers {
		if t.Err != "" {
			status = "PARTIAL"
			break
		}
	}

	run := db.Run{
		ID:             rep.RunID,
		WeightsVersion: rep.WeightsVersion,
		Config:         string(cfgJSON),
		Status:         status,
	}

	var stats []db.TickerStats
	var fills []db.FillRow
	var points []db.EquityRow
	for _, t := range rep.Tickers {
		stats = append(stats, db.TickerStats{
			RunID:            rep.RunID,
			Ticker:           t.Ticker,
			State:            t.State,
			Error:            t.Err,
			Signals:          t.Signals,
			CumulativeReturn: t.CumulativeReturn,
			MaxDrawdown:      t.MaxDrawdown,
			Sharpe:           t.Sharpe,
		})
		for _, f := range t.Fills {
			fills = append(fills, db.FillRow{
				RunID: rep.RunID, Ticker: f.Ticker, Timestamp: f.Timestamp,
				Side: f.Side, Qty: f.Qty, Price: f.Price,
			})
		}
		for _, p := range t.Equity {
			points = append(points, db.EquityRow{
				RunID: rep.RunID, Ticker: t.Ticker, Timestamp: p.Timestamp,
				Equity: p.Equity, Drawdown: p.Drawdown,
			})
		}
	}
	return r.q.InsertReport(ctx, run, stats, fills, points)
}

// TickerFromSignals recomputes a TickerResult straight from a signal trace;
// reporting stays derivable without engine state.
func TickerFromSignals(initialCash float64, signals []sim.Signal) TickerResult {
	if len(signals) == 0 {
		return TickerResult{}
	}
	res := TickerResult{
		Ticker:  signals[0].Ticker,
		Signals: len(signals),
		Fills:   fills(signals),
		Equity:  Curve(signals),
	}
	res.CumulativeReturn, res.MaxDrawdown, res.Sharpe = Summarize(initialCash, res.Equity)
	return res
}
