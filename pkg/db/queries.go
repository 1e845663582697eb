package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrRunIDRequired = errors.New("run_id is required")
	ErrNotFound      = errors.New("record not found")
)

// ReportQueries reads and writes backtest reports.
type ReportQueries struct {
	db *sql.DB
}

// NewReportQueries creates a ReportQueries instance.
func NewReportQueries(db *sql.DB) *ReportQueries {
	return &ReportQueries{db: db}
}

// InsertReport stores a run header with all of its ticker stats, fills and
// equity points in a single transaction. An error anywhere rolls back the
// whole report; readers never see a run header with partial rows.
func (q *ReportQueries) InsertReport(ctx context.Context, r Run, stats []TickerStats, fills []FillRow, points []EquityRow) error {
	if r.ID == "" {
		return ErrRunIDRequired
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (id, weights_version, config, status)
		VALUES (?, ?, ?, ?)
	`, r.ID, r.WeightsVersion, r.Config, r.Status); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, s := range stats {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO backtest_tickers
				(run_id, ticker, state, error, signals, cumulative_return, max_drawdown, sharpe)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, s.Ticker, s.State, s.Error, s.Signals, s.CumulativeReturn, s.MaxDrawdown, s.Sharpe); err != nil {
			return fmt.Errorf("insert ticker stats: %w", err)
		}
	}

	if len(fills) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO backtest_fills (run_id, ticker, ts, side, qty, price)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare fills: %w", err)
		}
		defer stmt.Close()
		for _, f := range fills {
			if _, err := stmt.ExecContext(ctx, r.ID, f.Ticker, f.Timestamp, f.Side, f.Qty, f.Price); err != nil {
				return fmt.Errorf("insert fill: %w", err)
			}
		}
	}

	if len(points) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO backtest_equity (run_id, ticker, ts, equity, drawdown)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare equity: %w", err)
		}
		defer stmt.Close()
		for _, p := range points {
			if _, err := stmt.ExecContext(ctx, r.ID, p.Ticker, p.Timestamp, p.Equity, p.Drawdown); err != nil {
				return fmt.Errorf("insert equity point: %w", err)
			}
		}
	}

	return tx.Commit()
}

// InsertRun stores a run header.
func (q *ReportQueries) InsertRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return ErrRunIDRequired
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (id, weights_version, config, status)
		VALUES (?, ?, ?, ?)
	`, r.ID, r.WeightsVersion, r.Config, r.Status)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// InsertTickerStats stores one ticker's summary for a run.
func (q *ReportQueries) InsertTickerStats(ctx context.Context, s TickerStats) error {
	if s.RunID == "" {
		return ErrRunIDRequired
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO backtest_tickers
			(run_id, ticker, state, error, signals, cumulative_return, max_drawdown, sharpe)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.RunID, s.Ticker, s.State, s.Error, s.Signals, s.CumulativeReturn, s.MaxDrawdown, s.Sharpe)
	if err != nil {
		return fmt.Errorf("insert ticker stats: %w", err)
	}
	return nil
}

// InsertFills stores a batch of fills inside one transaction.
func (q *ReportQueries) InsertFills(ctx context.Context, fills []FillRow) error {
	if len(fills) == 0 {
		return nil
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fills tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_fills (run_id, ticker, ts, side, qty, price)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare fills: %w", err)
	}
	defer stmt.Close()

	for _, f := range fills {
		if f.RunID == "" {
			return ErrRunIDRequired
		}
		if _, err := stmt.ExecContext(ctx, f.RunID, f.Ticker, f.Timestamp, f.Side, f.Qty, f.Price); err != nil {
			return fmt.Errorf("insert fill: %w", err)
		}
	}
	return tx.Commit()
}

// InsertEquity stores a batch of equity points inside one transaction.
func (q *ReportQueries) InsertEquity(ctx context.Context, points []EquityRow) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin equity tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_equity (run_id, ticker, ts, equity, drawdown)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare equity: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if p.RunID == "" {
			return ErrRunIDRequired
		}
		if _, err := stmt.ExecContext(ctx, p.RunID, p.Ticker, p.Timestamp, p.Equity, p.Drawdown); err != nil {
			return fmt.Errorf("insert equity point: %w", err)
		}
	}
	return tx.Commit()
}

// GetRun returns a run header by ID.
func (q *ReportQueries) GetRun(ctx context.Context, runID string) (Run, error) {
	if runID == "" {
		return Run{}, ErrRunIDRequired
	}
	var r Run
	err := q.db.QueryRowContext(ctx, `
		SELECT id, weights_version, config, status, created_at
		FROM backtest_runs WHERE id = ?
	`, runID).Scan(&r.ID, &r.WeightsVersion, &r.Config, &r.Status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent run headers, newest first.
func (q *ReportQueries) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, weights_version, config, status, created_at
		FROM backtest_runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.WeightsVersion, &r.Config, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetTickerStats returns every ticker summary for a run.
func (q *ReportQueries) GetTickerStats(ctx context.Context, runID string) ([]TickerStats, error) {
	if runID == "" {
		return nil, ErrRunIDRequired
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT run_id, ticker, state, COALESCE(error, ''), signals,
		       cumulative_return, max_drawdown, sharpe
		FROM backtest_tickers WHERE run_id = ? ORDER BY ticker
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get ticker stats: %w", err)
	}
	defer rows.Close()

	var stats []TickerStats
	for rows.Next() {
		var s TickerStats
		if err := rows.Scan(&s.RunID, &s.Ticker, &s.State, &s.Error, &s.Signals,
			&s.CumulativeReturn, &s.MaxDrawdown, &s.Sharpe); err != nil {
			return nil, fmt.Errorf("scan ticker stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// GetEquityCurve returns a ticker's equity points for a run in time order.
func (q *ReportQueries) GetEquityCurve(ctx context.Context, runID, ticker string) ([]EquityRow, error) {
	if runID == "" {
		return nil, ErrRunIDRequired
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT run_id, ticker, ts, equity, drawdown
		FROM backtest_equity WHERE run_id = ? AND ticker = ? ORDER BY ts
	`, runID, ticker)
	if err != nil {
		return nil, fmt.Errorf("get equity curve: %w", err)
	}
	defer rows.Close()

	var points []EquityRow
	for rows.Next() {
		var p EquityRow
		if err := rows.Scan(&p.RunID, &p.Ticker, &p.Timestamp, &p.Equity, &p.Drawdown); err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// GetFills returns a ticker's fills for a run in time order.
func (q *ReportQueries) GetFills(ctx context.Context, runID, ticker string) ([]FillRow, error) {
	if runID == "" {
		return nil, ErrRunIDRequired
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT run_id, ticker, ts, side, qty, price
		FROM backtest_fills WHERE run_id = ? AND ticker = ? ORDER BY ts
	`, runID, ticker)
	if err != nil {
		return nil, fmt.Errorf("get fills: %w", err)
	}
	defer rows.Close()

	var fills []FillRow
	for rows.Next() {
		var f FillRow
		if err := rows.Scan(&f.RunID, &f.Ticker, &f.Timestamp, &f.Side, &f.Qty, &f.Price); err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}
