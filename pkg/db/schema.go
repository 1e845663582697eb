package db

import "fmt"

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS backtest_runs (
    id TEXT PRIMARY KEY,
    weights_version TEXT NOT NULL,
    config TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'COMPLETED',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS backtest_tickers (
    run_id TEXT NOT NULL,
    ticker TEXT NOT NULL,
    state TEXT NOT NULL,
    error TEXT,
    signals INTEGER NOT NULL DEFAULT 0,
    cumulative_return REAL NOT NULL DEFAULT 0,
    max_drawdown REAL NOT NULL DEFAULT 0,
    sharpe REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, ticker)
);

CREATE TABLE IF NOT EXISTS backtest_fills (
    run_id TEXT NOT NULL,
    ticker TEXT NOT NULL,
    ts DATETIME NOT NULL,
    side TEXT NOT NULL,
    qty REAL NOT NULL,
    price REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_equity (
    run_id TEXT NOT NULL,
    ticker TEXT NOT NULL,
    ts DATETIME NOT NULL,
    equity REAL NOT NULL,
    drawdown REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_run ON backtest_fills(run_id, ticker);
CREATE INDEX IF NOT EXISTS idx_equity_run ON backtest_equity(run_id, ticker);
`

// ApplyMigrations creates the report tables if they do not exist.
func ApplyMigrations(d *Database) error {
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
