package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	params TEXT NOT NULL,
	bar_interval TEXT NOT NULL,
	dataset TEXT NOT NULL,
	policy TEXT NOT NULL,
	total_trades INTEGER NOT NULL,
	net_pnl REAL NOT NULL,
	total_return_pct REAL NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	notes TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_symbols (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	symbol TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL,
	start_time DATETIME,
	end_time DATETIME,
	bars INTEGER NOT NULL,
	faults INTEGER NOT NULL,
	final_cash REAL NOT NULL,
	final_equity REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	gross_profit REAL NOT NULL,
	gross_loss REAL NOT NULL,
	net_pnl REAL NOT NULL,
	profit_factor REAL,
	total_return_pct REAL NOT NULL,
	annualized_return_pct REAL NOT NULL,
	sharpe_ratio REAL NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	avg_trade_duration REAL NOT NULL,
	avg_trade_duration_hours REAL NOT NULL,
	avg_trade_value REAL NOT NULL,
	days_active INTEGER NOT NULL,
	PRIMARY KEY (run_id, symbol)
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	trade_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	entry_time DATETIME NOT NULL,
	entry_price REAL NOT NULL,
	exit_time DATETIME,
	exit_price REAL,
	size REAL NOT NULL,
	status TEXT NOT NULL,
	pnl REAL NOT NULL,
	pnl_after_cost REAL NOT NULL,
	commission REAL NOT NULL,
	duration REAL NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	symbol TEXT NOT NULL,
	time DATETIME NOT NULL,
	equity REAL NOT NULL,
	equity_pct REAL NOT NULL,
	drawdown_pct REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_exit ON trades(run_id, exit_time);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(run_id, symbol, time);
`
