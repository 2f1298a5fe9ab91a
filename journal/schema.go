package journal

const Schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	dataset TEXT NOT NULL DEFAULT '',
	symbol TEXT NOT NULL,
	strategy TEXT NOT NULL,
	config TEXT NOT NULL DEFAULT '',
	exit_policy TEXT NOT NULL DEFAULT '',
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	years REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	start_balance REAL NOT NULL,
	end_balance REAL NOT NULL,
	net_pl REAL NOT NULL,
	return_pct REAL NOT NULL,
	annual_return_pct REAL NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	insufficient_data INTEGER NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	date DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	price REAL NOT NULL,
	shares INTEGER NOT NULL,
	amount REAL NOT NULL,
	gain_loss REAL,
	balance REAL NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	shares INTEGER NOT NULL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON backtest_runs(created);
CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_id, time);
`
