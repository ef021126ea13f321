package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trade_history (
	id TEXT PRIMARY KEY,
	timestamp DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	order_size TEXT,
	status TEXT NOT NULL,
	order_id TEXT,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_trade_history_timestamp ON trade_history(timestamp);
`
