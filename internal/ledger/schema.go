package ledger

import (
	"database/sql"
	"fmt"
)

// createSchema initializes all tables. Safe to call on every open; every
// statement uses IF NOT EXISTS.
func createSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS companies (
    id    INTEGER PRIMARY KEY AUTOINCREMENT,
    name  TEXT UNIQUE NOT NULL,
    price REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
    user_id    TEXT    NOT NULL,
    company_id INTEGER NOT NULL,
    shares     INTEGER NOT NULL,
    PRIMARY KEY (user_id, company_id),
    FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS balances (
    user_id TEXT PRIMARY KEY,
    balance REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS price_history (
    company_id INTEGER NOT NULL,
    ts         INTEGER NOT NULL,
    price      REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_company ON price_history(company_id, ts);

CREATE TABLE IF NOT EXISTS trades (
    id           TEXT PRIMARY KEY,
    user_id      TEXT    NOT NULL,
    company_id   INTEGER NOT NULL,
    company_name TEXT    NOT NULL,
    side         TEXT    NOT NULL,
    shares       INTEGER NOT NULL,
    price        REAL NOT NULL,
    amount       REAL NOT NULL,
    ts           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_user ON trades(user_id, ts);
`
