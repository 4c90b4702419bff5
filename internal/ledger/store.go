package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the embedded SQLite database. A single connection serializes
// all writes, which the trading engine's consistency guarantees rely on.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, log: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStore, err))
}

// AddCompany lists a new company. The price is rounded and floored before
// the write. Returns ErrDuplicateName when the name is already listed.
func (s *Store) AddCompany(ctx context.Context, name string, price float64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("add company", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM companies WHERE name = ?`, name).Scan(&exists)
	if err == nil {
		return 0, ErrDuplicateName
	}
	if err != sql.ErrNoRows {
		return 0, storeErr("add company", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO companies (name, price) VALUES (?, ?)`, name, ClampPrice(price))
	if err != nil {
		return 0, storeErr("add company", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr("add company", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr("add company", err)
	}
	return id, nil
}

// RemoveCompany delists a company and deletes every holding in it.
// Returns false when the name is not listed; that is not an error.
func (s *Store) RemoveCompany(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storeErr("remove company", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM companies WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storeErr("remove company", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE company_id = ?`, id); err != nil {
		return false, storeErr("remove company", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id); err != nil {
		return false, storeErr("remove company", err)
	}
	if err := tx.Commit(); err != nil {
		return false, storeErr("remove company", err)
	}
	return true, nil
}

// SetPrice overrides a company price. Returns false when not listed.
func (s *Store) SetPrice(ctx context.Context, name string, price float64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET price = ? WHERE name = ?`, ClampPrice(price), name)
	if err != nil {
		return false, storeErr("set price", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("set price", err)
	}
	return n > 0, nil
}

func (s *Store) Company(ctx context.Context, name string) (Company, error) {
	var c Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, price FROM companies WHERE name = ?`, name).
		Scan(&c.ID, &c.Name, &c.Price)
	if err == sql.ErrNoRows {
		return Company{}, ErrCompanyNotFound
	}
	if err != nil {
		return Company{}, storeErr("get company", err)
	}
	return c, nil
}

// Companies lists every company ordered by name, case-insensitively.
func (s *Store) Companies(ctx context.Context) ([]Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, price FROM companies ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, storeErr("list companies", err)
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Price); err != nil {
			return nil, storeErr("list companies", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list companies", err)
	}
	return out, nil
}

// UpdatePrice writes a new committed price and appends the history sample
// in the same transaction, so the history never misses a tick.
func (s *Store) UpdatePrice(ctx context.Context, companyID int64, price float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("update price", err)
	}
	defer tx.Rollback()

	price = ClampPrice(price)
	if _, err := tx.ExecContext(ctx,
		`UPDATE companies SET price = ? WHERE id = ?`, price, companyID); err != nil {
		return storeErr("update price", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO price_history (company_id, ts, price) VALUES (?, ?, ?)`,
		companyID, time.Now().Unix(), price); err != nil {
		return storeErr("update price", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("update price", err)
	}
	return nil
}

// PriceHistory returns the most recent samples for a company, newest first.
func (s *Store) PriceHistory(ctx context.Context, name string, limit int) ([]PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ph.ts, ph.price
		FROM price_history ph
		JOIN companies c ON c.id = ph.company_id
		WHERE c.name = ?
		ORDER BY ph.ts DESC
		LIMIT ?`, name, limit)
	if err != nil {
		return nil, storeErr("price history", err)
	}
	defer rows.Close()

	var out []PricePoint
	for rows.Next() {
		var ts int64
		var p PricePoint
		if err := rows.Scan(&ts, &p.Price); err != nil {
			return nil, storeErr("price history", err)
		}
		p.At = time.Unix(ts, 0)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("price history", err)
	}
	return out, nil
}

// Balance returns a user's cash balance; absent users hold 0.
func (s *Store) Balance(ctx context.Context, userID string) (float64, error) {
	var bal float64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE user_id = ?`, userID).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("get balance", err)
	}
	return bal, nil
}

func (s *Store) SetBalance(ctx context.Context, userID string, balance float64) error {
	if balance < 0 {
		return ErrInsufficientFunds
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balances (user_id, balance) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET balance = excluded.balance`,
		userID, Round2(balance))
	if err != nil {
		return storeErr("set balance", err)
	}
	return nil
}

// AddBalance adjusts a user's balance by delta and returns the new value.
// The read, floor check and write happen in one transaction; a result
// below zero rejects with ErrInsufficientFunds and writes nothing.
func (s *Store) AddBalance(ctx context.Context, userID string, delta float64) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("add balance", err)
	}
	defer tx.Rollback()

	var bal float64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE user_id = ?`, userID).Scan(&bal)
	if err != nil && err != sql.ErrNoRows {
		return 0, storeErr("add balance", err)
	}
	next := Round2(bal + delta)
	if next < 0 {
		return 0, ErrInsufficientFunds
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO balances (user_id, balance) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET balance = excluded.balance`,
		userID, next); err != nil {
		return 0, storeErr("add balance", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr("add balance", err)
	}
	return next, nil
}

// Shares returns a user's position size in a company; absent rows are 0.
func (s *Store) Shares(ctx context.Context, userID string, companyID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT shares FROM holdings WHERE user_id = ? AND company_id = ?`,
		userID, companyID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("get shares", err)
	}
	return n, nil
}

// SetShares writes a position size. A size of zero or less deletes the
// row so portfolios only ever contain active positions.
func (s *Store) SetShares(ctx context.Context, userID string, companyID int64, shares int64) error {
	if shares <= 0 {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM holdings WHERE user_id = ? AND company_id = ?`, userID, companyID)
		if err != nil {
			return storeErr("set shares", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holdings (user_id, company_id, shares) VALUES (?, ?, ?)
		ON CONFLICT(user_id, company_id) DO UPDATE SET shares = excluded.shares`,
		userID, companyID, shares)
	if err != nil {
		return storeErr("set shares", err)
	}
	return nil
}

// Portfolio returns a user's active positions at current prices, ordered
// by company name.
func (s *Store) Portfolio(ctx context.Context, userID string) ([]Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, h.shares, c.price
		FROM holdings h
		JOIN companies c ON c.id = h.company_id
		WHERE h.user_id = ? AND h.shares > 0
		ORDER BY c.name COLLATE NOCASE`, userID)
	if err != nil {
		return nil, storeErr("portfolio", err)
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Company, &p.Shares, &p.Price); err != nil {
			return nil, storeErr("portfolio", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("portfolio", err)
	}
	return out, nil
}

// RecordTrade appends a settled trade to the journal.
func (s *Store) RecordTrade(ctx context.Context, t Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, user_id, company_id, company_name, side, shares, price, amount, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.CompanyID, t.CompanyName, t.Side, t.Shares, t.Price, t.Amount, t.At.Unix())
	if err != nil {
		return storeErr("record trade", err)
	}
	return nil
}

// TradeHistory returns a user's most recent trades, newest first.
func (s *Store) TradeHistory(ctx context.Context, userID string, limit int) ([]Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, company_id, company_name, side, shares, price, amount, ts
		FROM trades
		WHERE user_id = ?
		ORDER BY ts DESC, id
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, storeErr("trade history", err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		var ts int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.CompanyID, &t.CompanyName, &t.Side,
			&t.Shares, &t.Price, &t.Amount, &ts); err != nil {
			return nil, storeErr("trade history", err)
		}
		t.At = time.Unix(ts, 0)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("trade history", err)
	}
	return out, nil
}

// Leaderboard ranks every user with a balance by net worth (cash plus
// holdings at current prices).
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.user_id,
		       b.balance + COALESCE((
		           SELECT SUM(h.shares * c.price)
		           FROM holdings h
		           JOIN companies c ON c.id = h.company_id
		           WHERE h.user_id = b.user_id
		       ), 0) AS net_worth
		FROM balances b
		ORDER BY net_worth DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, storeErr("leaderboard", err)
	}
	defer rows.Close()

	var out []LeaderboardRow
	rank := int64(1)
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.UserID, &r.NetWorth); err != nil {
			return nil, storeErr("leaderboard", err)
		}
		r.Rank = rank
		r.NetWorth = Round2(r.NetWorth)
		rank++
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("leaderboard", err)
	}
	return out, nil
}
