// Package trading settles buy/sell orders and privileged balance
// adjustments against the ledger, and serves the read-only portfolio and
// market views the dispatcher formats for users.
package trading

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockpit/internal/ledger"
)

var (
	ErrInvalidQuantity    = errors.New("shares must be a positive integer")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInsufficientShares = errors.New("insufficient shares")
)

// Receipt describes a settled trade or balance adjustment. The dispatcher
// owns how it is rendered.
type Receipt struct {
	TradeID string
	Company string
	Side    string
	Shares  int64
	Price   float64
	Amount  float64
	Balance float64
}

type Engine struct {
	store *ledger.Store
	log   *slog.Logger

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func NewEngine(store *ledger.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store: store,
		log:   logger,
		users: make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing every balance+holding mutation
// for one user. The debit/credit pair of a trade is two store calls, so
// without this a concurrent trade could settle against a stale balance.
func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.users[userID]
	if !ok {
		l = &sync.Mutex{}
		e.users[userID] = l
	}
	return l
}

// Buy debits round2(price*shares) from the user and credits the shares.
// Rejections leave the ledger untouched.
func (e *Engine) Buy(ctx context.Context, userID, company string, shares int64) (Receipt, error) {
	if shares <= 0 {
		return Receipt{}, ErrInvalidQuantity
	}
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	c, err := e.store.Company(ctx, company)
	if err != nil {
		return Receipt{}, err
	}
	cost := ledger.Notional(c.Price, shares)
	balance, err := e.store.Balance(ctx, userID)
	if err != nil {
		return Receipt{}, err
	}
	if balance < cost {
		return Receipt{}, ledger.ErrInsufficientFunds
	}

	newBalance, err := e.store.AddBalance(ctx, userID, -cost)
	if err != nil {
		return Receipt{}, err
	}
	owned, err := e.store.Shares(ctx, userID, c.ID)
	if err != nil {
		return Receipt{}, err
	}
	if err := e.store.SetShares(ctx, userID, c.ID, owned+shares); err != nil {
		return Receipt{}, err
	}

	r := Receipt{
		TradeID: uuid.NewString(),
		Company: c.Name,
		Side:    "buy",
		Shares:  shares,
		Price:   c.Price,
		Amount:  cost,
		Balance: newBalance,
	}
	e.journal(ctx, userID, c, r)
	return r, nil
}

// Sell decrements the holding (removing it entirely when exhausted) and
// credits round2(price*shares).
func (e *Engine) Sell(ctx context.Context, userID, company string, shares int64) (Receipt, error) {
	if shares <= 0 {
		return Receipt{}, ErrInvalidQuantity
	}
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	c, err := e.store.Company(ctx, company)
	if err != nil {
		return Receipt{}, err
	}
	owned, err := e.store.Shares(ctx, userID, c.ID)
	if err != nil {
		return Receipt{}, err
	}
	if owned < shares {
		return Receipt{}, ErrInsufficientShares
	}
	proceeds := ledger.Notional(c.Price, shares)
	if err := e.store.SetShares(ctx, userID, c.ID, owned-shares); err != nil {
		return Receipt{}, err
	}
	newBalance, err := e.store.AddBalance(ctx, userID, proceeds)
	if err != nil {
		return Receipt{}, err
	}

	r := Receipt{
		TradeID: uuid.NewString(),
		Company: c.Name,
		Side:    "sell",
		Shares:  shares,
		Price:   c.Price,
		Amount:  proceeds,
		Balance: newBalance,
	}
	e.journal(ctx, userID, c, r)
	return r, nil
}

// Fund credits a user's balance by a positive amount. Privileged; the
// dispatcher gates it behind the permission oracle.
func (e *Engine) Fund(ctx context.Context, userID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return e.store.AddBalance(ctx, userID, ledger.Round2(amount))
}

// Defund debits a user's balance by a positive amount; a result below
// zero rejects with no mutation.
func (e *Engine) Defund(ctx context.Context, userID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return e.store.AddBalance(ctx, userID, -ledger.Round2(amount))
}

// journal appends the settled trade to the audit log. The trade has
// already settled, so a journal failure is logged rather than surfaced.
func (e *Engine) journal(ctx context.Context, userID string, c ledger.Company, r Receipt) {
	err := e.store.RecordTrade(ctx, ledger.Trade{
		ID:          r.TradeID,
		UserID:      userID,
		CompanyID:   c.ID,
		CompanyName: c.Name,
		Side:        r.Side,
		Shares:      r.Shares,
		Price:       r.Price,
		Amount:      r.Amount,
		At:          time.Now(),
	})
	if err != nil {
		e.log.Error("trade journal write failed", "trade_id", r.TradeID, "err", err)
	}
}
