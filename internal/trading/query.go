package trading

import (
	"context"

	"stockpit/internal/ledger"
)

// Worth is a user's full financial picture: cash, active positions at
// current prices, and their sum.
type Worth struct {
	Balance        float64
	Positions      []ledger.Position
	PortfolioValue float64
	NetWorth       float64
}

func (e *Engine) Companies(ctx context.Context) ([]ledger.Company, error) {
	return e.store.Companies(ctx)
}

func (e *Engine) Balance(ctx context.Context, userID string) (float64, error) {
	return e.store.Balance(ctx, userID)
}

func (e *Engine) Worth(ctx context.Context, userID string) (Worth, error) {
	balance, err := e.store.Balance(ctx, userID)
	if err != nil {
		return Worth{}, err
	}
	positions, err := e.store.Portfolio(ctx, userID)
	if err != nil {
		return Worth{}, err
	}
	var value float64
	for _, p := range positions {
		value += ledger.Notional(p.Price, p.Shares)
	}
	value = ledger.Round2(value)
	return Worth{
		Balance:        balance,
		Positions:      positions,
		PortfolioValue: value,
		NetWorth:       ledger.Round2(balance + value),
	}, nil
}

func (e *Engine) PriceHistory(ctx context.Context, company string, limit int) ([]ledger.PricePoint, error) {
	return e.store.PriceHistory(ctx, company, limit)
}

func (e *Engine) TradeHistory(ctx context.Context, userID string, limit int) ([]ledger.Trade, error) {
	return e.store.TradeHistory(ctx, userID, limit)
}

func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]ledger.LeaderboardRow, error) {
	return e.store.Leaderboard(ctx, limit)
}
