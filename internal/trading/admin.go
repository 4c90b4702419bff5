package trading

import (
	"context"

	"stockpit/internal/ledger"
)

// Admin company management. These are thin passthroughs so dispatchers
// consume one operations surface; the ledger enforces the constraints.

func (e *Engine) AddCompany(ctx context.Context, name string, price float64) (int64, error) {
	return e.store.AddCompany(ctx, name, price)
}

func (e *Engine) RemoveCompany(ctx context.Context, name string) (bool, error) {
	return e.store.RemoveCompany(ctx, name)
}

func (e *Engine) SetPrice(ctx context.Context, name string, price float64) (bool, error) {
	return e.store.SetPrice(ctx, name, ledger.ClampPrice(price))
}
