package trading

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"stockpit/internal/ledger"
)

func newTestEngine(t *testing.T) (*Engine, *ledger.Store) {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "stocks.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewEngine(store, nil), store
}

func TestBuySellRoundTrip(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	id, err := store.AddCompany(ctx, "Acme", 100.00)
	if err != nil {
		t.Fatalf("add company: %v", err)
	}
	if _, err := e.Fund(ctx, "u1", 500.00); err != nil {
		t.Fatalf("fund: %v", err)
	}

	r, err := e.Buy(ctx, "u1", "Acme", 3)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if r.Amount != 300.00 || r.Balance != 200.00 {
		t.Fatalf("buy receipt: %+v", r)
	}
	if r.TradeID == "" {
		t.Fatal("buy receipt missing trade id")
	}
	owned, err := store.Shares(ctx, "u1", id)
	if err != nil {
		t.Fatalf("shares: %v", err)
	}
	if owned != 3 {
		t.Fatalf("holding = %d, want 3", owned)
	}

	r, err = e.Sell(ctx, "u1", "Acme", 3)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if r.Amount != 300.00 || r.Balance != 500.00 {
		t.Fatalf("sell receipt: %+v", r)
	}
	rows, err := store.Portfolio(ctx, "u1")
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("exhausted position retained: %+v", rows)
	}

	trades, err := e.TradeHistory(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("trade history: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("journal rows = %d, want 2", len(trades))
	}
}

func TestBuyRejectsInvalidQuantity(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.AddCompany(ctx, "Acme", 100); err != nil {
		t.Fatalf("add company: %v", err)
	}
	if _, err := e.Fund(ctx, "u1", 1000); err != nil {
		t.Fatalf("fund: %v", err)
	}
	for _, shares := range []int64{0, -1} {
		if _, err := e.Buy(ctx, "u1", "Acme", shares); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("buy %d shares: got %v", shares, err)
		}
	}
	bal, err := e.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 1000 {
		t.Fatalf("rejected buy mutated balance: %v", bal)
	}
}

func TestBuyRejectsUnknownCompanyAndShortFunds(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Buy(ctx, "u1", "Ghost", 1); !errors.Is(err, ledger.ErrCompanyNotFound) {
		t.Fatalf("unknown company: got %v", err)
	}

	id, err := store.AddCompany(ctx, "Acme", 100)
	if err != nil {
		t.Fatalf("add company: %v", err)
	}
	if _, err := e.Fund(ctx, "u1", 50); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := e.Buy(ctx, "u1", "Acme", 1); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("short funds: got %v", err)
	}
	bal, _ := e.Balance(ctx, "u1")
	owned, _ := store.Shares(ctx, "u1", id)
	if bal != 50 || owned != 0 {
		t.Fatalf("rejected buy left partial state: balance=%v shares=%d", bal, owned)
	}
}

func TestSellRejectsShortPosition(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.AddCompany(ctx, "Acme", 100); err != nil {
		t.Fatalf("add company: %v", err)
	}
	if _, err := e.Sell(ctx, "u1", "Acme", 1); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("empty position: got %v", err)
	}
	if _, err := e.Fund(ctx, "u1", 500); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := e.Buy(ctx, "u1", "Acme", 2); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := e.Sell(ctx, "u1", "Acme", 3); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("oversell: got %v", err)
	}
	bal, _ := e.Balance(ctx, "u1")
	if bal != 300 {
		t.Fatalf("rejected sell mutated balance: %v", bal)
	}
}

func TestFundDefund(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for _, amount := range []float64{0, -5} {
		if _, err := e.Fund(ctx, "u1", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("fund %v: got %v", amount, err)
		}
		if _, err := e.Defund(ctx, "u1", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("defund %v: got %v", amount, err)
		}
	}

	bal, err := e.Fund(ctx, "u1", 100.555)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if bal != 100.56 {
		t.Fatalf("funded balance = %v, want 100.56", bal)
	}
	if _, err := e.Defund(ctx, "u1", 200); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("overdraw defund: got %v", err)
	}
	bal, err = e.Defund(ctx, "u1", 100)
	if err != nil {
		t.Fatalf("defund: %v", err)
	}
	if bal != 0.56 {
		t.Fatalf("defunded balance = %v, want 0.56", bal)
	}
}

// Two concurrent buys whose combined cost exceeds the balance: exactly one
// settles, the other must observe the updated balance and reject.
func TestConcurrentBuysSettleExactlyOne(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.AddCompany(ctx, "Acme", 300); err != nil {
		t.Fatalf("add company: %v", err)
	}
	if _, err := e.Fund(ctx, "u1", 500); err != nil {
		t.Fatalf("fund: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Buy(ctx, "u1", "Acme", 1)
		}(i)
	}
	wg.Wait()

	var settled, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			settled++
		case errors.Is(err, ledger.ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if settled != 1 || rejected != 1 {
		t.Fatalf("settled=%d rejected=%d, want exactly one of each", settled, rejected)
	}
	bal, _ := e.Balance(ctx, "u1")
	if bal != 200 {
		t.Fatalf("final balance = %v, want 200", bal)
	}
}

func TestWorthSumsBalanceAndPositions(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := store.AddCompany(ctx, "Acme", 10.50); err != nil {
		t.Fatalf("add company: %v", err)
	}
	if _, err := store.AddCompany(ctx, "Bravo", 3.33); err != nil {
		t.Fatalf("add company: %v", err)
	}
	if _, err := e.Fund(ctx, "u1", 100); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := e.Buy(ctx, "u1", "Acme", 4); err != nil { // 42.00
		t.Fatalf("buy: %v", err)
	}
	if _, err := e.Buy(ctx, "u1", "Bravo", 3); err != nil { // 9.99
		t.Fatalf("buy: %v", err)
	}

	w, err := e.Worth(ctx, "u1")
	if err != nil {
		t.Fatalf("worth: %v", err)
	}
	if w.Balance != 48.01 {
		t.Fatalf("balance = %v, want 48.01", w.Balance)
	}
	if w.PortfolioValue != 51.99 {
		t.Fatalf("portfolio value = %v, want 51.99", w.PortfolioValue)
	}
	if w.NetWorth != 100.00 {
		t.Fatalf("net worth = %v, want 100.00", w.NetWorth)
	}
	if len(w.Positions) != 2 || w.Positions[0].Company != "Acme" {
		t.Fatalf("positions: %+v", w.Positions)
	}
}
