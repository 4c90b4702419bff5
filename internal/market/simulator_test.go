package market

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"stockpit/internal/ledger"
)

const (
	testJitter = 0.05
	testDrift  = 0.01
)

func newTestSimulator(t *testing.T, seed int64) (*Simulator, *ledger.Store) {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "stocks.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	sim := New(store, slog.Default(), time.Minute, testJitter, testDrift)
	sim.rand = rand.New(rand.NewSource(seed))
	return sim, store
}

func TestTickKeepsPricesInBounds(t *testing.T) {
	sim, store := newTestSimulator(t, 7)
	ctx := context.Background()

	seed := map[string]float64{"Acme": 100, "Bravo": 2.5, "Charlie": 1}
	for name, price := range seed {
		if _, err := store.AddCompany(ctx, name, price); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	if err := sim.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	companies, err := store.Companies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	const maxMove = testJitter + testDrift/2 + 1e-9
	for _, c := range companies {
		old := seed[c.Name]
		if c.Price < ledger.MinPrice {
			t.Fatalf("%s priced below floor: %v", c.Name, c.Price)
		}
		move := math.Abs(c.Price/old - 1)
		// Rounding to cents can nudge the relative move past the raw bound
		// for cheap stocks, by at most half a cent of the old price.
		if move > maxMove+0.005/old {
			t.Fatalf("%s moved %.4f, bound %.4f", c.Name, move, maxMove)
		}
	}
}

func TestTickAppendsHistoryPerCompany(t *testing.T) {
	sim, store := newTestSimulator(t, 42)
	ctx := context.Background()

	if _, err := store.AddCompany(ctx, "Acme", 100); err != nil {
		t.Fatalf("add company: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := sim.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	hist, err := store.PriceHistory(ctx, "Acme", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("got %d samples, want 3", len(hist))
	}
}

func TestNextPriceRecoversFromNonPositivePrice(t *testing.T) {
	sim, _ := newTestSimulator(t, 1)
	for i := 0; i < 100; i++ {
		if p := sim.nextPrice(0); p < ledger.MinPrice {
			t.Fatalf("price fell below floor: %v", p)
		}
		if p := sim.nextPrice(-5); p < ledger.MinPrice {
			t.Fatalf("price fell below floor: %v", p)
		}
	}
}

func TestRunStopsOnCancelBeforeReady(t *testing.T) {
	sim, _ := newTestSimulator(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx, make(chan struct{}))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
