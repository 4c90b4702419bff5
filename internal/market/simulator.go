// Package market runs the periodic price simulation: every tick each
// listed company's price takes a bounded random walk and a history sample
// is appended.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"stockpit/internal/ledger"
)

type Simulator struct {
	store    *ledger.Store
	log      *slog.Logger
	interval time.Duration

	maxJitter float64 // max +/- fractional move per tick
	drift     float64 // drift scale, centered around zero

	mu   sync.Mutex
	rand *rand.Rand
}

func New(store *ledger.Store, logger *slog.Logger, interval time.Duration, maxJitter, drift float64) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		store:     store,
		log:       logger,
		interval:  interval,
		maxJitter: maxJitter,
		drift:     drift,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run blocks until ctx is cancelled. The first tick waits for ready so the
// simulation never mutates the store before the host is serving.
func (s *Simulator) Run(ctx context.Context, ready <-chan struct{}) {
	select {
	case <-ctx.Done():
		return
	case <-ready:
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("market simulator started", "tick_every", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("market simulator stopped")
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.log.Error("market tick failed", "err", err)
			}
		}
	}
}

// Tick reprices every company once. A single company's failure is logged
// and skipped so the rest of the mapping still updates.
func (s *Simulator) Tick(ctx context.Context) error {
	companies, err := s.store.Companies(ctx)
	if err != nil {
		return fmt.Errorf("list companies: %w", err)
	}
	for _, c := range companies {
		next := s.nextPrice(c.Price)
		if err := s.store.UpdatePrice(ctx, c.ID, next); err != nil {
			s.log.Error("price update failed", "company", c.Name, "err", err)
			continue
		}
	}
	s.log.Info("market tick complete", "companies", len(companies))
	return nil
}

// nextPrice applies one step of the walk: a jitter drawn uniformly from
// [-maxJitter, maxJitter] plus a drift term centered at zero, floored at
// ledger.MinPrice and rounded at the write boundary.
func (s *Simulator) nextPrice(price float64) float64 {
	if price <= 0 {
		price = ledger.MinPrice
	}
	jitter := (s.nextFloat()*2 - 1) * s.maxJitter
	drift := s.drift * (s.nextFloat() - 0.5)
	next := ledger.Round2(price * (1 + jitter + drift))
	if next < ledger.MinPrice {
		return ledger.MinPrice
	}
	return next
}

func (s *Simulator) nextFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}
