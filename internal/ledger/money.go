package ledger

import "github.com/shopspring/decimal"

// Round2 rounds a monetary value to 2 decimal places. Every value the
// store writes goes through this so repeated ticks and trades cannot
// accumulate float drift.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Notional computes round2(price * shares) with exact decimal arithmetic.
func Notional(price float64, shares int64) float64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(shares)).Round(2).InexactFloat64()
}

// ClampPrice rounds a price and lifts it to the MinPrice floor.
func ClampPrice(price float64) float64 {
	p := Round2(price)
	if p < MinPrice {
		return MinPrice
	}
	return p
}
