package ledger

import (
	"errors"
	"time"
)

// MinPrice is the floor for every company price; the market never quotes
// below it and manual overrides are clamped to it.
const MinPrice = 1.0

var (
	ErrDuplicateName     = errors.New("company name already exists")
	ErrCompanyNotFound   = errors.New("company not found")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrStore marks an underlying persistence failure. Callers treat it as
	// unexpected and log it distinctly instead of relaying it verbatim.
	ErrStore = errors.New("store failure")
)

type Company struct {
	ID    int64
	Name  string
	Price float64
}

// Position is one row of a user's portfolio: an active holding priced at
// the most recently committed market price.
type Position struct {
	Company string
	Shares  int64
	Price   float64
}

type PricePoint struct {
	At    time.Time
	Price float64
}

type Trade struct {
	ID          string
	UserID      string
	CompanyID   int64
	CompanyName string
	Side        string
	Shares      int64
	Price       float64
	Amount      float64
	At          time.Time
}

type LeaderboardRow struct {
	Rank     int64
	UserID   string
	NetWorth float64
}
