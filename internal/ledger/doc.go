/*
Package ledger is the single source of truth for the market: companies,
user cash balances, share holdings, the append-only price history and the
trade journal. All state lives in one embedded SQLite file and every write
commits immediately.

Rows invariants enforced here:

  - company prices never drop below MinPrice
  - balances never go negative
  - a holding reduced to zero shares is deleted, not stored as a zero row
  - removing a company cascades to its holdings
*/
package ledger
