// Package api exposes a read-only JSON view of the market: companies,
// price history, balances, portfolios and the leaderboard. All mutation
// goes through the Discord dispatcher or stockpitctl; this surface only
// reflects committed state.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stockpit/internal/ledger"
	"stockpit/internal/trading"
)

type Server struct {
	log    *slog.Logger
	engine *trading.Engine
	mux    *chi.Mux
}

func New(logger *slog.Logger, engine *trading.Engine) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:    logger,
		engine: engine,
		mux:    chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/companies", s.handleCompanies)
		r.Get("/companies/{name}/history", s.handleCompanyHistory)
		r.Get("/users/{id}/balance", s.handleBalance)
		r.Get("/users/{id}/portfolio", s.handlePortfolio)
		r.Get("/users/{id}/trades", s.handleTrades)
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

type companyView struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type positionView struct {
	Company string  `json:"company"`
	Shares  int64   `json:"shares"`
	Price   float64 `json:"price"`
	Value   float64 `json:"value"`
}

type pricePointView struct {
	At    time.Time `json:"at"`
	Price float64   `json:"price"`
}

type tradeView struct {
	ID      string    `json:"id"`
	Company string    `json:"company"`
	Side    string    `json:"side"`
	Shares  int64     `json:"shares"`
	Price   float64   `json:"price"`
	Amount  float64   `json:"amount"`
	At      time.Time `json:"at"`
}

type leaderboardView struct {
	Rank     int64   `json:"rank"`
	UserID   string  `json:"user_id"`
	NetWorth float64 `json:"net_worth"`
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.engine.Companies(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]companyView, 0, len(companies))
	for _, c := range companies {
		out = append(out, companyView{Name: c.Name, Price: c.Price})
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": out})
}

func (s *Server) handleCompanyHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	points, err := s.engine.PriceHistory(r.Context(), name, parseLimit(r, 64))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]pricePointView, 0, len(points))
	for _, p := range points {
		out = append(out, pricePointView{At: p.At, Price: p.Price})
	}
	writeJSON(w, http.StatusOK, map[string]any{"company": name, "points": out})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	balance, err := s.engine.Balance(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "balance": balance})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	worth, err := s.engine.Worth(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	positions := make([]positionView, 0, len(worth.Positions))
	for _, p := range worth.Positions {
		positions = append(positions, positionView{
			Company: p.Company,
			Shares:  p.Shares,
			Price:   p.Price,
			Value:   ledger.Notional(p.Price, p.Shares),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":         userID,
		"balance":         worth.Balance,
		"positions":       positions,
		"portfolio_value": worth.PortfolioValue,
		"net_worth":       worth.NetWorth,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	trades, err := s.engine.TradeHistory(r.Context(), userID, parseLimit(r, 50))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeView{
			ID: t.ID, Company: t.CompanyName, Side: t.Side,
			Shares: t.Shares, Price: t.Price, Amount: t.Amount, At: t.At,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "trades": out})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.Leaderboard(r.Context(), parseLimit(r, 25))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]leaderboardView, 0, len(rows))
	for _, row := range rows {
		out = append(out, leaderboardView{Rank: row.Rank, UserID: row.UserID, NetWorth: row.NetWorth})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrCompanyNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrStore):
		s.log.Error("store failure", "err", err)
		writeError(w, http.StatusInternalServerError, "store failure")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseLimit(r *http.Request, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 500 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
