package http

import (
	"net/http"

	"caixa/internal/core"
)

type balanceRequest struct {
	Amount string `json:"amount"`
}

type cashDTO struct {
	OpeningBalanceCents int64  `json:"opening_balance_cents"`
	OpeningBalance      string `json:"opening_balance"`
}

// handleSummary returns the headline figures plus the planned-revenue
// estimate, all derived from the current snapshot.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap := s.mirror.Snapshot()
	summary := core.Summarize(snap.Entries, snap.Config.OpeningBalance)
	planned := s.finance.PlannedRevenue(r.Context())

	writeJSON(w, http.StatusOK, summaryDTO{
		OpeningBalanceCents: snap.Config.OpeningBalance.Cents,
		IncomeCents:         summary.Income.Cents,
		ExpenseCents:        summary.Expense.Cents,
		BalanceCents:        summary.Balance.Cents,
		Balance:             core.FormatBRL(summary.Balance),
		PlannedRevenueCents: planned.Cents,
		PlannedRevenue:      core.FormatBRL(planned),
	})
}

func (s *Server) handleGetCash(w http.ResponseWriter, _ *http.Request) {
	cfg := s.mirror.Snapshot().Config
	writeJSON(w, http.StatusOK, cashDTO{
		OpeningBalanceCents: cfg.OpeningBalance.Cents,
		OpeningBalance:      core.FormatBRL(cfg.OpeningBalance),
	})
}

func (s *Server) handleSetOpeningBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.mirror.SetOpeningBalance(r.Context(), amount)
	writeJSON(w, http.StatusOK, cashDTO{
		OpeningBalanceCents: amount.Cents,
		OpeningBalance:      core.FormatBRL(amount),
	})
}

// handleSetTargetBalance back-solves the opening balance so the visible
// balance lands on the requested target.
func (s *Server) handleSetTargetBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, err := parseMoney(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	opening := s.finance.SetTargetBalance(r.Context(), target)
	writeJSON(w, http.StatusOK, cashDTO{
		OpeningBalanceCents: opening.Cents,
		OpeningBalance:      core.FormatBRL(opening),
	})
}
