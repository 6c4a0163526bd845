package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"caixa/internal/core"
)

type receivableRequest struct {
	Name         string    `json:"name"`
	Amount       string    `json:"amount"`
	Phone        string    `json:"phone"`
	ExpectedDate core.Date `json:"expected_date"`
	JobID        string    `json:"job_id"`
}

type paymentRequest struct {
	Amount string `json:"amount"`
}

type paymentResponse struct {
	Receivable receivableDTO `json:"receivable"`
	Settled    bool          `json:"settled"`
}

func (s *Server) handleListReceivables(w http.ResponseWriter, r *http.Request) {
	recs, err := s.finance.ListReceivables(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List receivables failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceivableDTOs(recs))
}

func (s *Server) handleCreateReceivable(w http.ResponseWriter, r *http.Request) {
	var req receivableRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rec, err := s.finance.AddReceivable(r.Context(), core.Receivable{
		Name:         req.Name,
		Amount:       amount,
		Phone:        req.Phone,
		ExpectedDate: req.ExpectedDate,
		JobID:        req.JobID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceivableDTO(rec))
}

func (s *Server) handleUpdateReceivable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req receivableRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rec, err := s.finance.UpdateReceivable(r.Context(), core.Receivable{
		ID:           id,
		Name:         req.Name,
		Amount:       amount,
		Phone:        req.Phone,
		ExpectedDate: req.ExpectedDate,
		JobID:        req.JobID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceivableDTO(rec))
}

func (s *Server) handleDeleteReceivable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.finance.DeleteReceivable(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRegisterPayment books the payment as ledger income and shrinks the
// receivable, deleting it when fully settled.
func (s *Server) handleRegisterPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rec, settled, err := s.finance.RegisterPayment(r.Context(), id, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{
		Receivable: toReceivableDTO(rec),
		Settled:    settled,
	})
}
