package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"caixa/internal/core"
	"caixa/internal/mirror"
)

type jobRequest struct {
	Name   string `json:"name"`
	Title  string `json:"title"`
	Budget string `json:"budget"`
}

type jobPatchRequest struct {
	Name   *string `json:"name"`
	Title  *string `json:"title"`
	Budget *string `json:"budget"`
}

type jobExpenseRequest struct {
	Name   string    `json:"name"`
	Amount string    `json:"amount"`
	Date   core.Date `json:"date"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toJobDTOs(s.mirror.Snapshot().Jobs))
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeDomainError(w, core.ErrEmptyName)
		return
	}
	budget, err := parseMoney(req.Budget)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	job := s.mirror.UpsertJob(r.Context(), uuid.NewString(), mirror.JobPatch{
		Name:   &req.Name,
		Title:  &req.Title,
		Budget: &budget,
	})
	writeJSON(w, http.StatusCreated, toJobDTO(job))
}

// handleUpdateJob patches name, title or budget. Status never changes here;
// completion goes through the finalize endpoint and is one-way.
func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.jobExists(id) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	var req jobPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := mirror.JobPatch{Name: req.Name, Title: req.Title}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeDomainError(w, core.ErrEmptyName)
		return
	}
	if req.Budget != nil {
		budget, err := parseMoney(*req.Budget)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		patch.Budget = &budget
	}

	job := s.mirror.UpsertJob(r.Context(), id, patch)
	writeJSON(w, http.StatusOK, toJobDTO(job))
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.mirror.RemoveJob(r.Context(), id) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinalizeJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.finance.FinalizeJob(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(job))
}

func (s *Server) handleAddJobExpense(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	var req jobExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeDomainError(w, core.ErrEmptyName)
		return
	}
	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := amount.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	exp, ok := s.mirror.AddJobExpense(r.Context(), jobID, core.JobExpense{
		Name:   req.Name,
		Amount: amount,
		Date:   req.Date,
	})
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusCreated, jobExpenseDTO{
		ID:          exp.ID,
		Name:        exp.Name,
		AmountCents: exp.Amount.Cents,
		Amount:      core.FormatBRL(exp.Amount),
		Date:        exp.Date,
	})
}

func (s *Server) handleDeleteJobExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.mirror.RemoveJobExpense(r.Context(), id) {
		writeError(w, http.StatusNotFound, "job expense not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) jobExists(id string) bool {
	for _, j := range s.mirror.Snapshot().Jobs {
		if j.ID == id {
			return true
		}
	}
	return false
}
