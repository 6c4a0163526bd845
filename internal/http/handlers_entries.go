package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"caixa/internal/core"
	"caixa/internal/mirror"
)

type entryRequest struct {
	Date          core.Date `json:"date"`
	Kind          string    `json:"kind"`
	Amount        string    `json:"amount"`
	Description   string    `json:"description"`
	JobID         string    `json:"job_id"`
	Scope         string    `json:"scope"`
	AffectsCash   *bool     `json:"affects_cash"`
	CreatedBy     string    `json:"created_by"`
	CreatedByName string    `json:"created_by_name"`
}

type entryPatchRequest struct {
	Date        *core.Date `json:"date"`
	Kind        *string    `json:"kind"`
	Amount      *string    `json:"amount"`
	Description *string    `json:"description"`
	JobID       *string    `json:"job_id"`
	Scope       *string    `json:"scope"`
	AffectsCash *bool      `json:"affects_cash"`
}

// filteredEntries applies the optional day or month query filter to the
// current snapshot. Both at once is an error.
func (s *Server) filteredEntries(r *http.Request) ([]core.Entry, error) {
	entries := s.mirror.Snapshot().Entries
	dayParam := strings.TrimSpace(r.URL.Query().Get("day"))
	monthParam := strings.TrimSpace(r.URL.Query().Get("month"))

	switch {
	case dayParam != "" && monthParam != "":
		return nil, errBothFilters
	case dayParam != "":
		day, err := core.ParseDate(dayParam)
		if err != nil {
			return nil, err
		}
		return core.FilterByDay(entries, day), nil
	case monthParam != "":
		return core.FilterByMonth(entries, monthParam), nil
	}
	return entries, nil
}

var errBothFilters = errors.New("day and month filters are mutually exclusive")

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.filteredEntries(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// handleCategories groups the filtered view by description, largest first.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	entries, err := s.filteredEntries(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cats := core.Categorize(entries)
	out := make([]categoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryDTO{
			Name:        c.Name,
			AmountCents: c.Amount.Cents,
			Amount:      core.FormatBRL(c.Amount),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	in := mirror.EntryInput{
		Date:          req.Date,
		Kind:          core.EntryKind(req.Kind),
		Amount:        amount,
		Description:   req.Description,
		JobID:         req.JobID,
		Scope:         core.EntryScope(req.Scope),
		AffectsCash:   req.AffectsCash,
		CreatedBy:     req.CreatedBy,
		CreatedByName: req.CreatedByName,
	}

	// Validate the entry as the mirror will normalize it, without mutating
	// state on rejection.
	candidate := core.Entry{
		Date:        in.Date,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Scope:       in.Scope,
		Description: in.Description,
	}
	if candidate.Date.IsZero() {
		candidate.Date = core.Today()
	}
	if candidate.Scope == "" {
		candidate.Scope = core.ScopeCash
	}
	if err := candidate.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	e := s.mirror.AddEntry(r.Context(), in)
	writeJSON(w, http.StatusCreated, toEntryDTO(e))
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req entryPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := mirror.EntryPatch{
		Date:        req.Date,
		Description: req.Description,
		JobID:       req.JobID,
		AffectsCash: req.AffectsCash,
	}
	if req.Kind != nil {
		kind := core.EntryKind(*req.Kind)
		if err := kind.Validate(); err != nil {
			writeDomainError(w, err)
			return
		}
		patch.Kind = &kind
	}
	if req.Scope != nil {
		scope := core.EntryScope(*req.Scope)
		if err := scope.Validate(); err != nil {
			writeDomainError(w, err)
			return
		}
		patch.Scope = &scope
	}
	if req.Amount != nil {
		amount, err := parseMoney(*req.Amount)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := amount.Validate(); err != nil {
			writeDomainError(w, err)
			return
		}
		patch.Amount = &amount
	}

	e, ok := s.mirror.UpdateEntry(r.Context(), id, patch)
	if !ok {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(e))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.mirror.RemoveEntry(r.Context(), id) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
