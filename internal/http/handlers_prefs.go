package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caixa/internal/core"
	"caixa/internal/prefs"
)

type prefRequest struct {
	Value string `json:"value"`
}

type jumpResponse struct {
	Pending bool      `json:"pending"`
	Date    core.Date `json:"date"`
}

func (s *Server) handleListPrefs(w http.ResponseWriter, r *http.Request) {
	all, err := s.prefs.All(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List prefs failed", "error", err)
		writeDomainError(w, err)
		return
	}
	if all == nil {
		all = map[string]string{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleSetPref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req prefRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.prefs.Set(r.Context(), key, req.Value); err != nil {
		if errors.Is(err, prefs.ErrUnknownKey) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if errors.Is(err, core.ErrInvalidDate) {
			writeDomainError(w, err)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{key: req.Value})
}

// handleConsumeJump pops the one-shot jump flag; a second call reports no
// pending jump.
func (s *Server) handleConsumeJump(w http.ResponseWriter, r *http.Request) {
	day, pending, err := s.prefs.ConsumeJump(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Consume jump failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jumpResponse{Pending: pending, Date: day})
}
