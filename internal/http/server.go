// Package http exposes the ledger over a JSON API. Reads are served from the
// in-process mirror, writes go through the mirror's optimistic protocol, so
// every handler responds without waiting on the row store.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"caixa/internal/log"
	"caixa/internal/mirror"
	"caixa/internal/prefs"
	"caixa/internal/services"
)

type Server struct {
	http.Server

	mirror  *mirror.Mirror
	finance *services.FinanceService
	prefs   *prefs.Service
	logger  *log.Logger
	limiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer wires the routes and returns a ready-to-run server.
func NewServer(addr string, m *mirror.Mirror, finance *services.FinanceService, p *prefs.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		mirror:  m,
		finance: finance,
		prefs:   p,
		logger:  logger.WithComponent(log.ComponentHTTP),
		limiter: newRateLimiter(),
	}

	r := chi.NewRouter()
	r.Use(s.withObservability)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Post("/", s.handleCreateEntry)
			r.Get("/categories", s.handleCategories)
			r.Patch("/{id}", s.handleUpdateEntry)
			r.Delete("/{id}", s.handleDeleteEntry)
		})

		r.Route("/cash", func(r chi.Router) {
			r.Get("/", s.handleGetCash)
			r.Put("/opening-balance", s.handleSetOpeningBalance)
			r.Put("/target-balance", s.handleSetTargetBalance)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleCreateJob)
			r.Patch("/{id}", s.handleUpdateJob)
			r.Delete("/{id}", s.handleDeleteJob)
			r.Post("/{id}/finalize", s.handleFinalizeJob)
			r.Post("/{id}/expenses", s.handleAddJobExpense)
			r.Delete("/expenses/{id}", s.handleDeleteJobExpense)
		})

		r.Route("/receivables", func(r chi.Router) {
			r.Get("/", s.handleListReceivables)
			r.Post("/", s.handleCreateReceivable)
			r.Put("/{id}", s.handleUpdateReceivable)
			r.Delete("/{id}", s.handleDeleteReceivable)
			r.Post("/{id}/payments", s.handleRegisterPayment)
		})

		r.Route("/prefs", func(r chi.Router) {
			r.Get("/", s.handleListPrefs)
			r.Put("/{key}", s.handleSetPref)
			r.Post("/jump/consume", s.handleConsumeJump)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Shutdown stops the background limiter cleanup and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
