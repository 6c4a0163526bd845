// Package services orchestrates the flows that span the mirror, the row
// store and the notification channels: job finalization, receivable
// settlement and the target-balance adjustment.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"caixa/internal/amqp"
	"caixa/internal/bus"
	"caixa/internal/core"
	"caixa/internal/log"
	"caixa/internal/mirror"
)

// ReceivableStore is the slice of the row store holding receivables.
type ReceivableStore interface {
	ListReceivables(ctx context.Context, owner string) ([]core.Receivable, error)
	GetReceivable(ctx context.Context, owner, id string) (core.Receivable, error)
	SaveReceivable(ctx context.Context, owner string, rec core.Receivable) error
	DeleteReceivable(ctx context.Context, owner, id string) error
}

// Notifier publishes cross-session change notifications; nil disables them.
type Notifier interface {
	PublishChange(ctx context.Context, collection, owner string) error
}

type FinanceService struct {
	mirror      *mirror.Mirror
	receivables ReceivableStore
	notifier    Notifier
	bus         *bus.Bus
	logger      *log.Logger
}

func NewFinanceService(m *mirror.Mirror, receivables ReceivableStore, notifier Notifier, b *bus.Bus, logger *log.Logger) *FinanceService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &FinanceService{
		mirror:      m,
		receivables: receivables,
		notifier:    notifier,
		bus:         b,
		logger:      logger,
	}
}

// FinalizeJob closes a job: ativo -> finalizada, one-way. A positive
// remaining budget is booked twice — once as a caixa entry that raises the
// company balance, once as an obra entry visible in the per-job report but
// excluded from cash aggregation. The same economic event thereby shows up
// in both mutually exclusive views without the aggregation engine knowing
// about job semantics. Remaining <= 0 books nothing but still completes the
// job.
func (s *FinanceService) FinalizeJob(ctx context.Context, jobID string) (core.Job, error) {
	snap := s.mirror.Snapshot()
	var job core.Job
	found := false
	for _, j := range snap.Jobs {
		if j.ID == jobID {
			job = j
			found = true
			break
		}
	}
	if !found {
		return core.Job{}, fmt.Errorf("finalize job %s: %w", jobID, core.ErrNotFound)
	}
	if job.Status == core.JobCompleted {
		// Finalization is one-way; repeating it must not book anything.
		return job, nil
	}

	remaining := job.Remaining()
	if remaining.IsPositive() {
		desc := fmt.Sprintf("Fechamento de Obra - %s", job.Title)
		today := core.Today()
		affects := true
		s.mirror.AddEntry(ctx, mirror.EntryInput{
			Date:        today,
			Kind:        core.Income,
			Amount:      remaining,
			Description: desc,
			Scope:       core.ScopeCash,
			AffectsCash: &affects,
		})
		noCash := false
		s.mirror.AddEntry(ctx, mirror.EntryInput{
			Date:        today,
			Kind:        core.Income,
			Amount:      remaining,
			Description: desc,
			JobID:       job.ID,
			Scope:       core.ScopeJob,
			AffectsCash: &noCash,
		})
	}

	status := core.JobCompleted
	job = s.mirror.UpsertJob(ctx, jobID, mirror.JobPatch{Status: &status})

	s.logger.InfoContext(ctx, "Job finalized",
		log.FieldComponent, log.ComponentJobs,
		log.FieldOperation, log.OpFinalize,
		log.FieldJobID, jobID,
		log.FieldAmountCents, remaining.Cents)
	return job, nil
}

// PlannedRevenue combines the positive remaining budget of active jobs with
// outstanding receivables, never counting a job twice. A failed receivable
// read degrades to the jobs-only estimate; this read path never fails hard.
func (s *FinanceService) PlannedRevenue(ctx context.Context) core.Money {
	snap := s.mirror.Snapshot()
	recs, err := s.receivables.ListReceivables(ctx, s.mirror.Owner())
	if err != nil {
		s.logger.WarnContext(ctx, "Receivables unavailable, planned revenue from jobs only",
			log.FieldError, err,
			log.FieldComponent, log.ComponentReceivables,
			log.FieldOperation, log.OpList)
		recs = nil
	}
	return core.PlannedRevenue(snap.Jobs, recs)
}

// SetTargetBalance back-solves the opening balance so the current balance
// lands exactly on the target: opening = target - (income - expense).
func (s *FinanceService) SetTargetBalance(ctx context.Context, target core.Money) core.Money {
	summary := s.mirror.Summary()
	opening := target.Sub(summary.Income).Add(summary.Expense)
	s.mirror.SetOpeningBalance(ctx, opening)

	s.logger.InfoContext(ctx, "Opening balance back-solved from target",
		log.FieldComponent, log.ComponentCash,
		log.FieldOperation, log.OpUpdate,
		log.FieldAmountCents, opening.Cents)
	return opening
}

// ListReceivables returns the owner's outstanding receivables.
func (s *FinanceService) ListReceivables(ctx context.Context) ([]core.Receivable, error) {
	return s.receivables.ListReceivables(ctx, s.mirror.Owner())
}

// AddReceivable registers money owed to the business.
func (s *FinanceService) AddReceivable(ctx context.Context, rec core.Receivable) (core.Receivable, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := rec.Validate(); err != nil {
		return core.Receivable{}, err
	}
	if err := s.receivables.SaveReceivable(ctx, s.mirror.Owner(), rec); err != nil {
		return core.Receivable{}, err
	}
	s.notifyReceivables(ctx)
	return rec, nil
}

// UpdateReceivable overwrites a receivable's mutable fields.
func (s *FinanceService) UpdateReceivable(ctx context.Context, rec core.Receivable) (core.Receivable, error) {
	if _, err := s.receivables.GetReceivable(ctx, s.mirror.Owner(), rec.ID); err != nil {
		return core.Receivable{}, err
	}
	if err := rec.Validate(); err != nil {
		return core.Receivable{}, err
	}
	if err := s.receivables.SaveReceivable(ctx, s.mirror.Owner(), rec); err != nil {
		return core.Receivable{}, err
	}
	s.notifyReceivables(ctx)
	return rec, nil
}

// DeleteReceivable removes a receivable outright.
func (s *FinanceService) DeleteReceivable(ctx context.Context, id string) error {
	if err := s.receivables.DeleteReceivable(ctx, s.mirror.Owner(), id); err != nil {
		return err
	}
	s.notifyReceivables(ctx)
	return nil
}

// RegisterPayment books an income entry for the paid amount and reduces the
// receivable by exactly that value. A receivable driven to zero or below is
// deleted; there is no retained "paid" state. Returns the receivable after
// the payment and whether it was fully settled.
func (s *FinanceService) RegisterPayment(ctx context.Context, id string, amount core.Money) (core.Receivable, bool, error) {
	if !amount.IsPositive() {
		return core.Receivable{}, false, core.ErrInvalidAmount
	}
	rec, err := s.receivables.GetReceivable(ctx, s.mirror.Owner(), id)
	if err != nil {
		return core.Receivable{}, false, err
	}

	s.mirror.AddEntry(ctx, mirror.EntryInput{
		Kind:        core.Income,
		Amount:      amount,
		Description: fmt.Sprintf("Recebimento - %s", rec.Name),
		JobID:       rec.JobID,
	})

	rec.Amount = rec.Amount.Sub(amount)
	settled := !rec.Amount.IsPositive()
	if settled {
		if err := s.receivables.DeleteReceivable(ctx, s.mirror.Owner(), id); err != nil {
			return rec, true, err
		}
	} else {
		if err := s.receivables.SaveReceivable(ctx, s.mirror.Owner(), rec); err != nil {
			return rec, false, err
		}
	}

	s.logger.InfoContext(ctx, "Payment registered",
		log.FieldComponent, log.ComponentReceivables,
		log.FieldOperation, log.OpPayment,
		log.FieldReceivable, id,
		log.FieldAmountCents, amount.Cents,
		"settled", settled)
	s.notifyReceivables(ctx)
	return rec, settled, nil
}

func (s *FinanceService) notifyReceivables(ctx context.Context) {
	if s.bus != nil {
		s.bus.Publish(bus.TopicReceivablesUpdated, s.mirror.Owner())
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishChange(ctx, amqp.CollectionReceivables, s.mirror.Owner()); err != nil {
		s.logger.WarnContext(ctx, "Receivables change notification failed",
			log.FieldError, err,
			log.FieldComponent, log.ComponentReceivables,
			log.FieldOperation, log.OpNotify)
	}
}
