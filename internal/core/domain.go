package core

import (
	"errors"
	"strings"
)

const (
	Income  EntryKind = "entrada"
	Expense EntryKind = "saida"
)

const (
	// ScopeCash entries count toward the company cash balance.
	ScopeCash EntryScope = "caixa"
	// ScopeJob entries are recorded against a job's running total only and
	// are excluded from cash aggregation.
	ScopeJob EntryScope = "obra"
)

const (
	JobActive    JobStatus = "ativo"
	JobCompleted JobStatus = "finalizada"
)

type (
	EntryKind  string
	EntryScope string
	JobStatus  string

	// Entry is a single dated income or expense record. Entries are
	// hard-deleted; there is no tombstone.
	Entry struct {
		ID          string
		Date        Date
		Kind        EntryKind
		Amount      Money
		Description string
		// JobID is a weak reference: a dangling id renders as "no job".
		JobID         string
		Scope         EntryScope
		AffectsCash   bool
		CreatedBy     string
		CreatedByName string
	}

	// JobExpense is owned exclusively by its Job.
	JobExpense struct {
		ID     string
		Name   string
		Amount Money
		Date   Date
	}

	// Job is a unit of billable work: a budget plus an expense trail.
	// Remaining budget may go negative; that is a displayed state, not an
	// error.
	Job struct {
		ID       string
		Name     string // city / location
		Title    string // work name
		Budget   Money
		Status   JobStatus
		Expenses []JobExpense
	}

	// Receivable is money owed by a third party, not yet collected. A
	// receivable driven to zero by payments is deleted, it has no terminal
	// "paid" state.
	Receivable struct {
		ID           string
		Name         string
		Amount       Money
		Phone        string
		ExpectedDate Date
		JobID        string
	}

	// CashConfig is the per-owner singleton holding the opening balance
	// against which all aggregated income and expense is added.
	CashConfig struct {
		OpeningBalance Money
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidKind      = errors.New("invalid entry kind")
	ErrInvalidScope     = errors.New("invalid entry scope")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyDescription = errors.New("empty description")
	ErrNotFound         = errors.New("not found")
)

func (k EntryKind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	}
	return ErrInvalidKind
}

func (s EntryScope) Validate() error {
	switch s {
	case ScopeCash, ScopeJob:
		return nil
	}
	return ErrInvalidScope
}

// CountsTowardCash reports whether the entry participates in cash
// aggregation. Both conditions must hold: the affects-cash flag and a scope
// other than obra. The dual flag exists because some caixa-scoped entries
// are informational and must stay out of balance math.
func (e Entry) CountsTowardCash() bool {
	return e.AffectsCash && e.Scope != ScopeJob
}

func (e Entry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Kind.Validate(); err != nil {
		return err
	}
	if err := e.Scope.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

// TotalExpenses sums the job's expense trail.
func (j Job) TotalExpenses() Money {
	var total Money
	for _, e := range j.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Remaining returns budget minus recorded expenses. Negative means
// over-budget.
func (j Job) Remaining() Money {
	return j.Budget.Sub(j.TotalExpenses())
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.Title) == "" {
		return ErrEmptyName
	}
	switch j.Status {
	case JobActive, JobCompleted:
	default:
		return errors.New("invalid job status")
	}
	return nil
}

func (r Receivable) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	return nil
}
