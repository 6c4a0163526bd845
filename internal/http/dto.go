package http

import (
	"caixa/internal/core"
)

// Amounts travel both ways as decimal strings ("1234,56"); responses carry
// the cents alongside for clients that do math.

type entryDTO struct {
	ID            string          `json:"id"`
	Date          core.Date       `json:"date"`
	Kind          core.EntryKind  `json:"kind"`
	AmountCents   int64           `json:"amount_cents"`
	Amount        string          `json:"amount"`
	Description   string          `json:"description"`
	JobID         string          `json:"job_id,omitempty"`
	Scope         core.EntryScope `json:"scope"`
	AffectsCash   bool            `json:"affects_cash"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedByName string          `json:"created_by_name,omitempty"`
}

func toEntryDTO(e core.Entry) entryDTO {
	return entryDTO{
		ID:            e.ID,
		Date:          e.Date,
		Kind:          e.Kind,
		AmountCents:   e.Amount.Cents,
		Amount:        core.FormatBRL(e.Amount),
		Description:   e.Description,
		JobID:         e.JobID,
		Scope:         e.Scope,
		AffectsCash:   e.AffectsCash,
		CreatedBy:     e.CreatedBy,
		CreatedByName: e.CreatedByName,
	}
}

func toEntryDTOs(entries []core.Entry) []entryDTO {
	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryDTO(e))
	}
	return out
}

type jobExpenseDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AmountCents int64     `json:"amount_cents"`
	Amount      string    `json:"amount"`
	Date        core.Date `json:"date"`
}

type jobDTO struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Title              string          `json:"title"`
	BudgetCents        int64           `json:"budget_cents"`
	Budget             string          `json:"budget"`
	Status             core.JobStatus  `json:"status"`
	TotalExpensesCents int64           `json:"total_expenses_cents"`
	RemainingCents     int64           `json:"remaining_cents"`
	Remaining          string          `json:"remaining"`
	Expenses           []jobExpenseDTO `json:"expenses"`
}

func toJobDTO(j core.Job) jobDTO {
	remaining := j.Remaining()
	dto := jobDTO{
		ID:                 j.ID,
		Name:               j.Name,
		Title:              j.Title,
		BudgetCents:        j.Budget.Cents,
		Budget:             core.FormatBRL(j.Budget),
		Status:             j.Status,
		TotalExpensesCents: j.TotalExpenses().Cents,
		RemainingCents:     remaining.Cents,
		Remaining:          core.FormatBRL(remaining),
		Expenses:           make([]jobExpenseDTO, 0, len(j.Expenses)),
	}
	for _, exp := range j.Expenses {
		dto.Expenses = append(dto.Expenses, jobExpenseDTO{
			ID:          exp.ID,
			Name:        exp.Name,
			AmountCents: exp.Amount.Cents,
			Amount:      core.FormatBRL(exp.Amount),
			Date:        exp.Date,
		})
	}
	return dto
}

func toJobDTOs(jobs []core.Job) []jobDTO {
	out := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobDTO(j))
	}
	return out
}

type receivableDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AmountCents  int64     `json:"amount_cents"`
	Amount       string    `json:"amount"`
	Phone        string    `json:"phone,omitempty"`
	ExpectedDate core.Date `json:"expected_date"`
	JobID        string    `json:"job_id,omitempty"`
}

func toReceivableDTO(r core.Receivable) receivableDTO {
	return receivableDTO{
		ID:           r.ID,
		Name:         r.Name,
		AmountCents:  r.Amount.Cents,
		Amount:       core.FormatBRL(r.Amount),
		Phone:        r.Phone,
		ExpectedDate: r.ExpectedDate,
		JobID:        r.JobID,
	}
}

func toReceivableDTOs(recs []core.Receivable) []receivableDTO {
	out := make([]receivableDTO, 0, len(recs))
	for _, r := range recs {
		out = append(out, toReceivableDTO(r))
	}
	return out
}

type categoryDTO struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
}

type summaryDTO struct {
	OpeningBalanceCents int64  `json:"opening_balance_cents"`
	IncomeCents         int64  `json:"income_cents"`
	ExpenseCents        int64  `json:"expense_cents"`
	BalanceCents        int64  `json:"balance_cents"`
	Balance             string `json:"balance"`
	PlannedRevenueCents int64  `json:"planned_revenue_cents"`
	PlannedRevenue      string `json:"planned_revenue"`
}

// parseMoney converts a decimal amount string to Money.
func parseMoney(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}
