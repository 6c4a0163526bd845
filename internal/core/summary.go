package core

import "sort"

// Summary holds the three headline figures derived from the ledger.
type Summary struct {
	Income  Money
	Expense Money
	Balance Money
}

// CategoryAmount is an amount aggregated by description.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// UncategorizedLabel groups entries without a description.
const UncategorizedLabel = "Sem categoria"

// Summarize folds the entry list into income, expense and balance. Only
// entries that count toward cash participate; adding any obra-scoped entry
// never changes the result. The function is deterministic and holds no
// state, it is safe to recompute on every read.
func Summarize(entries []Entry, openingBalance Money) Summary {
	var income, expense Money
	for _, e := range entries {
		if !e.CountsTowardCash() {
			continue
		}
		switch e.Kind {
		case Income:
			income = income.Add(e.Amount)
		case Expense:
			expense = expense.Add(e.Amount)
		}
	}
	return Summary{
		Income:  income,
		Expense: expense,
		Balance: openingBalance.Add(income).Sub(expense),
	}
}

// PlannedRevenue estimates near-term expected income from two
// non-overlapping sources: the positive remaining budget of active jobs, and
// outstanding receivables. Jobs already represented by a receivable are
// excluded from the budget side so the same expected income is never counted
// twice.
func PlannedRevenue(jobs []Job, receivables []Receivable) Money {
	withReceivable := make(map[string]struct{}, len(receivables))
	for _, r := range receivables {
		if r.JobID != "" {
			withReceivable[r.JobID] = struct{}{}
		}
	}

	var total Money
	for _, j := range jobs {
		if j.Status != JobActive {
			continue
		}
		if _, ok := withReceivable[j.ID]; ok {
			continue
		}
		if remaining := j.Remaining(); remaining.IsPositive() {
			total = total.Add(remaining)
		}
	}
	for _, r := range receivables {
		total = total.Add(r.Amount)
	}
	return total
}

// FilterByDay returns the entries dated on the given calendar day.
func FilterByDay(entries []Entry, day Date) []Entry {
	if day.IsZero() {
		return nil
	}
	var out []Entry
	for _, e := range entries {
		if e.Date == day {
			out = append(out, e)
		}
	}
	return out
}

// FilterByMonth returns the entries whose date falls in the month given as
// YYYY-MM. Entries with an unset date never match.
func FilterByMonth(entries []Entry, yearMonth string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Date.SameMonth(yearMonth) {
			out = append(out, e)
		}
	}
	return out
}

// Categorize groups entries by description and sums amounts per group,
// ordered by descending sum. Ties keep a stable name order so the result is
// deterministic.
func Categorize(entries []Entry) []CategoryAmount {
	sums := make(map[string]Money)
	for _, e := range entries {
		name := e.Description
		if name == "" {
			name = UncategorizedLabel
		}
		sums[name] = sums[name].Add(e.Amount)
	}
	out := make([]CategoryAmount, 0, len(sums))
	for name, amount := range sums {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
