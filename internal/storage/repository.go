// Package storage implements the row store behind the finance service:
// ledger entries, jobs with their expense trail, receivables, the per-owner
// cash config singleton and filter preferences.
//
// Ledger entries and receivables are hard-deleted. Jobs and job expenses use
// a deleted_at tombstone; PurgeSoftDeleted reclaims tombstones past the
// retention window.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"caixa/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- ledger entries ---

// ListEntries returns the owner's entries, newest first.
func (r *SQLiteRepository) ListEntries(ctx context.Context, owner string) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entry_date, kind, amount_cents, description, job_id, scope, affects_cash, created_by, created_by_name
		FROM ledger_entries
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var (
			e           core.Entry
			dateISO     string
			affectsCash int64
		)
		if err := rows.Scan(&e.ID, &dateISO, &e.Kind, &e.Amount.Cents, &e.Description, &e.JobID, &e.Scope, &affectsCash, &e.CreatedBy, &e.CreatedByName); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.AffectsCash = affectsCash != 0
		// A row with an unparseable date keeps a zero Date and simply never
		// matches the day/month views.
		if d, err := core.ParseDate(dateISO); err == nil {
			e.Date = d
		} else {
			slog.WarnContext(ctx, "Entry has unparseable date, excluded from date views",
				"entry_id", e.ID, "date", dateISO)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) InsertEntry(ctx context.Context, owner string, e core.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, owner_id, entry_date, kind, amount_cents, description, job_id, scope, affects_cash, created_by, created_by_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, owner, e.Date.ISO(), string(e.Kind), e.Amount.Cents, e.Description, e.JobID, string(e.Scope), boolToInt(e.AffectsCash), e.CreatedBy, e.CreatedByName)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// UpdateEntry replaces the mutable columns of an existing entry.
func (r *SQLiteRepository) UpdateEntry(ctx context.Context, owner string, e core.Entry) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ledger_entries
		SET entry_date = ?, kind = ?, amount_cents = ?, description = ?, job_id = ?, scope = ?, affects_cash = ?
		WHERE owner_id = ? AND id = ?`,
		e.Date.ISO(), string(e.Kind), e.Amount.Cents, e.Description, e.JobID, string(e.Scope), boolToInt(e.AffectsCash), owner, e.ID)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return requireRow(res, core.ErrNotFound)
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM ledger_entries WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return requireRow(res, core.ErrNotFound)
}

// --- cash config ---

// CashConfig returns the owner's singleton, zero-valued if never set.
func (r *SQLiteRepository) CashConfig(ctx context.Context, owner string) (core.CashConfig, error) {
	var cfg core.CashConfig
	err := r.db.QueryRowContext(ctx,
		`SELECT opening_balance_cents FROM cash_config WHERE owner_id = ?`, owner).
		Scan(&cfg.OpeningBalance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CashConfig{}, nil
	}
	if err != nil {
		return core.CashConfig{}, fmt.Errorf("get cash config: %w", err)
	}
	return cfg, nil
}

func (r *SQLiteRepository) SaveCashConfig(ctx context.Context, owner string, cfg core.CashConfig) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cash_config (owner_id, opening_balance_cents, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (owner_id) DO UPDATE SET
			opening_balance_cents = excluded.opening_balance_cents,
			updated_at = CURRENT_TIMESTAMP`,
		owner, cfg.OpeningBalance.Cents)
	if err != nil {
		return fmt.Errorf("save cash config: %w", err)
	}
	return nil
}

// --- jobs ---

// ListJobs returns the owner's live jobs with their expense trail, newest
// first.
func (r *SQLiteRepository) ListJobs(ctx context.Context, owner string) ([]core.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, title, budget_cents, status
		FROM jobs
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []core.Job
	index := make(map[string]int)
	for rows.Next() {
		var j core.Job
		if err := rows.Scan(&j.ID, &j.Name, &j.Title, &j.Budget.Cents, &j.Status); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		index[j.ID] = len(jobs)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	expRows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, name, amount_cents, expense_date
		FROM job_expenses
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY expense_date, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list job expenses: %w", err)
	}
	defer expRows.Close()

	for expRows.Next() {
		var (
			exp     core.JobExpense
			jobID   string
			dateISO string
		)
		if err := expRows.Scan(&exp.ID, &jobID, &exp.Name, &exp.Amount.Cents, &dateISO); err != nil {
			return nil, fmt.Errorf("scan job expense: %w", err)
		}
		if d, err := core.ParseDate(dateISO); err == nil {
			exp.Date = d
		}
		if i, ok := index[jobID]; ok {
			jobs[i].Expenses = append(jobs[i].Expenses, exp)
		}
		// Expenses of a soft-deleted job stay orphaned until the purge
		// sweep collects them.
	}
	return jobs, expRows.Err()
}

// UpsertJob creates or replaces the job row. The expense trail is managed
// through AddJobExpense/DeleteJobExpense and is left untouched.
func (r *SQLiteRepository) UpsertJob(ctx context.Context, owner string, j core.Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, owner_id, name, title, budget_cents, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			name = excluded.name,
			title = excluded.title,
			budget_cents = excluded.budget_cents,
			status = excluded.status,
			deleted_at = NULL`,
		j.ID, owner, j.Name, j.Title, j.Budget.Cents, string(j.Status))
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SoftDeleteJob(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET deleted_at = CURRENT_TIMESTAMP
		WHERE owner_id = ? AND id = ? AND deleted_at IS NULL`, owner, id)
	if err != nil {
		return fmt.Errorf("soft delete job: %w", err)
	}
	return requireRow(res, core.ErrNotFound)
}

func (r *SQLiteRepository) AddJobExpense(ctx context.Context, owner, jobID string, exp core.JobExpense) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_expenses (id, owner_id, job_id, name, amount_cents, expense_date)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			job_id = excluded.job_id,
			name = excluded.name,
			amount_cents = excluded.amount_cents,
			expense_date = excluded.expense_date,
			deleted_at = NULL`,
		exp.ID, owner, jobID, exp.Name, exp.Amount.Cents, exp.Date.ISO())
	if err != nil {
		return fmt.Errorf("add job expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteJobExpense(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE job_expenses SET deleted_at = CURRENT_TIMESTAMP
		WHERE owner_id = ? AND id = ? AND deleted_at IS NULL`, owner, id)
	if err != nil {
		return fmt.Errorf("delete job expense: %w", err)
	}
	return requireRow(res, core.ErrNotFound)
}

// --- receivables ---

func (r *SQLiteRepository) ListReceivables(ctx context.Context, owner string) ([]core.Receivable, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, amount_cents, phone, expected_date, job_id
		FROM receivables
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list receivables: %w", err)
	}
	defer rows.Close()

	var out []core.Receivable
	for rows.Next() {
		var (
			rec     core.Receivable
			dateISO string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Amount.Cents, &rec.Phone, &dateISO, &rec.JobID); err != nil {
			return nil, fmt.Errorf("scan receivable: %w", err)
		}
		if d, err := core.ParseDate(dateISO); err == nil {
			rec.ExpectedDate = d
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetReceivable(ctx context.Context, owner, id string) (core.Receivable, error) {
	var (
		rec     core.Receivable
		dateISO string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, amount_cents, phone, expected_date, job_id
		FROM receivables WHERE owner_id = ? AND id = ?`, owner, id).
		Scan(&rec.ID, &rec.Name, &rec.Amount.Cents, &rec.Phone, &dateISO, &rec.JobID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Receivable{}, core.ErrNotFound
	}
	if err != nil {
		return core.Receivable{}, fmt.Errorf("get receivable: %w", err)
	}
	if d, err := core.ParseDate(dateISO); err == nil {
		rec.ExpectedDate = d
	}
	return rec, nil
}

func (r *SQLiteRepository) SaveReceivable(ctx context.Context, owner string, rec core.Receivable) error {
	expected := ""
	if !rec.ExpectedDate.IsZero() {
		expected = rec.ExpectedDate.ISO()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO receivables (id, owner_id, name, amount_cents, phone, expected_date, job_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			name = excluded.name,
			amount_cents = excluded.amount_cents,
			phone = excluded.phone,
			expected_date = excluded.expected_date,
			job_id = excluded.job_id`,
		rec.ID, owner, rec.Name, rec.Amount.Cents, rec.Phone, expected, rec.JobID)
	if err != nil {
		return fmt.Errorf("save receivable: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteReceivable(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM receivables WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete receivable: %w", err)
	}
	return requireRow(res, core.ErrNotFound)
}

// --- prefs ---

func (r *SQLiteRepository) GetPref(ctx context.Context, owner, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM prefs WHERE owner_id = ? AND key = ?`, owner, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get pref: %w", err)
	}
	return value, nil
}

func (r *SQLiteRepository) SetPref(ctx context.Context, owner, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prefs (owner_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT (owner_id, key) DO UPDATE SET value = excluded.value`,
		owner, key, value)
	if err != nil {
		return fmt.Errorf("set pref: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeletePref(ctx context.Context, owner, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM prefs WHERE owner_id = ? AND key = ?`, owner, key)
	if err != nil {
		return fmt.Errorf("delete pref: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListPrefs(ctx context.Context, owner string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value FROM prefs WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("list prefs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan pref: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// --- maintenance ---

// PurgeSoftDeleted permanently removes jobs and job expenses whose tombstone
// is older than the cutoff. Returns the number of rows reclaimed.
func (r *SQLiteRepository) PurgeSoftDeleted(ctx context.Context, olderThan time.Time) (int64, error) {
	cutoff := olderThan.UTC().Format("2006-01-02 15:04:05")

	var total int64
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM job_expenses WHERE deleted_at IS NOT NULL AND deleted_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge job expenses: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = r.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE deleted_at IS NOT NULL AND deleted_at < ?`, cutoff)
	if err != nil {
		return total, fmt.Errorf("purge jobs: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}

// CountDanglingJobRefs counts ledger entries referencing a job id that no
// longer resolves. Dangling references are tolerated (the entry renders as
// "no job") but the worker reports them.
func (r *SQLiteRepository) CountDanglingJobRefs(ctx context.Context, owner string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM ledger_entries e
		WHERE e.owner_id = ? AND e.job_id != ''
		  AND NOT EXISTS (
			SELECT 1 FROM jobs j
			WHERE j.owner_id = e.owner_id AND j.id = e.job_id AND j.deleted_at IS NULL
		  )`, owner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count dangling job refs: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
