// Package mirror maintains the in-process snapshot of an owner's finance
// data (cash config, jobs, ledger entries), kept live against the row store.
//
// Mutations follow an optimistic, fire-and-forget protocol: the local
// snapshot changes synchronously, the store write and the change
// notification happen in the background, and failures are logged but never
// surfaced to the caller. Re-synchronization is a full reload triggered by
// the change-notification channel; there is no rollback and no merge.
package mirror

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"caixa/internal/amqp"
	"caixa/internal/bus"
	"caixa/internal/core"
	"caixa/internal/log"
)

// Store is the slice of the row store the mirror needs.
type Store interface {
	ListEntries(ctx context.Context, owner string) ([]core.Entry, error)
	InsertEntry(ctx context.Context, owner string, e core.Entry) error
	UpdateEntry(ctx context.Context, owner string, e core.Entry) error
	DeleteEntry(ctx context.Context, owner, id string) error
	ListJobs(ctx context.Context, owner string) ([]core.Job, error)
	UpsertJob(ctx context.Context, owner string, j core.Job) error
	SoftDeleteJob(ctx context.Context, owner, id string) error
	AddJobExpense(ctx context.Context, owner, jobID string, exp core.JobExpense) error
	DeleteJobExpense(ctx context.Context, owner, id string) error
	CashConfig(ctx context.Context, owner string) (core.CashConfig, error)
	SaveCashConfig(ctx context.Context, owner string, cfg core.CashConfig) error
}

// Notifier publishes change notifications to other sessions. A nil notifier
// is valid; the instance then runs standalone.
type Notifier interface {
	PublishChange(ctx context.Context, collection, owner string) error
}

// Snapshot is a point-in-time copy of the mirrored collections.
type Snapshot struct {
	Config  core.CashConfig
	Jobs    []core.Job
	Entries []core.Entry
}

// EntryInput carries the caller-provided fields of a new entry. Zero values
// are normalized: missing id gets a fresh one, missing date becomes today,
// missing scope becomes caixa, AffectsCash defaults to true.
type EntryInput struct {
	ID            string
	Date          core.Date
	Kind          core.EntryKind
	Amount        core.Money
	Description   string
	JobID         string
	Scope         core.EntryScope
	AffectsCash   *bool
	CreatedBy     string
	CreatedByName string
}

// EntryPatch is a partial update; nil fields are left unchanged.
type EntryPatch struct {
	Date        *core.Date
	Kind        *core.EntryKind
	Amount      *core.Money
	Description *string
	JobID       *string
	Scope       *core.EntryScope
	AffectsCash *bool
}

// JobPatch is a partial job update; nil fields are left unchanged.
type JobPatch struct {
	Name   *string
	Title  *string
	Budget *core.Money
	Status *core.JobStatus
}

type Mirror struct {
	owner    string
	store    Store
	notifier Notifier
	bus      *bus.Bus
	logger   *log.Logger

	mu   sync.RWMutex
	snap Snapshot

	writes sync.WaitGroup
}

func New(owner string, store Store, notifier Notifier, b *bus.Bus, logger *log.Logger) *Mirror {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Mirror{
		owner:    owner,
		store:    store,
		notifier: notifier,
		bus:      b,
		logger:   logger.WithComponent(log.ComponentMirror),
	}
}

// Owner returns the owner this mirror serves.
func (m *Mirror) Owner() string { return m.owner }

// Load replaces the snapshot with a fresh fetch of the three collections.
// With no owner it resets to a zeroed snapshot. On fetch failure the prior
// snapshot stays intact (stale-but-available) and the error is returned for
// logging only; callers never treat it as fatal.
func (m *Mirror) Load(ctx context.Context) error {
	if m.owner == "" {
		m.mu.Lock()
		m.snap = Snapshot{}
		m.mu.Unlock()
		return nil
	}

	var (
		cfg     core.CashConfig
		jobs    []core.Job
		entries []core.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cfg, err = m.store.CashConfig(gctx, m.owner)
		return err
	})
	g.Go(func() (err error) {
		jobs, err = m.store.ListJobs(gctx, m.owner)
		return err
	})
	g.Go(func() (err error) {
		entries, err = m.store.ListEntries(gctx, m.owner)
		return err
	})
	if err := g.Wait(); err != nil {
		m.logger.WarnContext(ctx, "Mirror load failed, keeping prior snapshot",
			log.FieldError, err, log.FieldOwner, m.owner, log.FieldOperation, log.OpLoad)
		return err
	}

	m.mu.Lock()
	m.snap = Snapshot{Config: cfg, Jobs: jobs, Entries: entries}
	m.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := Snapshot{
		Config:  m.snap.Config,
		Jobs:    make([]core.Job, len(m.snap.Jobs)),
		Entries: append([]core.Entry(nil), m.snap.Entries...),
	}
	for i, j := range m.snap.Jobs {
		j.Expenses = append([]core.JobExpense(nil), j.Expenses...)
		snap.Jobs[i] = j
	}
	return snap
}

// Summary is the pure derived read over the current snapshot.
func (m *Mirror) Summary() core.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return core.Summarize(m.snap.Entries, m.snap.Config.OpeningBalance)
}

// AddEntry constructs a full entry from the input, prepends it to the
// snapshot before the store write confirms, and returns it immediately.
func (m *Mirror) AddEntry(ctx context.Context, in EntryInput) core.Entry {
	e := core.Entry{
		ID:            in.ID,
		Date:          in.Date,
		Kind:          in.Kind,
		Amount:        in.Amount,
		Description:   in.Description,
		JobID:         in.JobID,
		Scope:         in.Scope,
		AffectsCash:   true,
		CreatedBy:     in.CreatedBy,
		CreatedByName: in.CreatedByName,
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Date.IsZero() {
		e.Date = core.Today()
	}
	if e.Scope == "" {
		e.Scope = core.ScopeCash
	}
	if in.AffectsCash != nil {
		e.AffectsCash = *in.AffectsCash
	}

	m.mu.Lock()
	m.snap.Entries = append([]core.Entry{e}, m.snap.Entries...)
	m.mu.Unlock()

	m.remoteWrite(ctx, amqp.CollectionEntries, log.OpCreate, e.ID, func(wctx context.Context) error {
		return m.store.InsertEntry(wctx, m.owner, e)
	})
	m.publish()
	return e
}

// UpdateEntry applies a partial update. Only provided fields change. The
// second return value reports whether the entry existed locally.
func (m *Mirror) UpdateEntry(ctx context.Context, id string, patch EntryPatch) (core.Entry, bool) {
	m.mu.Lock()
	idx := -1
	for i := range m.snap.Entries {
		if m.snap.Entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return core.Entry{}, false
	}
	e := m.snap.Entries[idx]
	if patch.Date != nil {
		e.Date = *patch.Date
	}
	if patch.Kind != nil {
		e.Kind = *patch.Kind
	}
	if patch.Amount != nil {
		e.Amount = *patch.Amount
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.JobID != nil {
		e.JobID = *patch.JobID
	}
	if patch.Scope != nil {
		e.Scope = *patch.Scope
	}
	if patch.AffectsCash != nil {
		e.AffectsCash = *patch.AffectsCash
	}
	m.snap.Entries[idx] = e
	m.mu.Unlock()

	m.remoteWrite(ctx, amqp.CollectionEntries, log.OpUpdate, e.ID, func(wctx context.Context) error {
		return m.store.UpdateEntry(wctx, m.owner, e)
	})
	m.publish()
	return e, true
}

// RemoveEntry hard-deletes locally and remotely.
func (m *Mirror) RemoveEntry(ctx context.Context, id string) bool {
	m.mu.Lock()
	found := false
	entries := m.snap.Entries[:0]
	for _, e := range m.snap.Entries {
		if e.ID == id {
			found = true
			continue
		}
		entries = append(entries, e)
	}
	m.snap.Entries = entries
	m.mu.Unlock()

	if !found {
		return false
	}

	m.remoteWrite(ctx, amqp.CollectionEntries, log.OpDelete, id, func(wctx context.Context) error {
		return m.store.DeleteEntry(wctx, m.owner, id)
	})
	m.publish()
	return true
}

// SetOpeningBalance overwrites the cash-config singleton.
func (m *Mirror) SetOpeningBalance(ctx context.Context, value core.Money) {
	m.mu.Lock()
	m.snap.Config.OpeningBalance = value
	cfg := m.snap.Config
	m.mu.Unlock()

	m.remoteWrite(ctx, amqp.CollectionCashConfig, log.OpUpdate, "", func(wctx context.Context) error {
		return m.store.SaveCashConfig(wctx, m.owner, cfg)
	})
	m.publish()
}

// UpsertJob merges the patch into the job, creating it as an active job if
// absent. The expense trail is never touched here.
func (m *Mirror) UpsertJob(ctx context.Context, id string, patch JobPatch) core.Job {
	m.mu.Lock()
	idx := -1
	for i := range m.snap.Jobs {
		if m.snap.Jobs[i].ID == id {
			idx = i
			break
		}
	}
	var j core.Job
	if idx >= 0 {
		j = m.snap.Jobs[idx]
	} else {
		j = core.Job{ID: id, Status: core.JobActive}
	}
	if patch.Name != nil {
		j.Name = *patch.Name
	}
	if patch.Title != nil {
		j.Title = *patch.Title
	}
	if patch.Budget != nil {
		j.Budget = *patch.Budget
	}
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	if idx >= 0 {
		m.snap.Jobs[idx] = j
	} else {
		m.snap.Jobs = append([]core.Job{j}, m.snap.Jobs...)
	}
	m.mu.Unlock()

	m.remoteWrite(ctx, amqp.CollectionJobs, log.OpUpdate, id, func(wctx context.Context) error {
		return m.store.UpsertJob(wctx, m.owner, j)
	})
	m.publish()
	return j
}

// RemoveJob soft-deletes a job. The row persists with a tombstone until the
// maintenance worker reclaims it.
func (m *Mirror) RemoveJob(ctx context.Context, id string) bool {
	m.mu.Lock()
	found := false
	jobs := m.snap.Jobs[:0]
	for _, j := range m.snap.Jobs {
		if j.ID == id {
			found = true
			continue
		}
		jobs = append(jobs, j)
	}
	m.snap.Jobs = jobs
	m.mu.Unlock()

	if !found {
		return false
	}

	m.remoteWrite(ctx, amqp.CollectionJobs, log.OpDelete, id, func(wctx context.Context) error {
		return m.store.SoftDeleteJob(wctx, m.owner, id)
	})
	m.publish()
	return true
}

// AddJobExpense appends an expense to a job's trail. The second return
// value reports whether the job existed locally.
func (m *Mirror) AddJobExpense(ctx context.Context, jobID string, exp core.JobExpense) (core.JobExpense, bool) {
	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	if exp.Date.IsZero() {
		exp.Date = core.Today()
	}

	m.mu.Lock()
	idx := -1
	for i := range m.snap.Jobs {
		if m.snap.Jobs[i].ID == jobID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return core.JobExpense{}, false
	}
	m.snap.Jobs[idx].Expenses = append(m.snap.Jobs[idx].Expenses, exp)
	m.mu.Unlock()

	m.remoteWrite(ctx, amqp.CollectionJobs, log.OpCreate, exp.ID, func(wctx context.Context) error {
		return m.store.AddJobExpense(wctx, m.owner, jobID, exp)
	})
	m.publish()
	return exp, true
}

// RemoveJobExpense drops an expense from whichever job owns it.
func (m *Mirror) RemoveJobExpense(ctx context.Context, id string) bool {
	m.mu.Lock()
	found := false
	for i := range m.snap.Jobs {
		exps := m.snap.Jobs[i].Expenses[:0]
		for _, exp := range m.snap.Jobs[i].Expenses {
			if exp.ID == id {
				found = true
				continue
			}
			exps = append(exps, exp)
		}
		m.snap.Jobs[i].Expenses = exps
		if found {
			break
		}
	}
	m.mu.Unlock()

	if !found {
		return false
	}

	m.remoteWrite(ctx, amqp.CollectionJobs, log.OpDelete, id, func(wctx context.Context) error {
		return m.store.DeleteJobExpense(wctx, m.owner, id)
	})
	m.publish()
	return true
}

// Flush waits for in-flight store writes. Used on shutdown and in tests;
// regular callers never wait.
func (m *Mirror) Flush() {
	m.writes.Wait()
}

// remoteWrite runs the store write and the change notification in the
// background. Failures are logged and swallowed: the optimistic local state
// stays in place and the next notification-triggered Load reconciles.
func (m *Mirror) remoteWrite(ctx context.Context, collection, op, id string, write func(context.Context) error) {
	wctx := context.WithoutCancel(ctx)
	m.writes.Add(1)
	go func() {
		defer m.writes.Done()
		if err := write(wctx); err != nil {
			m.logger.ErrorContext(wctx, "Remote write failed, keeping optimistic state",
				log.FieldError, err,
				log.FieldOwner, m.owner,
				log.FieldCollection, collection,
				log.FieldOperation, op,
				log.FieldEntryID, id)
			return
		}
		if m.notifier == nil {
			return
		}
		if err := m.notifier.PublishChange(wctx, collection, m.owner); err != nil {
			m.logger.WarnContext(wctx, "Change notification failed",
				log.FieldError, err,
				log.FieldCollection, collection,
				log.FieldOperation, log.OpNotify)
		}
	}()
}

func (m *Mirror) publish() {
	if m.bus != nil {
		m.bus.Publish(bus.TopicFinanceUpdated, m.owner)
	}
}
