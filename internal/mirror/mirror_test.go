package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"caixa/internal/bus"
	"caixa/internal/core"
)

// fakeStore is an in-memory Store with switchable failure injection.
type fakeStore struct {
	mu      sync.Mutex
	entries []core.Entry
	jobs    []core.Job
	config  core.CashConfig

	failReads  bool
	failWrites bool
	inserted   []string
	deleted    []string
}

var errInjected = errors.New("injected failure")

func (f *fakeStore) ListEntries(_ context.Context, _ string) ([]core.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errInjected
	}
	return append([]core.Entry(nil), f.entries...), nil
}

func (f *fakeStore) InsertEntry(_ context.Context, _ string, e core.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errInjected
	}
	f.entries = append(f.entries, e)
	f.inserted = append(f.inserted, e.ID)
	return nil
}

func (f *fakeStore) UpdateEntry(_ context.Context, _ string, e core.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errInjected
	}
	for i := range f.entries {
		if f.entries[i].ID == e.ID {
			f.entries[i] = e
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeStore) DeleteEntry(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errInjected
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) ListJobs(_ context.Context, _ string) ([]core.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errInjected
	}
	return append([]core.Job(nil), f.jobs...), nil
}

func (f *fakeStore) UpsertJob(_ context.Context, _ string, j core.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errInjected
	}
	for i := range f.jobs {
		if f.jobs[i].ID == j.ID {
			f.jobs[i] = j
			return nil
		}
	}
	f.jobs = append(f.jobs, j)
	return nil
}

func (f *fakeStore) SoftDeleteJob(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errInjected
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) AddJobExpense(_ context.Context, _ string, jobID string, exp core.JobExpense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errInjected
	}
	for i := range f.jobs {
		if f.jobs[i].ID == jobID {
			f.jobs[i].Expenses = append(f.jobs[i].Expenses, exp)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeStore) DeleteJobExpense(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errInjected
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) CashConfig(_ context.Context, _ string) (core.CashConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return core.CashConfig{}, errInjected
	}
	return f.config, nil
}

func (f *fakeStore) SaveCashConfig(_ context.Context, _ string, cfg core.CashConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errInjected
	}
	f.config = cfg
	return nil
}

type fakeNotifier struct {
	mu          sync.Mutex
	collections []string
}

func (f *fakeNotifier) PublishChange(_ context.Context, collection, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections = append(f.collections, collection)
	return nil
}

func (f *fakeNotifier) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.collections...)
}

func newTestMirror(t *testing.T, store *fakeStore) *Mirror {
	t.Helper()
	return New("owner-1", store, nil, nil, nil)
}

func TestLoadReplacesSnapshot(t *testing.T) {
	store := &fakeStore{
		entries: []core.Entry{{ID: "e1", Amount: core.Money{Cents: 100}}},
		jobs:    []core.Job{{ID: "j1", Title: "Obra"}},
		config:  core.CashConfig{OpeningBalance: core.Money{Cents: 500}},
	}
	m := newTestMirror(t, store)

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := m.Snapshot()
	if len(snap.Entries) != 1 || len(snap.Jobs) != 1 || snap.Config.OpeningBalance.Cents != 500 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestLoadFailureKeepsPriorSnapshot(t *testing.T) {
	store := &fakeStore{entries: []core.Entry{{ID: "e1"}}}
	m := newTestMirror(t, store)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	store.mu.Lock()
	store.failReads = true
	store.mu.Unlock()

	if err := m.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if got := m.Snapshot().Entries; len(got) != 1 || got[0].ID != "e1" {
		t.Fatalf("prior snapshot lost: %+v", got)
	}
}

func TestLoadWithoutOwnerResets(t *testing.T) {
	store := &fakeStore{entries: []core.Entry{{ID: "e1"}}}
	m := New("", store, nil, nil, nil)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := m.Snapshot()
	if len(snap.Entries) != 0 || len(snap.Jobs) != 0 || snap.Config.OpeningBalance.Cents != 0 {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}

func TestAddEntryIsVisibleImmediately(t *testing.T) {
	store := &fakeStore{}
	m := newTestMirror(t, store)

	e := m.AddEntry(context.Background(), EntryInput{
		Kind:   core.Income,
		Amount: core.Money{Cents: 2500},
	})
	if e.ID == "" {
		t.Fatal("expected generated id")
	}
	if e.Date.IsZero() {
		t.Fatal("expected today as default date")
	}
	if e.Scope != core.ScopeCash || !e.AffectsCash {
		t.Fatalf("defaults not applied: %+v", e)
	}

	snap := m.Snapshot()
	if len(snap.Entries) != 1 || snap.Entries[0].ID != e.ID {
		t.Fatalf("entry not visible in snapshot: %+v", snap.Entries)
	}

	m.Flush()
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.inserted) != 1 || store.inserted[0] != e.ID {
		t.Fatalf("store write missing: %+v", store.inserted)
	}
}

func TestFailedWriteKeepsOptimisticState(t *testing.T) {
	store := &fakeStore{failWrites: true}
	m := newTestMirror(t, store)

	e := m.AddEntry(context.Background(), EntryInput{
		Kind:   core.Expense,
		Amount: core.Money{Cents: 900},
	})
	m.Flush()

	if got := m.Snapshot().Entries; len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("optimistic state rolled back: %+v", got)
	}
}

func TestUpdateEntryPatchesOnlyGivenFields(t *testing.T) {
	store := &fakeStore{}
	m := newTestMirror(t, store)
	e := m.AddEntry(context.Background(), EntryInput{
		Kind:        core.Income,
		Amount:      core.Money{Cents: 100},
		Description: "antes",
	})

	desc := "depois"
	got, ok := m.UpdateEntry(context.Background(), e.ID, EntryPatch{Description: &desc})
	if !ok {
		t.Fatal("entry not found")
	}
	if got.Description != "depois" || got.Amount.Cents != 100 || got.Kind != core.Income {
		t.Fatalf("patch touched unrelated fields: %+v", got)
	}

	if _, ok := m.UpdateEntry(context.Background(), "missing", EntryPatch{}); ok {
		t.Fatal("update of missing entry reported success")
	}
}

func TestRemoveEntry(t *testing.T) {
	store := &fakeStore{}
	m := newTestMirror(t, store)
	e := m.AddEntry(context.Background(), EntryInput{Kind: core.Income, Amount: core.Money{Cents: 100}})

	if !m.RemoveEntry(context.Background(), e.ID) {
		t.Fatal("remove reported failure")
	}
	if len(m.Snapshot().Entries) != 0 {
		t.Fatal("entry still in snapshot")
	}
	if m.RemoveEntry(context.Background(), e.ID) {
		t.Fatal("second remove reported success")
	}
}

func TestUpsertJobCreatesThenMerges(t *testing.T) {
	store := &fakeStore{}
	m := newTestMirror(t, store)

	title := "Reforma"
	budget := core.Money{Cents: 100000}
	j := m.UpsertJob(context.Background(), "j1", JobPatch{Title: &title, Budget: &budget})
	if j.Status != core.JobActive {
		t.Fatalf("new job should be active, got %s", j.Status)
	}

	name := "Campinas"
	j = m.UpsertJob(context.Background(), "j1", JobPatch{Name: &name})
	if j.Title != "Reforma" || j.Budget.Cents != 100000 || j.Name != "Campinas" {
		t.Fatalf("merge lost fields: %+v", j)
	}
	if len(m.Snapshot().Jobs) != 1 {
		t.Fatal("upsert duplicated the job")
	}
}

func TestJobExpenseLifecycle(t *testing.T) {
	store := &fakeStore{}
	m := newTestMirror(t, store)
	title := "Obra"
	m.UpsertJob(context.Background(), "j1", JobPatch{Title: &title})

	exp, ok := m.AddJobExpense(context.Background(), "j1", core.JobExpense{
		Name:   "cimento",
		Amount: core.Money{Cents: 3000},
	})
	if !ok {
		t.Fatal("job not found")
	}
	if exp.ID == "" || exp.Date.IsZero() {
		t.Fatalf("defaults not applied: %+v", exp)
	}

	if _, ok := m.AddJobExpense(context.Background(), "missing", core.JobExpense{Name: "x"}); ok {
		t.Fatal("expense added to missing job")
	}

	if !m.RemoveJobExpense(context.Background(), exp.ID) {
		t.Fatal("remove expense failed")
	}
	if got := m.Snapshot().Jobs[0].Expenses; len(got) != 0 {
		t.Fatalf("expense still present: %+v", got)
	}
}

func TestRemoveJob(t *testing.T) {
	store := &fakeStore{}
	m := newTestMirror(t, store)
	title := "Obra"
	m.UpsertJob(context.Background(), "j1", JobPatch{Title: &title})

	if !m.RemoveJob(context.Background(), "j1") {
		t.Fatal("remove reported failure")
	}
	m.Flush()
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.deleted) != 1 || store.deleted[0] != "j1" {
		t.Fatalf("soft delete not forwarded: %+v", store.deleted)
	}
}

func TestWritesNotifyAndPublish(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	b := bus.New()
	m := New("owner-1", store, notifier, b, nil)

	events, cancel := b.Subscribe(bus.TopicFinanceUpdated)
	defer cancel()

	m.AddEntry(context.Background(), EntryInput{Kind: core.Income, Amount: core.Money{Cents: 100}})
	m.Flush()

	select {
	case evt := <-events:
		if evt.Owner != "owner-1" {
			t.Fatalf("unexpected owner: %q", evt.Owner)
		}
	case <-time.After(time.Second):
		t.Fatal("no bus event published")
	}

	if got := notifier.published(); len(got) != 1 || got[0] != "ledger_entries" {
		t.Fatalf("unexpected notifications: %+v", got)
	}
}

func TestSummaryFollowsSnapshot(t *testing.T) {
	store := &fakeStore{config: core.CashConfig{OpeningBalance: core.Money{Cents: 1000}}}
	m := newTestMirror(t, store)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	m.AddEntry(context.Background(), EntryInput{Kind: core.Income, Amount: core.Money{Cents: 500}})
	m.AddEntry(context.Background(), EntryInput{Kind: core.Expense, Amount: core.Money{Cents: 200}})

	got := m.Summary()
	if got.Balance.Cents != 1300 {
		t.Fatalf("balance expected 1300, got %d", got.Balance.Cents)
	}
}
