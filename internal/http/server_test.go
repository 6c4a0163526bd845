package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"caixa/internal/bus"
	"caixa/internal/core"
	"caixa/internal/mirror"
	"caixa/internal/prefs"
	"caixa/internal/services"
)

// fakeBackend implements every store interface the server needs.
type fakeBackend struct {
	mu      sync.Mutex
	entries []core.Entry
	jobs    []core.Job
	config  core.CashConfig
	recs    map[string]core.Receivable
	prefs   map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		recs:  make(map[string]core.Receivable),
		prefs: make(map[string]string),
	}
}

func (f *fakeBackend) ListEntries(_ context.Context, _ string) ([]core.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Entry(nil), f.entries...), nil
}

func (f *fakeBackend) InsertEntry(_ context.Context, _ string, e core.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeBackend) UpdateEntry(_ context.Context, _ string, e core.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].ID == e.ID {
			f.entries[i] = e
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeBackend) DeleteEntry(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeBackend) ListJobs(_ context.Context, _ string) ([]core.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Job(nil), f.jobs...), nil
}

func (f *fakeBackend) UpsertJob(_ context.Context, _ string, j core.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.jobs {
		if f.jobs[i].ID == j.ID {
			f.jobs[i] = j
			return nil
		}
	}
	f.jobs = append(f.jobs, j)
	return nil
}

func (f *fakeBackend) SoftDeleteJob(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.jobs {
		if f.jobs[i].ID == id {
			f.jobs = append(f.jobs[:i], f.jobs[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeBackend) AddJobExpense(_ context.Context, _ string, jobID string, exp core.JobExpense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.jobs {
		if f.jobs[i].ID == jobID {
			f.jobs[i].Expenses = append(f.jobs[i].Expenses, exp)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeBackend) DeleteJobExpense(_ context.Context, _ string, _ string) error { return nil }

func (f *fakeBackend) CashConfig(_ context.Context, _ string) (core.CashConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config, nil
}

func (f *fakeBackend) SaveCashConfig(_ context.Context, _ string, cfg core.CashConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = cfg
	return nil
}

func (f *fakeBackend) ListReceivables(_ context.Context, _ string) ([]core.Receivable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Receivable, 0, len(f.recs))
	for _, r := range f.recs {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) GetReceivable(_ context.Context, _ string, id string) (core.Receivable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return core.Receivable{}, core.ErrNotFound
	}
	return r, nil
}

func (f *fakeBackend) SaveReceivable(_ context.Context, _ string, rec core.Receivable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[rec.ID] = rec
	return nil
}

func (f *fakeBackend) DeleteReceivable(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recs[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.recs, id)
	return nil
}

func (f *fakeBackend) GetPref(_ context.Context, _ string, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.prefs[key]
	if !ok {
		return "", core.ErrNotFound
	}
	return v, nil
}

func (f *fakeBackend) SetPref(_ context.Context, _ string, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs[key] = value
	return nil
}

func (f *fakeBackend) DeletePref(_ context.Context, _ string, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.prefs, key)
	return nil
}

func (f *fakeBackend) ListPrefs(_ context.Context, _ string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.prefs))
	for k, v := range f.prefs {
		out[k] = v
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *mirror.Mirror, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	b := bus.New()
	m := mirror.New("owner-1", backend, nil, b, nil)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	finance := services.NewFinanceService(m, backend, nil, b, nil)
	prefsSvc := prefs.NewService(backend, "owner-1", b, nil)
	srv := NewServer(":0", m, finance, prefsSvc, nil)
	t.Cleanup(func() { srv.limiter.stop() })
	return srv, m, backend
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return v
}

func TestCreateAndListEntries(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/entries/", map[string]any{
		"kind":        "entrada",
		"amount":      "700,00",
		"description": "Venda",
		"date":        "05/03/2024",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[entryDTO](t, rec)
	if created.AmountCents != 70000 || created.Scope != core.ScopeCash || !created.AffectsCash {
		t.Fatalf("unexpected entry: %+v", created)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/entries/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list expected 200, got %d", rec.Code)
	}
	list := decodeBody[[]entryDTO](t, rec)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestEntryFilters(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, in := range []map[string]any{
		{"kind": "entrada", "amount": "100", "date": "05/03/2024"},
		{"kind": "saida", "amount": "50", "date": "06/03/2024"},
		{"kind": "entrada", "amount": "25", "date": "05/04/2024"},
	} {
		if rec := doJSON(t, srv, http.MethodPost, "/api/v1/entries/", in); rec.Code != http.StatusCreated {
			t.Fatalf("seed failed: %d %s", rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/entries/?day=05/03/2024", nil)
	if got := decodeBody[[]entryDTO](t, rec); len(got) != 1 {
		t.Fatalf("day filter expected 1 entry, got %d", len(got))
	}

	// ISO form works too.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/entries/?day=2024-03-05", nil)
	if got := decodeBody[[]entryDTO](t, rec); len(got) != 1 {
		t.Fatalf("ISO day filter expected 1 entry, got %d", len(got))
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/entries/?month=2024-03", nil)
	if got := decodeBody[[]entryDTO](t, rec); len(got) != 2 {
		t.Fatalf("month filter expected 2 entries, got %d", len(got))
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/entries/?day=05/03/2024&month=2024-03", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("combined filters expected 400, got %d", rec.Code)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	cases := []struct {
		name string
		body map[string]any
		code int
	}{
		{"bad kind", map[string]any{"kind": "x", "amount": "10"}, http.StatusUnprocessableEntity},
		{"zero amount", map[string]any{"kind": "entrada", "amount": "0"}, http.StatusUnprocessableEntity},
		{"bad amount", map[string]any{"kind": "entrada", "amount": "dez"}, http.StatusUnprocessableEntity},
		{"bad date", map[string]any{"kind": "entrada", "amount": "10", "date": "33/03/2024"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/v1/entries/", tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSummaryAndTargetBalance(t *testing.T) {
	srv, _, _ := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/v1/entries/", map[string]any{"kind": "entrada", "amount": "500"})
	doJSON(t, srv, http.MethodPost, "/api/v1/entries/", map[string]any{"kind": "saida", "amount": "200"})

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/summary", nil)
	summary := decodeBody[summaryDTO](t, rec)
	if summary.BalanceCents != 30000 {
		t.Fatalf("balance expected 30000, got %d", summary.BalanceCents)
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/v1/cash/target-balance", map[string]any{"amount": "1000"})
	if rec.Code != http.StatusOK {
		t.Fatalf("target balance expected 200, got %d", rec.Code)
	}
	cash := decodeBody[cashDTO](t, rec)
	if cash.OpeningBalanceCents != 70000 {
		t.Fatalf("back-solved opening expected 70000, got %d", cash.OpeningBalanceCents)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/summary", nil)
	if got := decodeBody[summaryDTO](t, rec); got.BalanceCents != 100000 {
		t.Fatalf("balance should land on target, got %d", got.BalanceCents)
	}
}

func TestJobFinalizeFlow(t *testing.T) {
	srv, m, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/jobs/", map[string]any{
		"name":   "Campinas",
		"title":  "Reforma Centro",
		"budget": "1000,00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create job expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	job := decodeBody[jobDTO](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/jobs/"+job.ID+"/expenses", map[string]any{
		"name":   "material",
		"amount": "300,00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add expense expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/jobs/"+job.ID+"/finalize", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	finalized := decodeBody[jobDTO](t, rec)
	if finalized.Status != core.JobCompleted {
		t.Fatalf("job not completed: %s", finalized.Status)
	}

	// The remaining 700 lands in cash exactly once.
	if got := m.Summary().Income.Cents; got != 70000 {
		t.Fatalf("cash income expected 70000, got %d", got)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/jobs/ghost/finalize", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing job expected 404, got %d", rec.Code)
	}
}

func TestReceivablePaymentFlow(t *testing.T) {
	srv, m, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/receivables/", map[string]any{
		"name":   "Cliente A",
		"amount": "100,00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create receivable expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[receivableDTO](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/receivables/"+created.ID+"/payments", map[string]any{
		"amount": "40,00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("payment expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payment := decodeBody[paymentResponse](t, rec)
	if payment.Settled || payment.Receivable.AmountCents != 6000 {
		t.Fatalf("unexpected payment result: %+v", payment)
	}
	if got := m.Summary().Income.Cents; got != 4000 {
		t.Fatalf("payment income expected 4000, got %d", got)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/receivables/"+created.ID+"/payments", map[string]any{
		"amount": "60,00",
	})
	payment = decodeBody[paymentResponse](t, rec)
	if !payment.Settled {
		t.Fatal("full payment not settled")
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/receivables/", nil)
	if got := decodeBody[[]receivableDTO](t, rec); len(got) != 0 {
		t.Fatalf("settled receivable still listed: %+v", got)
	}
}

func TestPrefsEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/v1/prefs/mode", map[string]any{"value": "diario"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set pref expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/v1/prefs/mode", map[string]any{"value": "semanal"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid mode expected 422, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/v1/prefs/tema", map[string]any{"value": "escuro"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown key expected 404, got %d", rec.Code)
	}

	doJSON(t, srv, http.MethodPut, "/api/v1/prefs/jump_to_day", map[string]any{"value": "25/12/2024"})

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/prefs/jump/consume", nil)
	jump := decodeBody[jumpResponse](t, rec)
	if !jump.Pending || jump.Date.String() != "25/12/2024" {
		t.Fatalf("unexpected jump: %+v", jump)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/prefs/jump/consume", nil)
	if jump := decodeBody[jumpResponse](t, rec); jump.Pending {
		t.Fatal("jump flag survived consumption")
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/prefs/", nil)
	all := decodeBody[map[string]string](t, rec)
	if all["mode"] != "diario" {
		t.Fatalf("unexpected prefs: %+v", all)
	}
	if _, ok := all["jump_to_day"]; ok {
		t.Fatal("consumed jump flag still stored")
	}
}

func TestEntryNotFoundResponses(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPatch, "/api/v1/entries/ghost", map[string]any{"description": "x"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("patch expected 404, got %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/entries/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete expected 404, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s expected 200, got %d", path, rec.Code)
		}
	}
}
