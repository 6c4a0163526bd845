package prefs

import (
	"context"
	"sync"
	"testing"
	"time"

	"caixa/internal/bus"
	"caixa/internal/core"
)

type memPrefs struct {
	mu    sync.Mutex
	store map[string]string
}

func newMemPrefs() *memPrefs {
	return &memPrefs{store: make(map[string]string)}
}

func (m *memPrefs) GetPref(_ context.Context, _ string, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[key]
	if !ok {
		return "", core.ErrNotFound
	}
	return v, nil
}

func (m *memPrefs) SetPref(_ context.Context, _ string, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
	return nil
}

func (m *memPrefs) DeletePref(_ context.Context, _ string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, key)
	return nil
}

func (m *memPrefs) ListPrefs(_ context.Context, _ string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.store))
	for k, v := range m.store {
		out[k] = v
	}
	return out, nil
}

func TestSetValidatesPerKey(t *testing.T) {
	svc := NewService(newMemPrefs(), "owner-1", nil, nil)
	ctx := context.Background()

	cases := []struct {
		key   string
		value string
		ok    bool
	}{
		{KeyMode, ModeMonthly, true},
		{KeyMode, ModeDaily, true},
		{KeyMode, "semanal", false},
		{KeySelectedDate, "05/03/2024", true},
		{KeySelectedDate, "2024-03-05", true},
		{KeySelectedDate, "amanha", false},
		{KeySelectedMonth, "2024-03", true},
		{KeySelectedMonth, "03/2024", false},
		{KeyJumpToDay, "01/01/2025", true},
		{"tema", "escuro", false},
	}
	for _, tc := range cases {
		err := svc.Set(ctx, tc.key, tc.value)
		if tc.ok && err != nil {
			t.Fatalf("%s=%q rejected: %v", tc.key, tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s=%q accepted", tc.key, tc.value)
		}
	}
}

func TestConsumeJumpIsOneShot(t *testing.T) {
	store := newMemPrefs()
	svc := NewService(store, "owner-1", nil, nil)
	ctx := context.Background()

	if err := svc.Set(ctx, KeyJumpToDay, "25/12/2024"); err != nil {
		t.Fatalf("set jump: %v", err)
	}

	day, pending, err := svc.ConsumeJump(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !pending {
		t.Fatal("jump not reported pending")
	}
	if day != core.NewDateYMD(2024, time.December, 25) {
		t.Fatalf("unexpected day: %v", day)
	}

	// The flag is consumed; a second read finds nothing.
	_, pending, err = svc.ConsumeJump(ctx)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if pending {
		t.Fatal("jump flag survived consumption")
	}
}

func TestSetPublishesOnBus(t *testing.T) {
	b := bus.New()
	svc := NewService(newMemPrefs(), "owner-1", b, nil)

	events, cancel := b.Subscribe(bus.TopicPrefsUpdated)
	defer cancel()

	if err := svc.Set(context.Background(), KeyMode, ModeDaily); err != nil {
		t.Fatalf("set: %v", err)
	}

	select {
	case evt := <-events:
		if evt.Owner != "owner-1" {
			t.Fatalf("unexpected owner: %q", evt.Owner)
		}
	case <-time.After(time.Second):
		t.Fatal("no prefs event published")
	}
}

func TestAllReturnsStoredPrefs(t *testing.T) {
	store := newMemPrefs()
	svc := NewService(store, "owner-1", nil, nil)
	ctx := context.Background()

	_ = svc.Set(ctx, KeyMode, ModeMonthly)
	_ = svc.Set(ctx, KeySelectedMonth, "2024-03")

	all, err := svc.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if all[KeyMode] != ModeMonthly || all[KeySelectedMonth] != "2024-03" {
		t.Fatalf("unexpected prefs: %+v", all)
	}
}
