// Package prefs persists the owner's filter preferences: the ledger view
// mode, the selected day and month, and a one-shot "jump to day" flag other
// screens set to steer the ledger view. Writes are broadcast on the bus so
// every in-process reader stays in sync.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"caixa/internal/bus"
	"caixa/internal/core"
	"caixa/internal/log"
)

const (
	KeyMode          = "mode" // mensal | diario
	KeySelectedDate  = "selected_date"
	KeySelectedMonth = "selected_month"
	// KeyJumpToDay is a one-shot: consumed (deleted) on first read.
	KeyJumpToDay = "jump_to_day"
)

const (
	ModeMonthly = "mensal"
	ModeDaily   = "diario"
)

var ErrUnknownKey = errors.New("unknown preference key")

var monthKeyRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Store is the slice of the row store holding preferences.
type Store interface {
	GetPref(ctx context.Context, owner, key string) (string, error)
	SetPref(ctx context.Context, owner, key, value string) error
	DeletePref(ctx context.Context, owner, key string) error
	ListPrefs(ctx context.Context, owner string) (map[string]string, error)
}

type Service struct {
	store  Store
	owner  string
	bus    *bus.Bus
	logger *log.Logger
}

func NewService(store Store, owner string, b *bus.Bus, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		store:  store,
		owner:  owner,
		bus:    b,
		logger: logger.WithComponent(log.ComponentPrefs),
	}
}

// All returns every stored preference. The jump flag is included untouched;
// only ConsumeJump clears it.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	return s.store.ListPrefs(ctx, s.owner)
}

// Set validates and stores one preference, then broadcasts the change.
func (s *Service) Set(ctx context.Context, key, value string) error {
	switch key {
	case KeyMode:
		if value != ModeMonthly && value != ModeDaily {
			return fmt.Errorf("invalid mode %q", value)
		}
	case KeySelectedDate, KeyJumpToDay:
		if _, err := core.ParseDate(value); err != nil {
			return err
		}
	case KeySelectedMonth:
		if !monthKeyRe.MatchString(value) {
			return fmt.Errorf("invalid month %q: want YYYY-MM", value)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	if err := s.store.SetPref(ctx, s.owner, key, value); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(bus.TopicPrefsUpdated, s.owner)
	}
	return nil
}

// ConsumeJump reads and clears the one-shot jump flag. The second return
// value reports whether a jump was pending.
func (s *Service) ConsumeJump(ctx context.Context) (core.Date, bool, error) {
	value, err := s.store.GetPref(ctx, s.owner, KeyJumpToDay)
	if errors.Is(err, core.ErrNotFound) {
		return core.Date{}, false, nil
	}
	if err != nil {
		return core.Date{}, false, err
	}

	if err := s.store.DeletePref(ctx, s.owner, KeyJumpToDay); err != nil {
		s.logger.WarnContext(ctx, "Failed to clear jump flag",
			log.FieldError, err, log.FieldOperation, log.OpDelete)
	}
	if s.bus != nil {
		s.bus.Publish(bus.TopicPrefsUpdated, s.owner)
	}

	day, err := core.ParseDate(value)
	if err != nil {
		// A corrupt flag is dropped rather than surfaced.
		return core.Date{}, false, nil
	}
	return day, true, nil
}
