package core

import (
	"fmt"
	"time"
)

// Date is a calendar day without time or zone. The zero value is "no date";
// comparison with == is valid because all constructors normalize through
// time.Date.
type Date struct {
	year  int
	month time.Month
	day   int
}

// NewDateYMD builds a normalized date; out-of-range components roll over the
// way time.Date rolls them (31/04 becomes 01/05).
func NewDateYMD(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}
}

// Today returns the current calendar day in local time.
func Today() Date {
	now := time.Now()
	return Date{year: now.Year(), month: now.Month(), day: now.Day()}
}

// ParseDate accepts the canonical DD/MM/YYYY form and the ISO YYYY-MM-DD
// form. Anything else is ErrInvalidDate.
func ParseDate(s string) (Date, error) {
	for _, layout := range []string{"02/01/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{year: t.Year(), month: t.Month(), day: t.Day()}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) Year() int         { return d.year }
func (d Date) Month() time.Month { return d.month }
func (d Date) Day() int          { return d.day }

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == Date{} }

// String renders the canonical DD/MM/YYYY form.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d/%02d/%04d", d.day, int(d.month), d.year)
}

// ISO renders YYYY-MM-DD, the form stored in the row store.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// MonthKey renders YYYY-MM, the key used by the month filter.
func (d Date) MonthKey() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", d.year, int(d.month))
}

// SameMonth reports whether the date falls in the month given as YYYY-MM.
// A zero date matches nothing.
func (d Date) SameMonth(yearMonth string) bool {
	if d.IsZero() {
		return false
	}
	return d.MonthKey() == yearMonth
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	t := time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}
}

// Before reports whether d falls strictly before other.
func (d Date) Before(other Date) bool {
	if d.year != other.year {
		return d.year < other.year
	}
	if d.month != other.month {
		return d.month < other.month
	}
	return d.day < other.day
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MarshalJSON emits the canonical DD/MM/YYYY form; a zero date becomes "".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts DD/MM/YYYY, YYYY-MM-DD or the empty string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	s = s[1 : len(s)-1]
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
