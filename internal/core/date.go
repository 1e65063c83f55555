package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the historical persisted date format. It sorts incorrectly as
// a string, so comparisons must always go through a parsed Date.
const DateLayout = "02/01/2006"

// Date is a calendar date (day granularity, UTC).
type Date struct {
	time.Time
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a DD/MM/YYYY string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, errors.New("invalid date: want DD/MM/YYYY")
	}
	return Date{Time: t}, nil
}

// Validate rejects zero dates.
func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// String renders the date as DD/MM/YYYY.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON renders the date as a DD/MM/YYYY string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a DD/MM/YYYY string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
