package model

import (
	"fmt"
	"time"
)

const periodLayout = "2006-01"

// Period is a calendar month in YYYY-MM form. Because the format is fixed
// width, lexicographic comparison orders periods chronologically.
type Period string

// ParsePeriod validates s and returns it as a Period.
func ParsePeriod(s string) (Period, error) {
	if len(s) != len(periodLayout) {
		return "", fmt.Errorf("%w: period %q must be YYYY-MM", ErrValidation, s)
	}
	if _, err := time.Parse(periodLayout, s); err != nil {
		return "", fmt.Errorf("%w: period %q must be YYYY-MM", ErrValidation, s)
	}
	return Period(s), nil
}

// PeriodOf returns the UTC calendar month containing t.
func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format(periodLayout))
}

// String implements fmt.Stringer.
func (p Period) String() string { return string(p) }

// Valid reports whether p is a well-formed period.
func (p Period) Valid() bool {
	_, err := ParsePeriod(string(p))
	return err == nil
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool { return p < o }

// Within reports whether p lies in the inclusive window [start, end].
func (p Period) Within(start, end Period) bool {
	return start <= p && p <= end
}

// Next returns the following calendar month.
func (p Period) Next() Period {
	t, err := time.Parse(periodLayout, string(p))
	if err != nil {
		return p
	}
	return PeriodOf(t.AddDate(0, 1, 0))
}

// Prev returns the preceding calendar month.
func (p Period) Prev() Period {
	t, err := time.Parse(periodLayout, string(p))
	if err != nil {
		return p
	}
	return PeriodOf(t.AddDate(0, -1, 0))
}
