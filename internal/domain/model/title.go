// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTitlePoints is awarded for an in-window completion when the
// catalog entry was added without an explicit point value.
const DefaultTitlePoints = 10

// TitleEntry is a promoted ("monthly") title with its validity window.
type TitleEntry struct {
	ID          string
	StartPeriod Period
	EndPeriod   Period
	Points      int
	CreatedAt   time.Time
}

// Validate checks the catalog invariants for a new entry.
func (t TitleEntry) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: title id is required", ErrValidation)
	}
	if _, err := ParsePeriod(string(t.StartPeriod)); err != nil {
		return err
	}
	if _, err := ParsePeriod(string(t.EndPeriod)); err != nil {
		return err
	}
	if t.EndPeriod.Before(t.StartPeriod) {
		return fmt.Errorf("%w: end period %s precedes start period %s", ErrValidation, t.EndPeriod, t.StartPeriod)
	}
	if t.Points <= 0 {
		return fmt.Errorf("%w: points must be positive, got %d", ErrValidation, t.Points)
	}
	return nil
}

// Active reports whether p falls inside the entry's window.
func (t TitleEntry) Active(p Period) bool {
	return p.Within(t.StartPeriod, t.EndPeriod)
}
