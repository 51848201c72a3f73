package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Reward reasons written to the ledger.
const (
	ReasonMonthly    = "monthly"
	ReasonNonMonthly = "non-monthly"
	ReasonManual     = "manual"
)

// Rating and comment bounds.
const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 1000
)

// CompletionEvent is one row of the completion ledger.
type CompletionEvent struct {
	ID          int64
	UserID      string
	TitleID     *string
	Rating      *int
	Reason      string
	Period      Period
	Points      int
	Comment     string
	CommunityID *string
	CreatedAt   time.Time
}

// Filter narrows ledger queries. Zero fields match everything.
type Filter struct {
	Period      Period
	CommunityID string
}

// Match reports whether e satisfies the filter.
func (f Filter) Match(e CompletionEvent) bool {
	if f.Period != "" && e.Period != f.Period {
		return false
	}
	if f.CommunityID != "" && Deref(e.CommunityID) != f.CommunityID {
		return false
	}
	return true
}

// HasTitle reports whether the event is tied to a title (not a manual grant).
func (e CompletionEvent) HasTitle() bool {
	return e.TitleID != nil && *e.TitleID != ""
}

// ValidateRating checks an optional rating.
func ValidateRating(r *int) error {
	if r == nil {
		return nil
	}
	if *r < MinRating || *r > MaxRating {
		return fmt.Errorf("%w: rating must be between %d and %d, got %d", ErrValidation, MinRating, MaxRating, *r)
	}
	return nil
}

// ValidateComment checks the comment length in characters.
func ValidateComment(c string) error {
	if n := utf8.RuneCountInString(c); n > MaxCommentLength {
		return fmt.Errorf("%w: comment is %d characters, limit is %d", ErrValidation, n, MaxCommentLength)
	}
	return nil
}

// ReviewPatch carries the review fields to change on an existing event.
// A nil field is left as stored.
type ReviewPatch struct {
	Rating  *int
	Comment *string
}

// Empty reports whether the patch changes nothing.
func (p ReviewPatch) Empty() bool { return p.Rating == nil && p.Comment == nil }

// Validate checks the supplied fields.
func (p ReviewPatch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("%w: review needs a rating or a comment", ErrValidation)
	}
	if err := ValidateRating(p.Rating); err != nil {
		return err
	}
	if p.Comment != nil {
		return ValidateComment(*p.Comment)
	}
	return nil
}

// ValidateUserID checks that a user identity is present.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return nil
}

// StringPtr returns nil for an empty string and a pointer otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
