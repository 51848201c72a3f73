package model

import "errors"

// Sentinel error kinds shared by every layer. Callers match them with
// errors.Is; packages wrap them with context using %w.
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateTitle      = errors.New("title already in catalog")
	ErrDuplicateCompletion = errors.New("completion already recorded for this title")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrValidation          = errors.New("validation failed")
	ErrMemberNotFound      = errors.New("member not found in community")
)
