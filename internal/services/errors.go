package services

import (
	"errors"
	"fmt"
	"time"
)

// Service error taxonomy. Handlers map these to HTTP statuses via errors.Is;
// anything unrecognized surfaces as a generic 500 with the detail logged.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrValidation          = errors.New("invalid request")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientAnchors = errors.New("not enough active anchor songs configured")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTradingClosed       = errors.New("trading window has closed")
)

// CooldownError is returned when a rejected applicant re-applies before
// their next attempt date. Carries the date so handlers can echo it.
type CooldownError struct {
	NextAttemptDate time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("application cooldown active until %s", e.NextAttemptDate.Format(time.RFC3339))
}
