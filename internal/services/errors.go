package services

import (
	"errors"
	"fmt"
	"time"
)

// Business denials are expected outcomes, returned as values that handlers
// map to 4xx responses. Only infrastructure failures flow through as
// generic errors.
var (
	ErrInsufficientBalance    = errors.New("wallet: insufficient spendable balance")
	ErrDailyCapExceeded       = errors.New("wallet: daily earning cap exceeded")
	ErrCooldownActive         = errors.New("wallet: cooldown active")
	ErrDailyPlayLimit         = errors.New("wallet: daily play limit reached")
	ErrMembershipRequired     = errors.New("wallet: membership tier required")
	ErrConcurrentModification = errors.New("wallet: concurrent wallet modification")
	ErrInvalidAmount          = errors.New("wallet: amount must be positive")
	ErrUnknownGame            = errors.New("wallet: unknown game")
	ErrPlayInProgress         = errors.New("wallet: play already in progress")
	ErrRequestInFlight        = errors.New("wallet: duplicate request still in flight")
	ErrHoldNotFound           = errors.New("wallet: hold not found")
	ErrHoldNotPending         = errors.New("wallet: hold is not pending")
	ErrUsageCapExceeded       = errors.New("wallet: wallet usage cap for order exceeded")
)

// Denial wraps a sentinel with the context the client needs to act on it:
// how long to wait, or how much allowance/balance remains.
type Denial struct {
	Reason     error
	RetryAfter time.Duration
	Remaining  int64
}

func (d *Denial) Error() string {
	if d.RetryAfter > 0 {
		return fmt.Sprintf("%v (retry after %s)", d.Reason, d.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("%v (remaining %d)", d.Reason, d.Remaining)
}

func (d *Denial) Unwrap() error { return d.Reason }

// IsDenial reports whether err is a business denial rather than an
// infrastructure failure.
func IsDenial(err error) bool {
	var d *Denial
	if errors.As(err, &d) {
		return true
	}
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDailyCapExceeded) ||
		errors.Is(err, ErrCooldownActive) ||
		errors.Is(err, ErrDailyPlayLimit) ||
		errors.Is(err, ErrMembershipRequired) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownGame) ||
		errors.Is(err, ErrPlayInProgress) ||
		errors.Is(err, ErrRequestInFlight) ||
		errors.Is(err, ErrHoldNotFound) ||
		errors.Is(err, ErrHoldNotPending) ||
		errors.Is(err, ErrUsageCapExceeded)
}
