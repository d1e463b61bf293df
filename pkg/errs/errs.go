// Package errs defines the error taxonomy shared across the portfolio
// risk manager's components.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Components wrap these with fmt.Errorf("...: %w", Kind)
// so callers can classify with errors.Is while still getting a
// component-specific message.
var (
	// ErrInvalidInput marks a caller-supplied value that fails validation
	// (negative equity, non-positive entry price, a zero stop distance,
	// return series of unequal length, and similar).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData marks a statistic requested below its minimum
	// sample size (e.g. sample stdev with fewer than 2 observations).
	ErrInsufficientData = errors.New("insufficient data")

	// ErrPositionTooSmall marks a sizer formula that resolved to fewer
	// than one share. Unlike ErrInvalidInput, the caller's arguments were
	// well-formed; the risk budget and prices simply don't clear one
	// share. This is an ordinary Skipped sizing outcome, not a caller
	// error.
	ErrPositionTooSmall = errors.New("position too small")

	// ErrInvariantViolated marks a state inconsistency the manager cannot
	// recover from on its own. Raising it trips a permanent halt; it is
	// never returned for an ordinary denial.
	ErrInvariantViolated = errors.New("invariant violated")
)

// RiskDenial is not an error: it is a value shape for a gate predicate
// rejecting a trade. The risk gate itself does not build one; it reports
// a denial as the (false, reason) pair returned by CanTrade.
type RiskDenial struct {
	Predicate string // which gate predicate fired, e.g. "max_drawdown"
	Detail    string
}

func (d RiskDenial) String() string {
	return fmt.Sprintf("%s: %s", d.Predicate, d.Detail)
}

// InsufficientData wraps ErrInsufficientData with the operation and the
// sample size that triggered it.
func InsufficientData(op string, have, need int) error {
	return fmt.Errorf("%s: have %d samples, need at least %d: %w", op, have, need, ErrInsufficientData)
}

// InvalidInput wraps ErrInvalidInput with the offending field.
func InvalidInput(op, reason string) error {
	return fmt.Errorf("%s: %s: %w", op, reason, ErrInvalidInput)
}

// PositionTooSmall wraps ErrPositionTooSmall with the sizer that
// produced fewer than one share.
func PositionTooSmall(op string) error {
	return fmt.Errorf("%s: position too small: %w", op, ErrPositionTooSmall)
}

// InvariantViolated wraps ErrInvariantViolated with a description of the
// inconsistency observed. Callers that receive this should treat the
// manager as halted.
func InvariantViolated(what string) error {
	return fmt.Errorf("%s: %w", what, ErrInvariantViolated)
}
