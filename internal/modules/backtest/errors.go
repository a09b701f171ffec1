package backtest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned before any day runs when parameters or
	// the price series cannot be simulated.
	ErrInvalidConfig = errors.New("invalid backtest configuration")

	// ErrInvariantViolation marks a logic error detected while processing a day.
	ErrInvariantViolation = errors.New("backtest invariant violation")
)

func configError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func invariantError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

// InvariantError aborts a session and carries the inputs of the failing day
type InvariantError struct {
	Symbol string
	Day    int
	Point  PricePoint
	Err    error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s day %d (%s close=%g): %v",
		e.Symbol, e.Day, e.Point.Date.Format(dateLayout), e.Point.Close, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}
