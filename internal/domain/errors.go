package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfOrder        = errors.New("snapshots out of order")
	ErrMismatchedDomains = errors.New("snapshots cover different domains")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrMonitorNotFound   = errors.New("monitor not found")
	ErrReportNotFound    = errors.New("report not found")
	ErrInvalidToken      = errors.New("invalid token")
)

// OutOfOrderError reports a difference or alignment whose first operand does
// not precede the second.
type OutOfOrderError struct {
	First  Timestamp
	Second Timestamp
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("%s: first=%s second=%s", ErrOutOfOrder, e.First, e.Second)
}

func (e *OutOfOrderError) Unwrap() error {
	return ErrOutOfOrder
}

// CheckOrder returns an *OutOfOrderError unless first is strictly before second.
func CheckOrder(first, second Timestamp) error {
	if !first.Before(second) {
		return &OutOfOrderError{First: first, Second: second}
	}
	return nil
}
