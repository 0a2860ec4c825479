package query

import "fmt"

// ValidationError reports a missing or malformed descriptor field. It fails
// immediately and is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedOperationError reports an action, filter operator, or join type
// outside the supported set. It fails immediately and is never retried; the
// loop recovers by trying a different decision on the next iteration.
type UnsupportedOperationError struct {
	Op string
}

func (e *UnsupportedOperationError) Error() string {
	return "unsupported operation: " + e.Op
}

func unsupportedf(format string, args ...any) error {
	return &UnsupportedOperationError{Op: fmt.Sprintf(format, args...)}
}
