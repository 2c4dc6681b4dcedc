package dialogue

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPayload marks a name or number-list command with nothing after the colon.
	ErrEmptyPayload = errors.New("dialogue: empty payload")
	// ErrWrongStage marks a valid command issued in a stage that does not accept it.
	ErrWrongStage = errors.New("dialogue: wrong stage")
	// ErrDivisionByZero is returned by Compute when a divisor is zero.
	ErrDivisionByZero = errors.New("dialogue: division by zero")
)

// InvalidNumberError reports the first number-list segment that failed to parse.
type InvalidNumberError struct {
	Segment string
}

func (e *InvalidNumberError) Error() string {
	return fmt.Sprintf("dialogue: invalid number %q", e.Segment)
}

// ErrorCode maps dialogue errors to stable codes for logs and the journal.
// It returns an empty string for nil and "UNKNOWN_ERROR" for foreign errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var invalid *InvalidNumberError
	switch {
	case errors.Is(err, ErrEmptyPayload):
		return "EMPTY_PAYLOAD"
	case errors.Is(err, ErrWrongStage):
		return "WRONG_STAGE"
	case errors.Is(err, ErrDivisionByZero):
		return "DIVISION_BY_ZERO"
	case errors.As(err, &invalid):
		return "INVALID_NUMBER"
	}
	return "UNKNOWN_ERROR"
}
