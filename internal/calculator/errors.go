package calculator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDivisionByZero   = errors.New("division by zero")
	ErrNegativeRadicand = errors.New("square root of negative number")
)

// Wire kinds for domain errors.
const (
	KindDivisionByZero   = "division_by_zero"
	KindNegativeRadicand = "negative_radicand"
)

// DomainError is returned when an operation's input violates its domain.
// It always unwraps to one of the sentinel errors above.
type DomainError struct {
	Op       Op
	Operands []float64
	Err      error
}

func (e *DomainError) Error() string {
	parts := make([]string, len(e.Operands))
	for i, v := range e.Operands {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("%s(%s): %v", e.Op, strings.Join(parts, ", "), e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// ErrorKind returns the wire kind of a domain error, or "" when err is not one.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrDivisionByZero):
		return KindDivisionByZero
	case errors.Is(err, ErrNegativeRadicand):
		return KindNegativeRadicand
	}
	return ""
}

// ErrorForKind is the inverse of ErrorKind. Unknown kinds yield nil.
func ErrorForKind(kind string) error {
	switch kind {
	case KindDivisionByZero:
		return ErrDivisionByZero
	case KindNegativeRadicand:
		return ErrNegativeRadicand
	}
	return nil
}
