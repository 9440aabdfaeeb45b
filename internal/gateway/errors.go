package gateway

import (
	"errors"
	"fmt"
)

// ErrPrecondition matches every *PreconditionError
var ErrPrecondition = errors.New("precondition failed")

// Code identifies why a request could not be evaluated at all
type Code string

const (
	CodeTableMissing  Code = "table-missing"
	CodeActionMissing Code = "action-missing"
	CodeHandMissing   Code = "hand-missing"
	CodeHandComplete  Code = "hand-complete"
	CodeDeckMissing   Code = "deck-missing"
	CodeAdminOnly     Code = "admin-only"
	CodeNotSeated     Code = "not-seated"
	CodeSeatTaken     Code = "seat-taken"
	CodeBadSeat       Code = "bad-seat"
)

// PreconditionError is returned when the records an operation needs are
// missing or the caller may not perform it. Nothing is written.
type PreconditionError struct {
	Code    Code
	TableID string
	Err     error
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("table %s: %s", e.TableID, e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PreconditionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPrecondition}
	}
	return []error{ErrPrecondition, e.Err}
}

func precondition(code Code, tableID string, err error) error {
	return &PreconditionError{Code: code, TableID: tableID, Err: err}
}

// CodeOf returns the code of a precondition error, or "" if err is not one
func CodeOf(err error) Code {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// applyError marks a failure inside the state machine, which is recorded on
// the action instead of being retried
type applyError struct {
	err error
}

func (e *applyError) Error() string { return e.err.Error() }
func (e *applyError) Unwrap() error { return e.err }
