package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the ledger. Callers test them with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrReferentialConflict = errors.New("referential conflict")
	ErrDuplicateName       = errors.New("duplicate name")
	ErrNotFound            = errors.New("not found")
	ErrInvalidParent       = errors.New("invalid parent category")
	ErrPersistence         = errors.New("persistence failure")
)

// Specific validation failures; all of them match ErrValidation.
var (
	ErrInvalidDate   = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidKind   = fmt.Errorf("%w: invalid kind", ErrValidation)
	ErrKindMismatch  = fmt.Errorf("%w: record kind does not match category kind", ErrValidation)
	ErrEmptyName     = fmt.Errorf("%w: empty name", ErrValidation)
	ErrNameTooLong   = fmt.Errorf("%w: name too long", ErrValidation)
)

// Stage names the part of a record mutation that failed to persist.
type Stage string

const (
	StageRecord  Stage = "record"
	StageBalance Stage = "balance"
)

// PersistenceError reports a store failure and whether it hit the record row
// or the account balance. It matches ErrPersistence.
type PersistenceError struct {
	Stage Stage
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s write failed: %v", e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// FailedStage returns the stage of the first PersistenceError in err's chain.
func FailedStage(err error) (Stage, bool) {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Stage, true
	}
	return "", false
}
