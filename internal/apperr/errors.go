// Package apperr defines the error kinds shared by content managers,
// view adapters and the folder service.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidData        = errors.New("invalid data")
	ErrManagerUnavailable = errors.New("content manager unavailable")
)

// Kind classifies an error into one of the adapter result kinds.
type Kind string

const (
	KindManagerUnavailable Kind = "manager_unavailable"
	KindAlreadyExists      Kind = "already_exists"
	KindInvalidData        Kind = "invalid_data"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindOther              Kind = "other"
)

// KindOf reports the kind of err. A nil error has an empty kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrManagerUnavailable):
		return KindManagerUnavailable
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrInvalidData):
		return KindInvalidData
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindOther
	}
}

// InvalidData wraps a parse failure so that errors.Is(err, ErrInvalidData) holds.
func InvalidData(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidData, fmt.Sprintf(format, args...))
}

// ContractViolation is the panic value raised when a caller breaks an
// adapter precondition, e.g. dispatching a view of the wrong content type.
type ContractViolation struct {
	Op   string
	Want string
	Got  string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("contract violation in %s: want %s, got %s", e.Op, e.Want, e.Got)
}
