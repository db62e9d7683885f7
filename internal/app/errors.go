package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrQuotaExceeded        = errors.New("insufficient tokens")
	ErrUnknownUser          = errors.New("no token ledger for user")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSupportBotNotFound   = errors.New("support bot not found")
)

// StoreError wraps a persistence failure. The transaction it happened in
// has already been rolled back when callers see it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr passes domain errors through untouched and wraps everything
// else as a StoreError.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, domainErr := range []error{
		ErrInvalidInput,
		ErrQuotaExceeded,
		ErrUnknownUser,
		ErrConversationNotFound,
		ErrSupportBotNotFound,
	} {
		if errors.Is(err, domainErr) {
			return err
		}
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
