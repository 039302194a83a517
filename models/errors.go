package models

import "errors"

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidDenomination   = errors.New("invalid coin denomination")
	ErrUnrepresentableAmount = errors.New("amount cannot be represented in coins")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("not found")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrTransactionConflict   = errors.New("transaction conflict")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrConflict              = errors.New("conflict")
	ErrInvalidInput          = errors.New("invalid input")
)

// IsRetryable reports whether the caller may retry the failed operation as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict)
}

// IsDomainError reports whether err belongs to the error taxonomy above, as
// opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount,
		ErrInvalidDenomination,
		ErrUnrepresentableAmount,
		ErrForbidden,
		ErrNotFound,
		ErrInsufficientStock,
		ErrInsufficientFunds,
		ErrTransactionConflict,
		ErrUnauthorized,
		ErrConflict,
		ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
