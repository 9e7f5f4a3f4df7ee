// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidInput         = errors.New("invalid input provided")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrNoExternalReference  = errors.New("transaction has no gateway reference")
	ErrGateway              = errors.New("payment gateway error")
	ErrAlreadyProcessed     = errors.New("refund request already processed")
	ErrRefundExceedsPayment = errors.New("refund exceeds refundable amount")
)

// IsError reports whether err wraps target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
