package domain

import "errors"

var (
	// Validation errors: rejected before any I/O, nothing recorded.
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrCurrencyMismatch = errors.New("currency does not match account")
	ErrMetadataTooLarge = errors.New("metadata size exceeds limit")

	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")

	// Chain errors
	ErrChainConflict = errors.New("chain tail advanced by another writer")
	// ErrChainAppendFailure means CAS retries were exhausted. The caller
	// must treat the operation as not applied.
	ErrChainAppendFailure = errors.New("chain append failed after retries")
	ErrRecordNotFound     = errors.New("chain record not found")

	// Reconciliation errors
	ErrReconciliationFailed = errors.New("reconciliation failed")

	// Export errors
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
