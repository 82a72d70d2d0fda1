package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrTokenNotFound indicates that refresh token was not found
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrFlowNotFound indicates that flow was not found or is not owned by the caller
	ErrFlowNotFound = errors.New("flow not found")

	// ErrEntryNotFound indicates that flow entry was not found or is not owned by the caller
	ErrEntryNotFound = errors.New("entry not found")

	// ErrLedgerEntryNotFound indicates that no ledger entry exists for the
	// (user, idempotency key) pair
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")

	// ErrDuplicateIdempotencyKey indicates that a ledger entry already exists for
	// this (user, idempotency key) pair. A concurrent request won the race; the
	// caller should re-read the ledger and return the recorded outcome.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)
