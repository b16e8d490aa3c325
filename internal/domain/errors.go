package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrOrderNotFound    = errors.New("order not found")
	ErrAmountMismatch   = errors.New("amount mismatch")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrProviderDisabled = errors.New("payment provider not configured")

	// ErrVersionConflict is returned by a store when a conditional update
	// lost the race; the caller re-reads and re-applies.
	ErrVersionConflict = errors.New("order version conflict")
	// ErrConcurrentUpdate means conflicts persisted past the retry bound.
	ErrConcurrentUpdate = errors.New("order updated concurrently, retry later")
)

type ValidationError string

func (e ValidationError) Error() string { return string(e) }

type ConflictError string

func (e ConflictError) Error() string { return string(e) }

type NotFoundError string

func (e NotFoundError) Error() string { return string(e) + " not found" }

// NetworkError wraps a failed or timed out provider call. The payment outcome
// is unknown, so it must never be recorded as a failure.
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Retryable() bool { return true }

// ProviderError is a well formed non-success answer from a provider.
type ProviderError struct {
	Provider Provider
	Code     string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error %s: %s", e.Provider, e.Code, e.Message)
}
