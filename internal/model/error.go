package model

import "errors"

// Sentinel errors shared across the wallet core. Callers branch with
// errors.Is; packages wrap these with context via fmt.Errorf and %w.
var (
	// ErrInvalidFormat malformed address, key material, or amount. Rejected
	// before any state change.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInsufficientBalance the spendable balance cannot cover amount + fee.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAuthenticationFailed wrong vault or master password.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNotFound unknown account, contact, or transaction id.
	ErrNotFound = errors.New("not found")

	// ErrTransport chain query service or signer oracle unreachable. Retryable.
	ErrTransport = errors.New("transport error")

	// ErrPersistence disk write failed; in-memory state is retained and the
	// next mutation retries the save.
	ErrPersistence = errors.New("persistence error")

	// ErrLocked the security gate cooldown is active.
	ErrLocked = errors.New("wallet locked")
)

// ErrorResponse is the consistent JSON structure for all API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
