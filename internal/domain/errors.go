package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrOrderNotFound       = errors.New("order_not_found")
	ErrOrderNotCancellable = errors.New("order_not_cancellable")
	ErrStoreUnavailable    = errors.New("store_unavailable")
	ErrSymbolNotFound      = errors.New("symbol_not_found")
)

// RejectedError reports an order that failed admission checks. The order
// never enters the book; it is recorded with status REJECTED for audit.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "order rejected: " + e.Reason
}
