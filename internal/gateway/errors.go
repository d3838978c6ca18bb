// Package gateway holds the error taxonomy both the forge and sheet
// gateway clients classify their transport errors into, so the
// Dispatcher and Reconciler never branch on transport-specific types.
package gateway

import "errors"

// Sentinel errors both gateways classify into. Wrapped with fmt.Errorf's
// %w so callers can still see the underlying transport error via
// errors.Unwrap.
var (
	ErrUnauthorized  = errors.New("gateway: unauthorized")
	ErrNotFound      = errors.New("gateway: not found")
	ErrConflict      = errors.New("gateway: conflict")
	ErrRateLimited   = errors.New("gateway: rate limited")
	ErrTransient     = errors.New("gateway: transient failure")
	ErrInvalidRequest = errors.New("gateway: invalid request")
)

// IsRetryable reports whether the Dispatcher should retry the outbox
// event that produced err rather than dead-letter it immediately.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}
