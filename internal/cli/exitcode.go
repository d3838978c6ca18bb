// Package cli holds the small pieces every synctl subcommand shares,
// including the exit-code contract a daemon-backed operator binary
// needs beyond plain success/failure.
package cli

import (
	"errors"

	"synctl/internal/gateway"
	"synctl/internal/intent"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitInvalidConfig = 64
	ExitAuthFailure   = 65
	ExitInternalError = 70
	ExitTransient     = 75
)

// ExitCodeFor classifies err into one of the codes above so main() can
// os.Exit with the right one. nil maps to ExitSuccess.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch {
	case errors.Is(err, intent.ErrValidation):
		return ExitInvalidConfig
	case errors.Is(err, gateway.ErrUnauthorized):
		return ExitAuthFailure
	case errors.Is(err, gateway.ErrRateLimited), errors.Is(err, gateway.ErrTransient):
		return ExitTransient
	default:
		return ExitInternalError
	}
}
