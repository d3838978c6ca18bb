package cli

import (
	"errors"
	"testing"

	"synctl/internal/gateway"
	"synctl/internal/intent"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", intent.ErrValidation, ExitInvalidConfig},
		{"wrapped validation", errors.New("wrap: " + intent.ErrValidation.Error()), ExitInternalError},
		{"unauthorized", gateway.ErrUnauthorized, ExitAuthFailure},
		{"rate limited", gateway.ErrRateLimited, ExitTransient},
		{"transient", gateway.ErrTransient, ExitTransient},
		{"unclassified", errors.New("boom"), ExitInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCodeFor(tt.err); got != tt.want {
				t.Errorf("ExitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
