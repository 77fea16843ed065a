package oauthflow

import (
	"errors"
	"fmt"
)

var (
	ErrAttemptCancelled  = errors.New("authorization attempt cancelled")
	ErrAttemptSuperseded = errors.New("authorization attempt superseded by a newer one")
	ErrAttemptTimeout    = errors.New("timed out waiting for authorization code")
	ErrProviderDenied    = errors.New("authorization denied by provider")
)

// ConfigurationError reports invalid Start parameters. The attempt never starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError wraps a failed token request: network failure, non-2xx
// status or a body that is not a usable token response.
type TransportError struct {
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("token exchange: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
