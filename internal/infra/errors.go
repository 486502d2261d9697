package infra

import (
	"errors"
	"fmt"
)

// ErrNotConfigured indicates a provider credential or device is missing.
// That is an operator problem, reported distinctly from transient call
// failures and not retryable without operator action.
var ErrNotConfigured = errors.New("not configured")

// UpstreamError carries whatever status and body detail a provider returned
// when rejecting a call.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.Status, e.Body)
}
