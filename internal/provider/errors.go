package provider

import (
	"context"
	"errors"
	"net"
	"strings"

	dErrors "labgate/pkg/domain-errors"
)

// blockedMarker is the distinguished substring the provider returns when its
// abuse detector has blocked the account. It must surface as a retry-later
// signal, never as a generic failure.
const blockedMarker = "login has been blocked"

const responseSuccess = "Success"

// IsBlockedResponse reports whether a provider response string is the
// explicit abuse-block signal.
func IsBlockedResponse(response string) bool {
	return strings.Contains(strings.ToLower(response), blockedMarker)
}

// classifyTransport wraps transport-level failures with a stable domain code.
// Timeouts and cancellations become CodeTimeout; everything else on the wire
// becomes CodeUnavailable. Both count toward the circuit breaker threshold.
func classifyTransport(err error, endpoint string) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "provider call timed out: "+endpoint)
	case errors.As(err, &netErr) && netErr.Timeout():
		return dErrors.Wrap(err, dErrors.CodeTimeout, "provider call timed out: "+endpoint)
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "provider unreachable: "+endpoint)
	}
}

// IsRetryable reports whether an error is a transient transport failure that
// an idempotent read may retry once. Validation-class and blocked responses
// are never retryable.
func IsRetryable(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeTimeout) || dErrors.HasCode(err, dErrors.CodeUnavailable)
}
