package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrRandomnessUnavailable means the secure random source failed. No
	// attempt may start without it; there is no weak-randomness fallback.
	ErrRandomnessUnavailable = errors.New("secure random source unavailable")

	// ErrPopupBlocked means the host environment refused to open the
	// authorization window. Recoverable: the user can allow it and retry.
	ErrPopupBlocked = errors.New("authorization window was blocked")

	// ErrCrossOrigin is returned by Popup.Location while the window is still
	// on the provider's origin and its address cannot be read. It carries no
	// information beyond "keep waiting".
	ErrCrossOrigin = errors.New("window location not readable from this origin")

	// ErrAttemptAbandoned means the user closed the authorization window
	// before any redirect. This maps to the Idle state, not Failed.
	ErrAttemptAbandoned = errors.New("authorization window closed before redirect")

	// ErrCSRFMismatch means the state echoed on the redirect does not match
	// the one generated for this attempt. The attempt is discarded entirely.
	ErrCSRFMismatch = errors.New("state parameter does not match this attempt")

	// ErrMissingAuthorizationCode means the redirect reached our origin
	// without a code parameter.
	ErrMissingAuthorizationCode = errors.New("redirect carried no authorization code")

	// ErrMalformedToken means the access token is not a decodable three-part
	// signed token. Non-fatal: the session can proceed without a decoded
	// identity.
	ErrMalformedToken = errors.New("access token is not a decodable three-part token")
)

// ProviderError is an explicit error the identity provider put on the
// redirect. It is surfaced to the user verbatim and ends the attempt.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("provider returned error %q", e.Code)
	}
	return fmt.Sprintf("provider returned error %q: %s", e.Code, e.Description)
}

// ExchangeError wraps a failed authorization-code exchange. The code is
// single use, so the whole attempt must be restarted rather than retried.
type ExchangeError struct {
	Reason string
	Err    error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: %s", e.Reason)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}
