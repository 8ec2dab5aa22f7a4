package auth

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// DefaultPollInterval is the cadence at which the detector inspects the
// popup. Anything at or under a second is acceptable; shorter trades CPU for
// lower latency.
const DefaultPollInterval = 500 * time.Millisecond

// Detector watches one popup until it closes or returns to the redirect URI,
// then classifies what it finds there. At most one detector runs per attempt.
type Detector struct {
	Popup       Popup
	RedirectURI string
	State       string
	Interval    time.Duration
}

// Wait polls the popup on the configured interval and returns the
// authorization code on success. A window closed by the user yields
// ErrAttemptAbandoned, which is deliberate abandonment, not a failure.
// Cancelling ctx closes the popup and returns ctx.Err().
func (d *Detector) Wait(ctx context.Context) (string, error) {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Popup.Close()
			return "", ctx.Err()
		case <-ticker.C:
			if d.Popup.Closed() {
				return "", ErrAttemptAbandoned
			}

			loc, err := d.Popup.Location()
			if err != nil {
				// Still on the provider's origin; nothing to observe yet.
				continue
			}
			if !strings.HasPrefix(loc, d.RedirectURI) {
				continue
			}

			d.Popup.Close()
			return classifyRedirect(loc, d.State)
		}
	}
}

// classifyRedirect inspects the query parameters of a redirect that reached
// our origin. The state comparison runs before the code is even looked at: a
// redirect carrying a plausible code under a foreign state must be rejected,
// or a crafted redirect could be accepted as this attempt's own.
func classifyRedirect(loc, state string) (string, error) {
	u, err := url.Parse(loc)
	if err != nil {
		return "", ErrMissingAuthorizationCode
	}
	q := u.Query()

	if code := q.Get("error"); code != "" {
		return "", &ProviderError{Code: code, Description: q.Get("error_description")}
	}
	if ret := q.Get("state"); ret != "" && ret != state {
		return "", ErrCSRFMismatch
	}

	code := q.Get("code")
	if code == "" {
		return "", ErrMissingAuthorizationCode
	}
	return code, nil
}
