package auth

import (
	"fmt"
	"sync"

	"github.com/skratchdot/open-golang/open"
)

// Popup models the detached top-level browsing context that hosts the
// provider's login page. While the window sits on the provider's origin its
// address cannot be read; Location reports that as ErrCrossOrigin, which the
// detector treats as "no new information".
type Popup interface {
	Location() (string, error)
	Closed() bool
	// Close is idempotent and safe on an already-closed window.
	Close()
}

// Opener opens a Popup at the authorization URL. A blocked window surfaces
// ErrPopupBlocked, which is user-actionable, not fatal.
type Opener interface {
	Open(url string) (Popup, error)
}

// BrowserPopup is the production Popup. The login page runs in the user's
// own browser, and the return to our origin is observed through the
// application's callback endpoint, which hands the full redirect URL to
// Arrive. Until that happens Location behaves exactly like a cross-origin
// read: it fails without meaning anything.
type BrowserPopup struct {
	mu       sync.Mutex
	location string
	closed   bool
}

func (p *BrowserPopup) Location() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.location == "" {
		return "", ErrCrossOrigin
	}
	return p.location, nil
}

// Arrive records the redirect landing back on our origin. Arrivals after
// Close are dropped; they belong to an attempt that no longer exists.
func (p *BrowserPopup) Arrive(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.location = url
	}
}

func (p *BrowserPopup) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *BrowserPopup) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// BrowserOpener launches the system browser and tracks the popup belonging
// to the current attempt so the callback handler can find it.
type BrowserOpener struct {
	// OpenURL launches the browser; defaults to open.Run. Tests override it.
	OpenURL func(url string) error

	mu      sync.Mutex
	current *BrowserPopup
}

func (o *BrowserOpener) Open(url string) (Popup, error) {
	openURL := o.OpenURL
	if openURL == nil {
		openURL = open.Run
	}

	p := &BrowserPopup{}
	o.mu.Lock()
	o.current = p
	o.mu.Unlock()

	if err := openURL(url); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPopupBlocked, err)
	}
	return p, nil
}

// Current returns the popup of the in-flight attempt, or nil. The callback
// handler uses it to deliver the redirect URL.
func (o *BrowserOpener) Current() *BrowserPopup {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}
