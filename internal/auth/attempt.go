package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flightdeck-go/internal/metrics"
	"flightdeck-go/internal/profile"
)

// State is the externally observable phase of a login attempt.
type State string

const (
	StateIdle               State = "idle"
	StateWaitingForRedirect State = "waiting_for_redirect"
	StateExchangingCode     State = "exchanging_code"
	StateFetchingProfile    State = "fetching_profile"
	StateComplete           State = "complete"
	StateFailed             State = "failed"
)

// ProfileResolver resolves a member profile for a freshly issued token.
type ProfileResolver interface {
	Resolve(ctx context.Context, token, identifier string) *profile.Profile
}

// Result is what a completed attempt produced. Profile may be nil when the
// profile service was unreachable; UserID may be empty for opaque tokens.
type Result struct {
	AttemptID   string
	AccessToken string
	UserID      string
	Profile     *profile.Profile
}

// Flow drives one login attempt at a time: open the popup, watch for the
// redirect, exchange the code, decode the identity, resolve the profile.
// Beginning a new attempt supersedes the previous one; results from a
// superseded attempt are dropped, never delivered.
type Flow struct {
	provider     Provider
	opener       Opener
	exchanger    *Exchanger
	profiles     ProfileResolver
	logger       *zap.Logger
	pollInterval time.Duration

	mu        sync.Mutex
	state     State
	attemptID string
	lastErr   error
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewFlow builds a Flow. profiles may be nil, in which case completed
// attempts carry no profile.
func NewFlow(provider Provider, opener Opener, exchanger *Exchanger, profiles ProfileResolver, pollInterval time.Duration, logger *zap.Logger) *Flow {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Flow{
		provider:     provider,
		opener:       opener,
		exchanger:    exchanger,
		profiles:     profiles,
		logger:       logger,
		pollInterval: pollInterval,
		state:        StateIdle,
	}
}

// Begin starts a new attempt and returns the authorization URL the user's
// browser was sent to. The attempt runs in the background; onDone fires once
// with the outcome unless the attempt is cancelled or superseded first.
func (f *Flow) Begin(ctx context.Context, onDone func(*Result, error)) (string, error) {
	f.Cancel()

	pair, err := GeneratePair()
	if err != nil {
		return "", err
	}
	state, err := GenerateStateToken()
	if err != nil {
		return "", err
	}
	authURL, err := f.provider.AuthCodeURL(state, pair.Challenge)
	if err != nil {
		return "", err
	}

	popup, err := f.opener.Open(authURL)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(ctx)
	id := uuid.New().String()

	// wg.Add must happen before f.cancel is visible: a Cancel that observes
	// the cancel func must also wait for this attempt's goroutine.
	f.mu.Lock()
	f.state = StateWaitingForRedirect
	f.attemptID = id
	f.lastErr = nil
	f.cancel = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	f.logger.Info("login attempt started", zap.String("attempt_id", id))

	go func() {
		defer f.wg.Done()
		f.run(runCtx, id, popup, pair.Verifier, state, onDone)
	}()

	return authURL, nil
}

func (f *Flow) run(ctx context.Context, id string, popup Popup, verifier, state string, onDone func(*Result, error)) {
	detector := &Detector{
		Popup:       popup,
		RedirectURI: f.provider.RedirectURI,
		State:       state,
		Interval:    f.pollInterval,
	}
	code, err := detector.Wait(ctx)
	if err != nil {
		f.finish(id, nil, err, onDone)
		return
	}

	if !f.advance(id, StateExchangingCode) {
		return
	}
	token, err := f.exchanger.Exchange(ctx, code, verifier)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		f.finish(id, nil, err, onDone)
		return
	}
	metrics.TokenExchanges.WithLabelValues("ok").Inc()

	res := &Result{AttemptID: id, AccessToken: token}
	if identity, err := DecodeIdentity(token); err != nil {
		// Opaque tokens still log in; we just do not know who this is
		// until something downstream tells us.
		f.logger.Warn("access token carried no readable identity",
			zap.String("attempt_id", id),
			zap.Error(err))
	} else {
		res.UserID = identity.Subject
	}

	if f.profiles != nil && res.UserID != "" {
		if !f.advance(id, StateFetchingProfile) {
			return
		}
		res.Profile = f.profiles.Resolve(ctx, token, res.UserID)
	}

	f.finish(id, res, nil, onDone)
}

// advance moves the attempt to next if it is still the current one. Returns
// false when the attempt has been superseded or cancelled.
func (f *Flow) advance(id string, next State) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attemptID != id {
		return false
	}
	f.state = next
	return true
}

// finish records the terminal state for attempt id and delivers the outcome.
// Superseded attempts are ignored; abandonment and cancellation return the
// flow to idle without counting as failures.
func (f *Flow) finish(id string, res *Result, err error, onDone func(*Result, error)) {
	f.mu.Lock()
	if f.attemptID != id {
		f.mu.Unlock()
		return
	}

	switch {
	case err == nil:
		f.state = StateComplete
		f.lastErr = nil
		metrics.AuthAttempts.WithLabelValues("complete").Inc()
	case errors.Is(err, ErrAttemptAbandoned):
		f.state = StateIdle
		f.lastErr = nil
		f.attemptID = ""
		metrics.AuthAttempts.WithLabelValues("abandoned").Inc()
	case errors.Is(err, context.Canceled):
		f.state = StateIdle
		f.lastErr = nil
		f.attemptID = ""
		f.mu.Unlock()
		return
	default:
		f.state = StateFailed
		f.lastErr = err
		metrics.AuthAttempts.WithLabelValues("failed").Inc()
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("login attempt ended", zap.String("attempt_id", id), zap.Error(err))
	} else {
		f.logger.Info("login attempt complete",
			zap.String("attempt_id", id),
			zap.String("user_id", res.UserID))
	}
	if onDone != nil {
		onDone(res, err)
	}
}

// Cancel aborts the current attempt, if any, and waits for its goroutine to
// drain. The attempt's onDone is never invoked after Cancel returns.
func (f *Flow) Cancel() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.attemptID = ""
	f.state = StateIdle
	f.lastErr = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
}

// Snapshot reports the current state and, when failed, the error that put it
// there.
func (f *Flow) Snapshot() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.lastErr
}
