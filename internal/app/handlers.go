package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"flightdeck-go/internal/auth"
	"flightdeck-go/internal/session"
)

const sessionCookie = "session_id"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleLoginStart begins a login attempt and returns the authorization URL.
// The browser window has already been opened server-side; the URL is returned
// so a client that prefers to drive its own window can.
func (a *Application) handleLoginStart(w http.ResponseWriter, r *http.Request) {
	authURL, err := a.Flow.Begin(context.Background(), func(res *auth.Result, err error) {
		a.mu.Lock()
		a.pending = &loginOutcome{result: res, err: err}
		a.mu.Unlock()
	})
	if err != nil {
		a.Logger.Warn("could not start login", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrPopupBlocked) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"auth_url": authURL})
}

// handleLoginStatus reports the attempt's state. When the attempt has
// completed, the first poll claims the result: a session is created, the
// cookie set, and the refresh schedule started.
func (a *Application) handleLoginStatus(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	outcome := a.pending
	a.pending = nil
	a.mu.Unlock()

	if outcome == nil {
		state, lastErr := a.Flow.Snapshot()
		resp := map[string]any{"state": string(state)}
		if lastErr != nil {
			resp["error"] = lastErr.Error()
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if outcome.err != nil {
		// A window the user closed before any redirect is abandonment,
		// not a failure; the client sees a clean idle state.
		if errors.Is(outcome.err, auth.ErrAttemptAbandoned) {
			writeJSON(w, http.StatusOK, map[string]any{
				"state": string(auth.StateIdle),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"state": string(auth.StateFailed),
			"error": outcome.err.Error(),
		})
		return
	}

	res := outcome.result
	if err := a.createSession(w, r, res.UserID, res.AccessToken, res); err != nil {
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":   string(auth.StateComplete),
		"user_id": res.UserID,
		"profile": res.Profile,
	})
}

// handleLoginCancel aborts the attempt in flight, if any.
func (a *Application) handleLoginCancel(w http.ResponseWriter, r *http.Request) {
	a.Flow.Cancel()

	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// handleLoginVID logs in with just a member identifier, skipping the token
// endpoint entirely. The session carries no access token, so the profile is
// fetched unauthenticated and may be nil.
func (a *Application) handleLoginVID(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VID string `json:"vid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VID == "" {
		writeError(w, http.StatusBadRequest, "vid is required")
		return
	}

	res := &auth.Result{UserID: body.VID}
	res.Profile = a.Profiles.Resolve(r.Context(), "", body.VID)

	if err := a.createSession(w, r, body.VID, "", res); err != nil {
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": body.VID,
		"profile": res.Profile,
	})
}

// handleAuthCallback receives the provider redirect and feeds it to the
// window the detector is watching. The response just tells the user the tab
// can be closed; the attempt itself finishes asynchronously.
func (a *Application) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	popup := a.Opener.Current()
	if popup == nil {
		writeError(w, http.StatusConflict, "no login in progress")
		return
	}

	loc := a.Config.Provider.RedirectURI
	if r.URL.RawQuery != "" {
		loc += "?" + r.URL.RawQuery
	}
	popup.Arrive(loc)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<html><body>Login received. You can close this window.</body></html>"))
}

// handleLogout tears down the session and stops the refresh schedule.
func (a *Application) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := a.Sessions.Delete(r.Context(), cookie.Value); err != nil {
			a.Logger.Warn("deleting session", zap.Error(err))
		}
	}
	a.Scheduler.Stop()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleSession returns the caller's session, minus the token.
func (a *Application) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    sess.UserID,
		"profile":    sess.Profile,
		"created_at": sess.CreatedAt,
		"expires_at": sess.ExpiresAt,
	})
}

// handleTraffic returns the latest traffic snapshot plus the caller's own
// flight, if they are flying.
func (a *Application) handleTraffic(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r)

	snap, lastUpdate, refreshing := a.Traffic.Snapshot()
	resp := map[string]any{
		"snapshot":    snap,
		"last_update": lastUpdate,
		"refreshing":  refreshing,
	}
	if sess != nil && snap != nil {
		if flight := snap.FlightOf(sess.UserID); flight != nil {
			resp["my_flight"] = flight
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// createSession persists a session for userID, sets the cookie, and starts
// the refresh schedule bound to that member.
func (a *Application) createSession(w http.ResponseWriter, r *http.Request, userID, token string, res *auth.Result) error {
	id, err := session.NewID()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	sess := &session.Session{
		ID:          id,
		UserID:      userID,
		AccessToken: token,
		CreatedAt:   now,
		ExpiresAt:   now.Add(a.Config.Session.TTL.Duration),
	}
	if res != nil {
		sess.Profile = res.Profile
	}
	if sess.UserID == "" {
		// Opaque token with no decodable identity; keyed by session only.
		sess.UserID = "unknown"
	}

	if err := a.Sessions.Create(r.Context(), sess); err != nil {
		a.Logger.Error("storing session", zap.Error(err))
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})

	a.Scheduler.Start(sess.UserID)
	return nil
}
