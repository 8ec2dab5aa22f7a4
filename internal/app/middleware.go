package app

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"flightdeck-go/internal/session"
)

// contextKey is a custom type to use as a key for context values.
type contextKey string

// sessionContextKey is the key for storing the session in the request context.
const sessionContextKey = contextKey("session")

// requireAuth ensures a valid session cookie accompanies the request and
// puts the session on the context for the handler.
func (a *Application) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}

		sess, err := a.Sessions.Get(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				a.Logger.Warn("loading session", zap.Error(err))
			}
			http.SetCookie(w, &http.Cookie{
				Name:   sessionCookie,
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}

		next.ServeHTTP(w, withSession(r, sess))
	})
}

// withSession adds the session to the request's context.
func withSession(r *http.Request, s *session.Session) *http.Request {
	ctx := context.WithValue(r.Context(), sessionContextKey, s)
	return r.WithContext(ctx)
}

// sessionFromContext retrieves the session from the request's context.
func sessionFromContext(r *http.Request) (*session.Session, bool) {
	s, ok := r.Context().Value(sessionContextKey).(*session.Session)
	return s, ok
}
