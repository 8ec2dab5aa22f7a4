package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"flightdeck-go/internal/session"
)

// wrappingStore returns not-found wrapped the way a persistent store would.
type wrappingStore struct{}

func (wrappingStore) Create(context.Context, *session.Session) error { return nil }

func (wrappingStore) Get(context.Context, string) (*session.Session, error) {
	return nil, fmt.Errorf("failed to load session: %w", session.ErrNotFound)
}

func (wrappingStore) Delete(context.Context, string) error { return nil }

func TestRequireAuth_WrappedNotFoundIsACleanMiss(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	a := &Application{
		Logger:   zap.New(core),
		Sessions: wrappingStore{},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "gone"})
	a.requireAuth(http.HandlerFunc(a.handleSession)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, logs.Len(), "an expired or missing session is not warning-worthy")

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "stale cookie must be cleared")
}
