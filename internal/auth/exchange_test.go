package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exchangerFor(t *testing.T, handler http.HandlerFunc) *Exchanger {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := testProvider()
	p.TokenURL = srv.URL + "/token"
	e := NewExchanger(p)
	e.SetClient(srv.Client())
	return e
}

func TestExchanger_SendsPublicClientForm(t *testing.T) {
	var form url.Values
	e := exchangerFor(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer"}`))
	})

	token, err := e.Exchange(context.Background(), "code-9", "verifier-9")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "code-9", form.Get("code"))
	assert.Equal(t, "verifier-9", form.Get("code_verifier"))
	assert.Equal(t, "client-123", form.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/callback", form.Get("redirect_uri"))
	// Public client: the verifier stands in for a secret.
	assert.Empty(t, form.Get("client_secret"))
}

func TestExchanger_ProviderRejection(t *testing.T) {
	e := exchangerFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	})

	_, err := e.Exchange(context.Background(), "stale", "v")
	var xerr *ExchangeError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "code expired", xerr.Reason)
	assert.Contains(t, xerr.Error(), "token exchange failed")
}

func TestExchanger_MissingAccessToken(t *testing.T) {
	e := exchangerFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer"}`))
	})

	_, err := e.Exchange(context.Background(), "c", "v")
	var xerr *ExchangeError
	assert.ErrorAs(t, err, &xerr)
}
