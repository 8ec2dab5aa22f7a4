package profile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeProxy struct {
	body        []byte
	err         error
	calls       int
	lastURL     string
	lastHeaders map[string]string
}

func (f *fakeProxy) FetchJSON(_ context.Context, url string, headers map[string]string) ([]byte, error) {
	f.calls++
	f.lastURL = url
	f.lastHeaders = headers
	return f.body, f.err
}

const profileJSON = `{
	"id": 687072,
	"firstName": "Ada",
	"lastName": "Lovelace",
	"pilotRating": {"id": 4},
	"atcRating": {"id": 2},
	"divisionId": {"id": "XB"}
}`

func TestResolver_DirectSuccess(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(profileJSON))
	}))
	defer srv.Close()

	proxy := &fakeProxy{}
	r := NewResolver(srv.URL, proxy, zaptest.NewLogger(t))
	r.SetClient(srv.Client())

	p := r.Resolve(context.Background(), "tok-1", "687072")
	require.NotNil(t, p)
	assert.Equal(t, int64(687072), p.ID)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, 4, p.PilotRating.ID)
	assert.Equal(t, "XB", p.Division.ID)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Zero(t, proxy.calls, "proxy must not run when the direct path works")
}

func TestResolver_FallbackExactlyOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	proxy := &fakeProxy{body: []byte(profileJSON)}
	r := NewResolver(srv.URL, proxy, zaptest.NewLogger(t))
	r.SetClient(srv.Client())

	p := r.Resolve(context.Background(), "tok-2", "687072")
	require.NotNil(t, p)
	assert.Equal(t, "Lovelace", p.LastName)
	assert.Equal(t, 1, proxy.calls)
	assert.Equal(t, srv.URL, proxy.lastURL)
	assert.Equal(t, "Bearer tok-2", proxy.lastHeaders["Authorization"])
}

func TestResolver_BothPathsFailYieldsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	proxy := &fakeProxy{err: errors.New("relay down")}
	r := NewResolver(srv.URL, proxy, zaptest.NewLogger(t))
	r.SetClient(srv.Client())

	p := r.Resolve(context.Background(), "tok", "1")
	assert.Nil(t, p)
	assert.Equal(t, 1, proxy.calls)
}

func TestResolver_NoProxyConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, nil, zaptest.NewLogger(t))
	r.SetClient(srv.Client())

	assert.Nil(t, r.Resolve(context.Background(), "tok", "1"))
}

func TestResolver_ProxyGarbageYieldsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	proxy := &fakeProxy{body: []byte(`{}`)}
	r := NewResolver(srv.URL, proxy, zaptest.NewLogger(t))
	r.SetClient(srv.Client())

	assert.Nil(t, r.Resolve(context.Background(), "tok", "1"))
}
