package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsignedJWT builds a compact JWS with an empty signature part. The decoder
// never verifies, so this is enough.
func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "."
}

func TestDecodeIdentity(t *testing.T) {
	tok := unsignedJWT(t, map[string]any{"sub": "687072", "email": "pilot@example.org"})

	id, err := DecodeIdentity(tok)
	require.NoError(t, err)
	assert.Equal(t, "687072", id.Subject)
}

func TestDecodeIdentity_VIDFallback(t *testing.T) {
	tok := unsignedJWT(t, map[string]any{"vid": "540112"})

	id, err := DecodeIdentity(tok)
	require.NoError(t, err)
	assert.Equal(t, "540112", id.Subject)
}

func TestDecodeIdentity_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"opaque token", "not-a-jwt-at-all"},
		{"one dot", "header.payload"},
		{"three dots", "a.b.c.d"},
		{"garbage segments", "!!!.???.###"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeIdentity(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestDecodeIdentity_NoSubject(t *testing.T) {
	tok := unsignedJWT(t, map[string]any{"email": "pilot@example.org"})

	_, err := DecodeIdentity(tok)
	assert.ErrorIs(t, err, ErrMalformedToken)
}
