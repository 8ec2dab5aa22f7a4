package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// verifierEntropyBytes is the raw entropy behind each code verifier. 32 bytes
// gives the 256 bits the S256 scheme expects from a public client.
const verifierEntropyBytes = 32

// PKCEPair holds the code verifier and its derived challenge for exactly one
// authorization attempt. It is discarded once the exchange succeeds or the
// attempt is cancelled; verifiers are never reused.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// GeneratePair creates a fresh verifier/challenge pair. The verifier is 32
// random bytes, the challenge its SHA-256 digest, both base64url encoded
// without padding. A failing random source returns ErrRandomnessUnavailable.
func GeneratePair() (*PKCEPair, error) {
	raw := make([]byte, verifierEntropyBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomnessUnavailable, err)
	}

	verifier := base64URLEncode(raw)
	sum := sha256.Sum256([]byte(verifier))

	return &PKCEPair{
		Verifier:  verifier,
		Challenge: base64URLEncode(sum[:]),
	}, nil
}

// GenerateStateToken creates the anti-forgery token for one attempt.
func GenerateStateToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomnessUnavailable, err)
	}
	return base64URLEncode(raw), nil
}

// VerifyChallenge reports whether challenge is the S256 challenge of verifier.
func VerifyChallenge(challenge, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	sum := sha256.Sum256([]byte(verifier))
	return challenge == base64URLEncode(sum[:])
}

// base64URLEncode encodes data with the URL-safe alphabet, no padding.
func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
