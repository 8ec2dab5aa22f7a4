package auth

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// Provider is the static configuration of the identity provider. The client
// is public: there is no client secret anywhere in the flow, possession of
// the PKCE verifier takes its place.
type Provider struct {
	ClientID    string
	AuthURL     string
	TokenURL    string
	RedirectURI string
	// Scopes is the space-separated scope string, e.g. "openid email".
	Scopes string
}

func (p Provider) validate() error {
	switch {
	case p.ClientID == "":
		return fmt.Errorf("provider: client ID cannot be empty")
	case p.AuthURL == "":
		return fmt.Errorf("provider: authorization URL cannot be empty")
	case p.TokenURL == "":
		return fmt.Errorf("provider: token URL cannot be empty")
	case p.RedirectURI == "":
		return fmt.Errorf("provider: redirect URI cannot be empty")
	case p.Scopes == "":
		return fmt.Errorf("provider: scopes cannot be empty")
	}
	return nil
}

// oauthConfig maps the provider onto an oauth2.Config. AuthStyleInParams puts
// client_id in the request body, which is what a secretless public client
// needs at the token endpoint.
func (p Provider) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    p.ClientID,
		RedirectURL: p.RedirectURI,
		Scopes:      strings.Fields(p.Scopes),
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL builds the authorization endpoint URL for one attempt:
// response_type=code, the client and redirect registration, the scope list,
// the anti-forgery state, and the S256 challenge. Pure and deterministic
// given its inputs.
func (p Provider) AuthCodeURL(state, challenge string) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	if state == "" {
		return "", fmt.Errorf("provider: state token cannot be empty")
	}
	if challenge == "" {
		return "", fmt.Errorf("provider: code challenge cannot be empty")
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	return p.oauthConfig().AuthCodeURL(state, opts...), nil
}
