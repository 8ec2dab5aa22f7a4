package auth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Exchanger redeems authorization codes against the provider's token
// endpoint. It is a public client: the verifier, not a secret, proves the
// exchange belongs to the attempt that started it.
type Exchanger struct {
	provider Provider
	client   *http.Client
}

// NewExchanger returns an Exchanger for the given provider.
func NewExchanger(provider Provider) *Exchanger {
	return &Exchanger{
		provider: provider,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// SetClient overrides the HTTP client used for the exchange. Intended for
// tests pointing at an httptest server.
func (e *Exchanger) SetClient(client *http.Client) {
	e.client = client
}

// Exchange trades an authorization code and its PKCE verifier for an access
// token. Provider rejections come back as *ExchangeError carrying whatever
// human-readable reason the provider supplied.
func (e *Exchanger) Exchange(ctx context.Context, code, verifier string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)

	tok, err := e.provider.oauthConfig().Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		if re, ok := err.(*oauth2.RetrieveError); ok {
			reason := re.ErrorDescription
			if reason == "" {
				reason = re.ErrorCode
			}
			if reason == "" && re.Response != nil {
				reason = re.Response.Status
			}
			return "", &ExchangeError{Reason: reason, Err: err}
		}
		return "", &ExchangeError{Reason: err.Error(), Err: err}
	}
	if tok.AccessToken == "" {
		return "", &ExchangeError{Reason: "response contained no access token"}
	}
	return tok.AccessToken, nil
}
