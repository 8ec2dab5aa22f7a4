// Package profile fetches member profiles from the network API, falling back
// to a relay proxy when the direct path is unreachable from the client's
// network.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"flightdeck-go/internal/metrics"
)

// Rating is a numeric competency rating (pilot or controller).
type Rating struct {
	ID int `json:"id"`
}

// Division is the member's home division.
type Division struct {
	ID string `json:"id"`
}

// Profile is the subset of the member record the UI needs.
type Profile struct {
	ID          int64    `json:"id"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	PilotRating Rating   `json:"pilotRating"`
	ATCRating   Rating   `json:"atcRating"`
	Division    Division `json:"divisionId"`
}

// ProxyFetcher retrieves a URL through the relay proxy. Implemented by
// proxy.Client; stubbed in tests.
type ProxyFetcher interface {
	FetchJSON(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Resolver resolves member profiles. Every path is best-effort: a login must
// complete even when the profile service is down, so Resolve never returns
// an error.
type Resolver struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	proxy    ProxyFetcher
	logger   *zap.Logger
}

// NewResolver builds a Resolver hitting endpoint directly, relaying through
// proxy when the direct request fails. proxy may be nil.
func NewResolver(endpoint string, proxy ProxyFetcher, logger *zap.Logger) *Resolver {
	return &Resolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "profile-direct",
			Timeout: 30 * time.Second,
		}),
		proxy:  proxy,
		logger: logger,
	}
}

// SetClient overrides the HTTP client used for direct requests.
func (r *Resolver) SetClient(client *http.Client) {
	r.client = client
}

// Resolve fetches the profile for the holder of token. identifier is only
// used for logging. The proxy fallback runs at most once, and only after
// the direct path has failed. Returns nil when no path produced a profile.
func (r *Resolver) Resolve(ctx context.Context, token, identifier string) *Profile {
	p, err := r.direct(ctx, token)
	if err == nil {
		return p
	}
	r.logger.Warn("direct profile fetch failed, trying proxy",
		zap.String("user_id", identifier),
		zap.Error(err))

	if r.proxy == nil {
		return nil
	}
	metrics.ProfileFallbacks.Inc()

	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	body, err := r.proxy.FetchJSON(ctx, r.endpoint, headers)
	if err != nil {
		r.logger.Warn("proxy profile fetch failed",
			zap.String("user_id", identifier),
			zap.Error(err))
		return nil
	}
	p, err = decodeProfile(body)
	if err != nil {
		r.logger.Warn("proxy returned unparseable profile",
			zap.String("user_id", identifier),
			zap.Error(err))
		return nil
	}
	return p
}

func (r *Resolver) direct(ctx context.Context, token string) (*Profile, error) {
	out, err := r.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("profile endpoint returned %s", resp.Status)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		return decodeProfile(body)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Profile), nil
}

func decodeProfile(body []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p.ID == 0 && p.FirstName == "" && p.LastName == "" {
		return nil, fmt.Errorf("decode profile: empty record")
	}
	return &p, nil
}
