// Package proxy talks to the relay endpoint used when the network API is not
// reachable directly. The relay wraps responses in an envelope whose shape
// has drifted over time, so extraction is tolerant.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Client posts fetch requests to the relay and unwraps what comes back.
type Client struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewClient builds a Client for the given relay endpoint.
func NewClient(endpoint string, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 20 * time.Second},
		logger:   logger,
	}
}

// SetClient overrides the HTTP client, for tests.
func (c *Client) SetClient(client *http.Client) {
	c.client = client
}

type relayRequest struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// FetchJSON asks the relay to fetch url with the given headers and returns
// the JSON document the target produced.
func (c *Client) FetchJSON(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	payload, err := json.Marshal(relayRequest{URL: url, Headers: headers})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	out, err := extractJSON(body)
	if err != nil {
		c.logger.Debug("relay response not in a known shape", zap.Error(err))
		return nil, err
	}
	return out, nil
}

// extractJSON unwraps the relay envelope. Older relays return the target
// document directly; newer ones wrap it in {"body": ...} where body is
// either the document itself or a string containing it.
func extractJSON(raw []byte) ([]byte, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("relay response is not JSON")
	}

	body := gjson.GetBytes(raw, "body")
	switch {
	case !body.Exists():
		return raw, nil
	case body.Type == gjson.String:
		inner := body.String()
		if !gjson.Valid(inner) {
			return nil, fmt.Errorf("relay body string is not JSON")
		}
		return []byte(inner), nil
	default:
		return []byte(body.Raw), nil
	}
}
