package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/relay/internal/presence"
)

const (
	statusTimeout    = 10 * time.Second
	maxStatusPayload = 1 << 20
)

// ErrUnauthorized matches an APIError carrying 401 or 403.
var ErrUnauthorized = errors.New("unauthorized")

// Health is the body of GET /v1/health.
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// HTTPClient reads the relay's admin status routes, which share a listener
// with the websocket endpoint.
type HTTPClient struct {
	base  string
	token string
	http  *http.Client
}

// NewHTTPClient accepts either the relay's ws:// URL or its HTTP base; the
// scheme is mapped so one --url flag serves both transports. A non-empty
// token is sent as a bearer credential.
func NewHTTPClient(relayURL, token string) *HTTPClient {
	return &HTTPClient{
		base:  strings.TrimRight(StatusBaseURL(relayURL), "/"),
		token: token,
		http:  &http.Client{Timeout: statusTimeout},
	}
}

// StatusBaseURL maps ws:// and wss:// to http:// and https://. Other URLs are
// returned unchanged.
func StatusBaseURL(relayURL string) string {
	if rest, ok := strings.CutPrefix(relayURL, "wss://"); ok {
		return "https://" + rest
	}
	if rest, ok := strings.CutPrefix(relayURL, "ws://"); ok {
		return "http://" + rest
	}
	return relayURL
}

// Health reports relay liveness and its open connection count.
func (c *HTTPClient) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.get(ctx, "/v1/health", &h)
	return h, err
}

// Connections returns the live connection roster. It needs the admin token.
func (c *HTTPClient) Connections(ctx context.Context) ([]presence.Entry, error) {
	var body struct {
		Connections []presence.Entry `json:"connections"`
	}
	if err := c.get(ctx, "/v1/connections", &body); err != nil {
		return nil, err
	}
	return body.Connections, nil
}

// APIError is a non-2xx response from a status route.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match auth failures.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusPayload))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// decodeAPIError prefers the server's {"error": ...} body and falls back to
// the raw text.
func decodeAPIError(code int, body []byte) *APIError {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return &APIError{StatusCode: code, Message: payload.Error}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &APIError{StatusCode: code, Message: msg}
}
