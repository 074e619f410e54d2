// Package gateway talks to the remote profile and auth endpoints.
//
// The client does not care whether BaseURL points at the relay proxy or
// straight at the upstream service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/hexagram/internal/profile"
	"github.com/roach88/hexagram/internal/session"
)

const (
	ProfilePath  = "/api/user/profile"
	LoginPath    = "/api/auth/login"
	RegisterPath = "/api/auth/register"
)

// DefaultTimeout bounds every request made with the default HTTP client.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of a failed response is read for diagnostics.
const maxErrorBody = 4 << 10

// Client is the Remote Profile Gateway.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for baseURL. A nil httpClient gets one with DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTPClient: httpClient}
}

// FetchProfile loads the remote profile.
//
// Every field is optional. Numbers and booleans are returned as text,
// nulls and unknown keys are dropped.
func (c *Client) FetchProfile(ctx context.Context, sess session.AuthSession) (profile.Remote, error) {
	req, err := c.newRequest(ctx, http.MethodGet, ProfilePath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", sess.AuthorizationHeader())

	var body map[string]json.RawMessage
	if err := c.do(req, &body); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("fetch profile: %w", ErrMalformedBody)
	}

	remote := make(profile.Remote, len(body))
	for key, raw := range body {
		if !profile.IsField(key) {
			continue
		}
		if value, ok := scalarText(raw); ok {
			remote[key] = value
		}
	}
	return remote, nil
}

// PushProfile writes the full normalized payload. Only the status is checked.
func (c *Client) PushProfile(ctx context.Context, sess session.AuthSession, payload map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal profile payload: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPut, ProfilePath, data)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", sess.AuthorizationHeader())

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("push profile: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if id := RequestID(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
	return req, nil
}

// do sends req and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Debug("remote returned non-2xx",
			"method", req.Method,
			"path", req.URL.Path,
			"status", resp.StatusCode,
			"body", string(raw),
		)
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nil
}

// errorMessage pulls a human message out of a JSON error body, if there is one.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

func scalarText(raw json.RawMessage) (string, bool) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}
