// Package httpapi implements the api-system adapter for real mode: actions
// become HTTP requests against the terminal's REST API and response bodies
// feed the captured-data context.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gantrylabs/gantry/internal/adapter"
	"github.com/gantrylabs/gantry/internal/flow"
)

const defaultTimeout = 30 * time.Second

// Adapter talks to the terminal API over HTTP. Expected failures (4xx/5xx
// responses) are reported as unsuccessful ActionResults; transport faults
// are returned as errors.
type Adapter struct {
	baseURL string
	client  *http.Client
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.client.Timeout = d }
}

// WithHTTPClient replaces the HTTP client entirely. Used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// New creates an api adapter rooted at baseURL.
func New(baseURL string, opts ...Option) *Adapter {
	a := &Adapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) System() flow.System { return flow.SystemAPI }

// Initialize checks that the configured base URL is usable. No session state
// is needed for plain HTTP.
func (a *Adapter) Initialize(_ context.Context) error {
	u, err := url.Parse(a.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("httpapi: invalid base URL %q", a.baseURL)
	}
	return nil
}

// ExecuteAction performs one api_request action. The parsed JSON response
// body is captured under the action's capture key when one is set.
func (a *Adapter) ExecuteAction(ctx context.Context, action flow.Action, rctx *adapter.RunContext) (adapter.ActionResult, error) {
	started := time.Now()

	var body io.Reader
	if action.Body != nil {
		encoded, err := json.Marshal(action.Body)
		if err != nil {
			return adapter.ActionResult{}, fmt.Errorf("httpapi: encoding body for %q: %w", action.Name, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, action.Method, a.baseURL+action.Path, body)
	if err != nil {
		return adapter.ActionResult{}, fmt.Errorf("httpapi: building request for %q: %w", action.Name, err)
	}
	if action.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range action.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return adapter.ActionResult{}, fmt.Errorf("httpapi: %s %s: %w", action.Method, action.Path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return adapter.ActionResult{}, fmt.Errorf("httpapi: reading response for %q: %w", action.Name, err)
	}

	result := adapter.ActionResult{
		Name:     action.Name,
		Success:  resp.StatusCode < 400,
		Duration: time.Since(started),
	}
	if !result.Success {
		result.Error = fmt.Sprintf("%s %s returned %s: %s",
			action.Method, action.Path, resp.Status, truncate(payload, 200))
		return result, nil
	}

	if action.Capture != "" {
		var parsed any
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &parsed); err != nil {
				rctx.Logger.Warn("response not JSON; capturing raw text",
					"action", action.Name, "error", err)
				parsed = string(payload)
			}
		}
		result.Captured = map[string]any{action.Capture: parsed}
	}
	return result, nil
}

// Verify evaluates a response verification against the captured-data
// context. The api adapter holds no live state of its own to inspect.
func (a *Adapter) Verify(_ context.Context, v flow.Verification, rctx *adapter.RunContext) adapter.VerificationResult {
	if v.Type != flow.VerifyResponse {
		return adapter.VerificationResult{
			Description:   v.Description,
			FailureReason: fmt.Sprintf("httpapi cannot evaluate %q verifications", v.Type),
		}
	}
	return adapter.EvaluateCaptured(v, rctx)
}

// Cleanup releases pooled connections.
func (a *Adapter) Cleanup(_ context.Context) error {
	a.client.CloseIdleConnections()
	return nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
