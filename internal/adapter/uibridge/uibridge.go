// Package uibridge implements the real-mode adapter for the three UI-bearing
// systems (dashboard, 3D yard view, driver mini-app). It speaks a small
// JSON-over-HTTP protocol to an automation bridge service that owns the
// actual browser or device session, keeping browser automation out of this
// process.
//
// Bridge protocol:
//
//	POST   /session                      {system, headless} -> {session_id}
//	POST   /session/{id}/action          {action...}        -> {success, error, captured}
//	POST   /session/{id}/query           {target, query}    -> {present, value}
//	GET    /session/{id}/screenshot                         -> {data} (base64 PNG)
//	DELETE /session/{id}
package uibridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gantrylabs/gantry/internal/adapter"
	"github.com/gantrylabs/gantry/internal/flow"
)

const defaultTimeout = 60 * time.Second

// Adapter drives one UI-bearing system through the automation bridge. One
// instance per system; each holds its own bridge session.
type Adapter struct {
	system    flow.System
	baseURL   string
	headless  bool
	client    *http.Client
	sessionID string
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.client.Timeout = d }
}

// WithHeadless controls whether the bridge opens a visible window.
func WithHeadless(headless bool) Option {
	return func(a *Adapter) { a.headless = headless }
}

// WithHTTPClient replaces the HTTP client entirely. Used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// New creates a bridge adapter for the given UI-bearing system.
func New(system flow.System, baseURL string, opts ...Option) *Adapter {
	a := &Adapter{
		system:   system,
		baseURL:  strings.TrimRight(baseURL, "/"),
		headless: true,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) System() flow.System { return a.system }

// Initialize opens a bridge session for this system.
func (a *Adapter) Initialize(ctx context.Context) error {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	err := a.post(ctx, "/session", map[string]any{
		"system":   a.system,
		"headless": a.headless,
	}, &resp)
	if err != nil {
		return fmt.Errorf("uibridge: opening %s session: %w", a.system, err)
	}
	if resp.SessionID == "" {
		return fmt.Errorf("uibridge: bridge returned no session id for %s", a.system)
	}
	a.sessionID = resp.SessionID
	return nil
}

// ExecuteAction forwards one interaction to the bridge. The bridge reports
// expected failures (element not found, gesture rejected) in its response
// body; those become unsuccessful results, not errors.
func (a *Adapter) ExecuteAction(ctx context.Context, action flow.Action, _ *adapter.RunContext) (adapter.ActionResult, error) {
	if a.sessionID == "" {
		return adapter.ActionResult{}, fmt.Errorf("uibridge: no %s session; Initialize not called", a.system)
	}

	started := time.Now()
	var resp struct {
		Success  bool           `json:"success"`
		Error    string         `json:"error"`
		Captured map[string]any `json:"captured"`
	}
	err := a.post(ctx, "/session/"+a.sessionID+"/action", bridgeAction(action), &resp)
	if err != nil {
		return adapter.ActionResult{}, fmt.Errorf("uibridge: action %q: %w", action.Name, err)
	}

	result := adapter.ActionResult{
		Name:     action.Name,
		Success:  resp.Success,
		Error:    resp.Error,
		Duration: time.Since(started),
	}
	if resp.Success && action.Capture != "" && resp.Captured != nil {
		result.Captured = map[string]any{action.Capture: resp.Captured}
	}
	return result, nil
}

// Verify asks the bridge for the live value behind the verification's target
// and applies the operator locally, so operator semantics stay uniform
// across systems. Response verifications read captured data instead.
func (a *Adapter) Verify(ctx context.Context, v flow.Verification, rctx *adapter.RunContext) adapter.VerificationResult {
	if v.Type == flow.VerifyResponse {
		return adapter.EvaluateCaptured(v, rctx)
	}
	if v.Type != a.stateType() {
		return adapter.VerificationResult{
			Description:   v.Description,
			FailureReason: fmt.Sprintf("%s adapter cannot evaluate %q verifications", a.system, v.Type),
		}
	}
	if a.sessionID == "" {
		return adapter.VerificationResult{
			Description:   v.Description,
			FailureReason: "no bridge session",
		}
	}

	var resp struct {
		Present bool `json:"present"`
		Value   any  `json:"value"`
	}
	err := a.post(ctx, "/session/"+a.sessionID+"/query", map[string]any{
		"target": v.Target,
		"query":  v.Query,
	}, &resp)
	if err != nil {
		return adapter.VerificationResult{
			Description:   v.Description,
			FailureReason: fmt.Sprintf("bridge query failed: %v", err),
		}
	}
	return adapter.EvaluateOperator(v, resp.Value, resp.Present)
}

// Cleanup closes the bridge session. Safe to call when Initialize failed.
func (a *Adapter) Cleanup(ctx context.Context) error {
	defer a.client.CloseIdleConnections()
	if a.sessionID == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.baseURL+"/session/"+a.sessionID, nil)
	if err != nil {
		return fmt.Errorf("uibridge: closing %s session: %w", a.system, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("uibridge: closing %s session: %w", a.system, err)
	}
	resp.Body.Close()
	a.sessionID = ""
	return nil
}

// Screenshot fetches a PNG from the bridge and writes it to label+".png".
func (a *Adapter) Screenshot(ctx context.Context, label string) (string, error) {
	if a.sessionID == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/session/"+a.sessionID+"/screenshot", nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uibridge: fetching screenshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("uibridge: screenshot returned %s", resp.Status)
	}

	var payload struct {
		Data string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("uibridge: decoding screenshot: %w", err)
	}
	png, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return "", fmt.Errorf("uibridge: decoding screenshot data: %w", err)
	}

	path := label + ".png"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// stateType maps the adapter's system to its live-state verification type.
func (a *Adapter) stateType() flow.VerificationType {
	switch a.system {
	case flow.SystemYard:
		return flow.VerifyYardState
	case flow.SystemMobile:
		return flow.VerifyMobileState
	default:
		return flow.VerifyUIState
	}
}

// bridgeAction flattens the action variant into the bridge's wire shape.
func bridgeAction(action flow.Action) map[string]any {
	payload := map[string]any{"type": action.Type, "name": action.Name}
	switch action.Type {
	case flow.ActionYardOperation:
		payload["operation"] = action.Operation
		payload["container_id"] = action.ContainerID
		payload["bay"] = action.Bay
		payload["row"] = action.Row
		payload["tier"] = action.Tier
	default:
		payload["gesture"] = action.Gesture
		payload["target"] = action.Target
		payload["value"] = action.Value
	}
	return payload
}

// post sends a JSON request and decodes the JSON response into out. Non-2xx
// statuses are errors: the bridge reports expected failures in its body, so
// an error status means the bridge itself is broken.
func (a *Adapter) post(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bridge returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
