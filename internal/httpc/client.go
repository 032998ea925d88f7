// Package httpc provides an HTTP client with sensible defaults and a
// small client for the facelink control API.
package httpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-facelink/pkg/web"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// NewClient creates an HTTP client with the specified timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the control API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// API talks to a running facelink server.
type API struct {
	base string
	http *http.Client
}

// NewAPI creates a client for the server at base, e.g.
// "http://localhost:8080". A nil client uses NewClient(DefaultTimeout).
func NewAPI(base string, client *http.Client) *API {
	if client == nil {
		client = NewClient(DefaultTimeout)
	}
	return &API{base: strings.TrimRight(base, "/"), http: client}
}

// Status fetches GET /api/status.
func (a *API) Status(ctx context.Context) (*web.StatusResponse, error) {
	var out web.StatusResponse
	if err := a.do(ctx, http.MethodGet, "/api/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ControlResponse is the body returned by start and stop.
type ControlResponse struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
}

// Start opens a capture session on the server.
func (a *API) Start(ctx context.Context) (*ControlResponse, error) {
	var out ControlResponse
	if err := a.do(ctx, http.MethodPost, "/api/start", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stop ends the server's capture session.
func (a *API) Stop(ctx context.Context) (*ControlResponse, error) {
	var out ControlResponse
	if err := a.do(ctx, http.MethodPost, "/api/stop", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
