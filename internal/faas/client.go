// Package faas is an HTTP client for the OpenFaaS-style admin and invoke
// API: register/deregister a function, invoke it sync or async, and fetch
// its live metadata.
package faas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	basicAuthUserFile = "/var/secrets/basic-auth-user"
	basicAuthPassFile = "/var/secrets/basic-auth-password"
)

// Spec mirrors the function registration document accepted by the runtime.
type Spec struct {
	Service     string            `json:"service"`
	Image       string            `json:"image"`
	EnvProcess  string            `json:"envProcess"`
	EnvVars     map[string]string `json:"envVars"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Replicas    int               `json:"replicas,omitempty"`
	Memory      string            `json:"memory,omitempty"`
	CPU         string            `json:"cpu,omitempty"`
}

// Response wraps an upstream HTTP response the caller needs to forward
// verbatim (idempotent short-circuit on init, status relay on rm/invoke).
type Response struct {
	StatusCode int
	Body       []byte
}

// Client is a Basic-auth-optional HTTP client for the FaaS admin API.
type Client struct {
	baseURL    string
	user, pass string
	hasAuth    bool
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Client for the given endpoint. If both a username and a
// password file exist at the well-known mount paths, all admin calls use
// HTTP Basic with their contents; otherwise calls are unauthenticated.
func New(baseURL string, logger *zap.Logger) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	user, userErr := os.ReadFile(basicAuthUserFile)
	pass, passErr := os.ReadFile(basicAuthPassFile)
	if userErr == nil && passErr == nil {
		c.user = strings.TrimSpace(string(user))
		c.pass = strings.TrimSpace(string(pass))
		c.hasAuth = true
	}
	return c
}

// MergeDefaults applies the controller-forced keys OpenFaaS registrations
// always carry: read/write timeouts, the supervisor entry process, the
// scale-to-zero label, and (when script is non-empty) SCRIPT in envVars.
// It is a pure function over its inputs so it is independently testable.
func MergeDefaults(spec Spec, script string) Spec {
	envVars := make(map[string]string, len(spec.EnvVars)+3)
	for k, v := range spec.EnvVars {
		envVars[k] = v
	}
	labels := make(map[string]string, len(spec.Labels)+1)
	for k, v := range spec.Labels {
		labels[k] = v
	}
	spec.EnvVars = envVars
	spec.Labels = labels
	spec.EnvVars["read_timeout"] = "90"
	spec.EnvVars["write_timeout"] = "90"
	spec.Labels["com.openfaas.scale.zero"] = "true"
	spec.EnvProcess = "supervisor"
	if script != "" {
		spec.EnvVars["SCRIPT"] = script
	}
	return spec
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.hasAuth {
		req.SetBasicAuth(c.user, c.pass)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("faas: marshaling request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("faas: building request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("faas: request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("faas: reading response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// Create registers a function. Callers are expected to have already run
// spec through MergeDefaults.
func (c *Client) Create(ctx context.Context, spec Spec) (*Response, error) {
	resp, err := c.do(ctx, http.MethodPost, "/system/functions", spec)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		c.logger.Error("create function rejected", zap.String("name", spec.Service), zap.Int("status", resp.StatusCode), zap.ByteString("body", resp.Body))
	}
	return resp, nil
}

// Delete deregisters a function by name.
func (c *Client) Delete(ctx context.Context, name string) (*Response, error) {
	resp, err := c.do(ctx, http.MethodDelete, "/system/functions", map[string]string{"functionName": name})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		c.logger.Error("delete function rejected", zap.String("name", name), zap.Int("status", resp.StatusCode), zap.ByteString("body", resp.Body))
	}
	return resp, nil
}

// Invoke calls the function synchronously or asynchronously with an
// arbitrary request body.
func (c *Client) Invoke(ctx context.Context, name string, body []byte, async bool) (*Response, error) {
	path := fmt.Sprintf("/function/%s", name)
	if async {
		path = fmt.Sprintf("/async-function/%s", name)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("faas: building invoke request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("faas: invoke %s failed: %w", name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("faas: reading invoke response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// Get fetches a function's live metadata.
func (c *Client) Get(ctx context.Context, name string) (*Response, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf("/system/function/%s", name), nil)
}

// List fetches the full function listing.
func (c *Client) List(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, "/system/functions", nil)
}

// Exists maps a 200 on the synchronous invocation path to "present", per
// the original controller's idempotency check ahead of init.
func (c *Client) Exists(ctx context.Context, name string) (bool, *Response, error) {
	resp, err := c.Invoke(ctx, name, nil, false)
	if err != nil {
		return false, nil, err
	}
	return resp.StatusCode == http.StatusOK, resp, nil
}
