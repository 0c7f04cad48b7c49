// Package cluster is a thin RPC client for the in-cluster control API: it
// creates, deletes, and polls Jobs and Deployments against a namespace using
// the pod's own service-account credentials. It deliberately talks the raw
// Kubernetes REST API over net/http rather than a generated clientset, the
// same way the rest of the control plane favors a handful of sharp HTTP
// calls over a heavier dependency.
package cluster

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

const (
	serviceAccountTokenFile = "/var/run/secrets/kubernetes.io/serviceaccount/token"
	serviceAccountCAFile    = "/var/run/secrets/kubernetes.io/serviceaccount/ca.crt"

	defaultBackoffLimit = int32(6)
	defaultCompletions  = int32(1)
)

// Config carries the connection parameters a Client is built from. Host and
// Port default to the in-cluster canonical service name when empty.
type Config struct {
	Host string
	Port string
}

// Client is a bearer-token-authenticated RPC client for the cluster's Job
// and Deployment APIs.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Client from the ambient host environment: the service host
// and port default to the in-cluster canonical name and 443; the bearer
// token is read once from the mounted service-account file; the presence of
// a CA bundle toggles certificate verification.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	host := cfg.Host
	if host == "" {
		host = "kubernetes.default"
	}
	port := cfg.Port
	if port == "" {
		port = "443"
	}

	var token string
	if raw, err := os.ReadFile(serviceAccountTokenFile); err == nil {
		token = strings.TrimSpace(string(raw))
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: true}
	if caBytes, err := os.ReadFile(serviceAccountCAFile); err == nil {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("cluster: no certificates found in %s", serviceAccountCAFile)
		}
		tlsConfig = &tls.Config{RootCAs: pool}
	}

	return &Client{
		baseURL: fmt.Sprintf("https://%s:%s", host, port),
		token:   token,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
		logger: logger,
	}, nil
}

func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("cluster: marshaling request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("cluster: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("cluster: request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("cluster: reading response: %w", err)
	}
	return resp, respBody, nil
}

func statusIn(status int, want ...int) bool {
	for _, w := range want {
		if status == w {
			return true
		}
	}
	return false
}

// CreateJob submits a Job definition to the given namespace. Per the cluster
// API, 200, 201, and 202 all indicate acceptance.
func (c *Client) CreateJob(ctx context.Context, job *batchv1.Job, ns string) error {
	path := fmt.Sprintf("/apis/batch/v1/namespaces/%s/jobs", ns)
	resp, body, err := c.request(ctx, http.MethodPost, path, job)
	if err != nil {
		return err
	}
	if !statusIn(resp.StatusCode, 200, 201, 202) {
		c.logger.Error("create job rejected",
			zap.String("name", job.Name), zap.String("namespace", ns),
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return fmt.Errorf("cluster: create job %s/%s: status %d", ns, job.Name, resp.StatusCode)
	}
	return nil
}

// DeleteJob removes a Job by name. 200 and 202 both indicate acceptance.
func (c *Client) DeleteJob(ctx context.Context, name, ns string) error {
	path := fmt.Sprintf("/apis/batch/v1/namespaces/%s/jobs/%s", ns, name)
	resp, body, err := c.request(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if !statusIn(resp.StatusCode, 200, 202) {
		c.logger.Error("delete job rejected",
			zap.String("name", name), zap.String("namespace", ns),
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return fmt.Errorf("cluster: delete job %s/%s: status %d", ns, name, resp.StatusCode)
	}
	return nil
}

func (c *Client) getJob(ctx context.Context, name, ns string) (*batchv1.Job, error) {
	path := fmt.Sprintf("/apis/batch/v1/namespaces/%s/jobs/%s", ns, name)
	resp, body, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cluster: get job %s/%s: status %d", ns, name, resp.StatusCode)
	}
	var job batchv1.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("cluster: decoding job %s/%s: %w", ns, name, err)
	}
	return &job, nil
}

// WaitJob polls the job at pollInterval until it either succeeds
// (Status.Succeeded >= Spec.Completions) or exhausts its retries
// (Status.Failed >= Spec.BackoffLimit). On success with deleteOnSuccess it
// issues a delete before returning. A transport error during polling aborts
// the wait; callers must treat that as an unknown outcome, not a failure.
// ctx cancellation aborts the wait the same way.
func (c *Client) WaitJob(ctx context.Context, name, ns string, deleteOnSuccess bool, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		job, err := c.getJob(ctx, name, ns)
		if err != nil {
			c.logger.Error("poll job failed, aborting wait", zap.String("name", name), zap.Error(err))
			return err
		}

		completions := defaultCompletions
		if job.Spec.Completions != nil {
			completions = *job.Spec.Completions
		}
		if job.Status.Succeeded >= completions {
			if deleteOnSuccess {
				if err := c.DeleteJob(ctx, name, ns); err != nil {
					c.logger.Error("delete on success failed", zap.String("name", name), zap.Error(err))
				}
			}
			return nil
		}

		backoffLimit := defaultBackoffLimit
		if job.Spec.BackoffLimit != nil {
			backoffLimit = *job.Spec.BackoffLimit
		}
		if job.Status.Failed >= backoffLimit {
			return fmt.Errorf("cluster: job %s/%s failed: %d/%d attempts", ns, name, job.Status.Failed, backoffLimit)
		}
	}
}

// CreateDeployment submits a Deployment definition to the given namespace.
func (c *Client) CreateDeployment(ctx context.Context, dep *appsv1.Deployment, ns string) error {
	path := fmt.Sprintf("/apis/apps/v1/namespaces/%s/deployments", ns)
	resp, body, err := c.request(ctx, http.MethodPost, path, dep)
	if err != nil {
		return err
	}
	if !statusIn(resp.StatusCode, 200, 201, 202) {
		c.logger.Error("create deployment rejected",
			zap.String("name", dep.Name), zap.String("namespace", ns),
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return fmt.Errorf("cluster: create deployment %s/%s: status %d", ns, dep.Name, resp.StatusCode)
	}
	return nil
}

// DeleteDeployment removes a Deployment by name.
func (c *Client) DeleteDeployment(ctx context.Context, name, ns string) error {
	path := fmt.Sprintf("/apis/apps/v1/namespaces/%s/deployments/%s", ns, name)
	resp, body, err := c.request(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if !statusIn(resp.StatusCode, 200, 202) {
		c.logger.Error("delete deployment rejected",
			zap.String("name", name), zap.String("namespace", ns),
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return fmt.Errorf("cluster: delete deployment %s/%s: status %d", ns, name, resp.StatusCode)
	}
	return nil
}

// GetDeploymentEnv returns the environment variables of a Deployment's first
// container, warning if more than one container is present.
func (c *Client) GetDeploymentEnv(ctx context.Context, name, ns string) ([]corev1.EnvVar, error) {
	path := fmt.Sprintf("/apis/apps/v1/namespaces/%s/deployments/%s", ns, name)
	resp, body, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cluster: get deployment %s/%s: status %d", ns, name, resp.StatusCode)
	}

	var dep appsv1.Deployment
	if err := json.Unmarshal(body, &dep); err != nil {
		return nil, fmt.Errorf("cluster: decoding deployment %s/%s: %w", ns, name, err)
	}

	containers := dep.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		return nil, nil
	}
	if len(containers) > 1 {
		c.logger.Warn("deployment has more than one container, using the first",
			zap.String("name", name), zap.Int("containers", len(containers)))
	}
	return containers[0].Env, nil
}
