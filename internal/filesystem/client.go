// Package filesystem provisions input/output folders and a change-notifier
// side-car against an optional distributed filesystem (OneData) reachable
// over its CDMI content-metadata protocol.
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/grycap/oscard/internal/cluster"
)

const cdmiSpecVersion = "1.1.1"

// ErrUnauthorized is returned by CheckConnection when the provider rejects
// the token outright (401). Unlike other transport failures this is
// authoritative: callers should disable the binding, not just skip this call.
var ErrUnauthorized = errors.New("filesystem: unauthorized")

const NotifierNamespace = "oscar"

// Binding is the per-function, per-provider credential triple the
// orchestrator derives from a STORAGE_AUTH_ONEDATA_<pid>_* env-var group.
type Binding struct {
	ProviderID string
	Host       string
	Token      string
	Space      string
	// OutputBucket, when set, means the caller named an explicit output
	// destination and output-folder creation should be skipped.
	OutputBucket string
}

// Client talks to a OneData provider over its CDMI HTTP interface.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	scheme     string
}

func New(logger *zap.Logger) *Client {
	return &Client{httpClient: &http.Client{Timeout: 15 * time.Second}, logger: logger, scheme: "https"}
}

func (c *Client) cdmiRequest(ctx context.Context, method, url string, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("filesystem: building request: %w", err)
	}
	req.Header.Set("X-Auth-Token", token)
	req.Header.Set("X-CDMI-Specification-Version", cdmiSpecVersion)
	req.Header.Set("Content-Type", "application/cdmi-container")
	return c.httpClient.Do(req)
}

// CheckConnection queries the provider's spaces endpoint and returns true
// iff the token is authorized and b.Space appears among the spaces listed.
// A 401 is surfaced as ErrUnauthorized so the caller can authoritatively
// disable the binding; any other transport failure returns (false, nil).
func (c *Client) CheckConnection(ctx context.Context, b Binding) (bool, error) {
	url := fmt.Sprintf("%s://%s/cdmi/?children", c.scheme, b.Host)
	resp, err := c.cdmiRequest(ctx, http.MethodGet, url, b.Token, nil)
	if err != nil {
		c.logger.Info("filesystem connection check transport failure", zap.String("host", b.Host), zap.Error(err))
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return false, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Info("filesystem connection check rejected", zap.Int("status", resp.StatusCode))
		return false, nil
	}

	var listing struct {
		Children []string `json:"children"`
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return false, nil
	}
	for _, child := range listing.Children {
		if strings.TrimSuffix(child, "/") == b.Space {
			return true, nil
		}
	}
	return false, nil
}

// CreateInputFolder PUTs a CDMI container resource for the function's input
// folder. 201 and 202 both indicate success.
func (c *Client) CreateInputFolder(ctx context.Context, b Binding, name string) error {
	return c.createFolder(ctx, b, name+"-in")
}

// CreateOutputFolder PUTs the output folder unless the caller supplied an
// explicit OUTPUT_BUCKET, per spec.
func (c *Client) CreateOutputFolder(ctx context.Context, b Binding, name string) error {
	if b.OutputBucket != "" {
		return nil
	}
	return c.createFolder(ctx, b, name+"-out")
}

func (c *Client) createFolder(ctx context.Context, b Binding, folder string) error {
	url := fmt.Sprintf("%s://%s/cdmi/%s/%s/", c.scheme, b.Host, b.Space, folder)
	resp, err := c.cdmiRequest(ctx, http.MethodPut, url, b.Token, nil)
	if err != nil {
		return fmt.Errorf("filesystem: create folder %s: %w", folder, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("create folder rejected", zap.String("folder", folder), zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return fmt.Errorf("filesystem: create folder %s: status %d", folder, resp.StatusCode)
	}
	return nil
}

// DeleteFolder DELETEs a CDMI container resource. 204 indicates success.
func (c *Client) DeleteFolder(ctx context.Context, b Binding, folder string) error {
	url := fmt.Sprintf("%s://%s/cdmi/%s/%s/", c.scheme, b.Host, b.Space, folder)
	resp, err := c.cdmiRequest(ctx, http.MethodDelete, url, b.Token, nil)
	if err != nil {
		return fmt.Errorf("filesystem: delete folder %s: %w", folder, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		c.logger.Info("delete folder rejected, treating as benign", zap.String("folder", folder), zap.Int("status", resp.StatusCode))
	}
	return nil
}

// DeployOnetrigger creates the notifier side-car Deployment that watches the
// function's input folder and POSTs to its async-invoke endpoint on change.
func (c *Client) DeployOnetrigger(ctx context.Context, cl *cluster.Client, b Binding, name, onetriggerVersion, faasEndpoint string) error {
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name + "-onetrigger",
			Namespace: NotifierNamespace,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: int32Ptr(1),
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": name + "-onetrigger"}},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{"app": name + "-onetrigger"}},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  "onetrigger",
							Image: fmt.Sprintf("grycap/onetrigger:%s", onetriggerVersion),
							Env: []corev1.EnvVar{
								{Name: "ONEPROVIDER_HOST", Value: b.Host},
								{Name: "ONEDATA_ACCESS_TOKEN", Value: b.Token},
								{Name: "ONEDATA_SPACE", Value: b.Space},
								{Name: "ONEDATA_SPACE_FOLDER", Value: name + "-in"},
								{Name: "ONETRIGGER_WEBHOOK", Value: fmt.Sprintf("%s/async-function/%s", faasEndpoint, name)},
							},
						},
					},
				},
			},
		},
	}
	return cl.CreateDeployment(ctx, dep, NotifierNamespace)
}

// DeleteOnetriggerDeploy removes the notifier side-car unconditionally.
func (c *Client) DeleteOnetriggerDeploy(ctx context.Context, cl *cluster.Client, name string) error {
	return cl.DeleteDeployment(ctx, name+"-onetrigger", NotifierNamespace)
}

func int32Ptr(v int32) *int32 { return &v }
