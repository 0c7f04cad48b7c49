// Package builder materializes a per-function build context — a Dockerfile,
// the watchdog and supervisor binaries, and the user's decoded script — and
// submits a Kaniko Job that produces and pushes the derived image.
package builder

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"github.com/google/uuid"
	"go.uber.org/zap"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/grycap/oscard/internal/cluster"
)

const (
	// KanikoNamespace is the namespace build Jobs run in, matching the
	// original's kaniko-builds.
	KanikoNamespace = "kaniko-builds"

	kanikoImage = "gcr.io/kaniko-project/executor:v1.19.0"

	watchdogOwner, watchdogRepo, watchdogAsset    = "openfaas", "faas", "fwatchdog"
	supervisorOwner, supervisorRepo, superviseAsset = "grycap", "faas-supervisor", "supervisor"
)

const dockerfileTemplate = `FROM ubuntu
COPY watchdog /usr/bin/watchdog
COPY supervisor /usr/bin/supervisor
COPY user_script.sh /var/task/user_script.sh
RUN chmod +x /usr/bin/watchdog /usr/bin/supervisor /var/task/user_script.sh
ENV fprocess="supervisor"
CMD ["/usr/bin/watchdog"]
`

// Config carries the build-time settings a Client is constructed from.
type Config struct {
	WorkDir           string
	Registry          string
	SupervisorVersion string
	WatchdogVersion   string
	PollInterval      time.Duration
}

// Client drives the build pipeline: prepare a working directory, submit a
// Kaniko Job, wait for it, and return the derived image tag.
type Client struct {
	cluster    *cluster.Client
	cfg        Config
	github     *github.Client
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cl *cluster.Client, cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cluster:    cl,
		cfg:        cfg,
		github:     github.NewClient(nil),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
	}
}

// Build produces and pushes the derived image for name, returning
// "<registry>/<name>". baseImage and scriptB64 come straight from the
// caller's FunctionSpec.
func (c *Client) Build(ctx context.Context, name, baseImage, scriptB64 string) (string, error) {
	workDir := filepath.Join(c.cfg.WorkDir, uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("builder: creating work dir: %w", err)
	}

	if err := c.prepareWorkDir(ctx, workDir, baseImage, scriptB64); err != nil {
		os.RemoveAll(workDir)
		return "", err
	}

	jobName := name + "-build-job"
	image := fmt.Sprintf("%s/%s", c.cfg.Registry, name)

	job := c.buildJobDefinition(jobName, workDir, image)
	if err := c.cluster.CreateJob(ctx, job, KanikoNamespace); err != nil {
		os.RemoveAll(workDir)
		return "", fmt.Errorf("builder: submitting build job: %w", err)
	}

	pollInterval := c.cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if err := c.cluster.WaitJob(ctx, jobName, KanikoNamespace, true, pollInterval); err != nil {
		return "", fmt.Errorf("builder: waiting for build job %s: %w", jobName, err)
	}

	if err := os.RemoveAll(workDir); err != nil {
		c.logger.Warn("cleanup of build work dir failed", zap.String("dir", workDir), zap.Error(err))
	}

	return image, nil
}

func (c *Client) prepareWorkDir(ctx context.Context, workDir, baseImage, scriptB64 string) error {
	if err := c.prepareWorkDirDockerfileAndScriptOnly(workDir, baseImage, scriptB64); err != nil {
		return err
	}

	if err := c.downloadGithubAsset(ctx, watchdogOwner, watchdogRepo, watchdogAsset, c.cfg.WatchdogVersion, filepath.Join(workDir, "watchdog")); err != nil {
		return err
	}
	if err := c.downloadGithubAsset(ctx, supervisorOwner, supervisorRepo, superviseAsset, c.cfg.SupervisorVersion, filepath.Join(workDir, "supervisor")); err != nil {
		return err
	}
	return nil
}

// prepareWorkDirDockerfileAndScriptOnly writes the two build-context files
// that need no network access, split out from prepareWorkDir for testing.
func (c *Client) prepareWorkDirDockerfileAndScriptOnly(workDir, baseImage, scriptB64 string) error {
	dockerfile := strings.Replace(dockerfileTemplate, "FROM ubuntu", "FROM "+baseImage, 1)
	if err := os.WriteFile(filepath.Join(workDir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		return fmt.Errorf("builder: writing Dockerfile: %w", err)
	}

	script, err := base64.StdEncoding.DecodeString(scriptB64)
	if err != nil {
		return fmt.Errorf("builder: decoding user script: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "user_script.sh"), script, 0o755); err != nil {
		return fmt.Errorf("builder: writing user_script.sh: %w", err)
	}
	return nil
}

func (c *Client) downloadGithubAsset(ctx context.Context, owner, repo, assetName, version, destPath string) error {
	var (
		release *github.RepositoryRelease
		err     error
	)
	if version == "" || version == "latest" {
		release, _, err = c.github.Repositories.GetLatestRelease(ctx, owner, repo)
	} else {
		release, _, err = c.github.Repositories.GetReleaseByTag(ctx, owner, repo, version)
	}
	if err != nil {
		return fmt.Errorf("builder: fetching %s/%s release %s: %w", owner, repo, version, err)
	}

	for _, asset := range release.Assets {
		if asset.GetName() != assetName {
			continue
		}
		return c.downloadToFile(ctx, asset.GetBrowserDownloadURL(), destPath)
	}
	return fmt.Errorf("builder: asset %s not found in %s/%s release %s", assetName, owner, repo, version)
}

func (c *Client) downloadToFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("builder: building download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("builder: downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("builder: downloading %s: status %d", url, resp.StatusCode)
	}

	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("builder: opening %s: %w", destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("builder: writing %s: %w", destPath, err)
	}
	return nil
}

func (c *Client) buildJobDefinition(jobName, workDir, image string) *batchv1.Job {
	backoffLimit := int32(0)
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: jobName, Namespace: KanikoNamespace},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:  "kaniko",
							Image: kanikoImage,
							Args: []string{
								"--context=dir:///workspace/",
								"--destination=" + image,
								"--skip-tls-verify",
							},
							VolumeMounts: []corev1.VolumeMount{
								{Name: "build-context", MountPath: "/workspace"},
							},
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceMemory: resource.MustParse("256Mi"),
									corev1.ResourceCPU:    resource.MustParse("250m"),
								},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: "build-context",
							VolumeSource: corev1.VolumeSource{
								HostPath: &corev1.HostPathVolumeSource{Path: workDir},
							},
						},
					},
				},
			},
		},
	}
}
