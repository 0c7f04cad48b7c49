package builder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildJobDefinition(t *testing.T) {
	c := &Client{cfg: Config{Registry: "registry.local"}}
	job := c.buildJobDefinition("echo-build-job", "/pv/kaniko-builds/abc", "registry.local/echo")

	assert.Equal(t, "echo-build-job", job.Name)
	assert.Equal(t, KanikoNamespace, job.Namespace)
	require.Len(t, job.Spec.Template.Spec.Containers, 1)
	container := job.Spec.Template.Spec.Containers[0]
	assert.Contains(t, container.Args, "--destination=registry.local/echo")
	assert.Contains(t, container.Args, "--skip-tls-verify")
	require.Len(t, job.Spec.Template.Spec.Volumes, 1)
	assert.Equal(t, "/pv/kaniko-builds/abc", job.Spec.Template.Spec.Volumes[0].HostPath.Path)
}

func TestPrepareWorkDir_RewritesBaseImageAndDecodesScript(t *testing.T) {
	dir := t.TempDir()
	c := &Client{}

	err := c.prepareWorkDirDockerfileAndScriptOnly(dir, "alpine:3", "Y2F0ICQx")
	require.NoError(t, err)

	dockerfile, err := os.ReadFile(filepath.Join(dir, "Dockerfile"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(dockerfile), "FROM alpine:3\n"))

	script, err := os.ReadFile(filepath.Join(dir, "user_script.sh"))
	require.NoError(t, err)
	assert.Equal(t, "cat $1", string(script))
}
