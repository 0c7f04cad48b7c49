package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := &Client{
		baseURL:    srv.URL,
		httpClient: srv.Client(),
		logger:     zap.NewNop(),
	}
	return c, srv
}

func TestWaitJob_SucceedsAndDeletes(t *testing.T) {
	var deleted bool
	one := int32(1)
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			job := batchv1.Job{
				Spec:   batchv1.JobSpec{Completions: &one},
				Status: batchv1.JobStatus{Succeeded: 1},
			}
			_ = json.NewEncoder(w).Encode(job)
		case http.MethodDelete:
			deleted = true
			w.WriteHeader(http.StatusOK)
		}
	}
	c, srv := newTestClient(t, handler)
	defer srv.Close()

	err := c.WaitJob(context.Background(), "echo-build-job", "kaniko-builds", true, 5*time.Millisecond)
	require.NoError(t, err)
	require.True(t, deleted)
}

func TestWaitJob_FailsWithoutDeleting(t *testing.T) {
	six := int32(6)
	var deleteCalled bool
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			job := batchv1.Job{
				Spec:   batchv1.JobSpec{BackoffLimit: &six},
				Status: batchv1.JobStatus{Failed: 6},
			}
			_ = json.NewEncoder(w).Encode(job)
		case http.MethodDelete:
			deleteCalled = true
		}
	}
	c, srv := newTestClient(t, handler)
	defer srv.Close()

	err := c.WaitJob(context.Background(), "echo-build-job", "kaniko-builds", true, 5*time.Millisecond)
	require.Error(t, err)
	require.False(t, deleteCalled)
}

func TestWaitJob_AbortsOnContextCancel(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		job := batchv1.Job{Status: batchv1.JobStatus{Succeeded: 0}}
		_ = json.NewEncoder(w).Encode(job)
	}
	c, srv := newTestClient(t, handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()

	err := c.WaitJob(ctx, "echo-build-job", "kaniko-builds", true, 5*time.Millisecond)
	require.Error(t, err)
}

func TestCreateJob_AcceptsAllSuccessCodes(t *testing.T) {
	for _, status := range []int{200, 201, 202} {
		handler := func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}
		c, srv := newTestClient(t, handler)
		err := c.CreateJob(context.Background(), &batchv1.Job{ObjectMeta: metav1.ObjectMeta{Name: "echo-build-job"}}, "kaniko-builds")
		require.NoError(t, err)
		srv.Close()
	}
}

func TestCreateJob_RejectsError(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}
	c, srv := newTestClient(t, handler)
	defer srv.Close()

	err := c.CreateJob(context.Background(), &batchv1.Job{ObjectMeta: metav1.ObjectMeta{Name: "echo-build-job"}}, "kaniko-builds")
	require.Error(t, err)
}

func TestGetDeploymentEnv_WarnsOnMultipleContainers(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"spec": {"template": {"spec": {"containers": [
				{"name": "a", "env": [{"name": "ONEPROVIDER_HOST", "value": "onedata.example.org"}]},
				{"name": "b"}
			]}}}
		}`))
	}
	c, srv := newTestClient(t, handler)
	defer srv.Close()

	env, err := c.GetDeploymentEnv(context.Background(), "echo-onetrigger", "oscar")
	require.NoError(t, err)
	require.Len(t, env, 1)
	require.Equal(t, "ONEPROVIDER_HOST", env[0].Name)
}
