package faas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMergeDefaults(t *testing.T) {
	spec := Spec{Service: "echo", Image: "registry.local/echo"}
	merged := MergeDefaults(spec, "Y2F0ICQx")

	assert.Equal(t, "supervisor", merged.EnvProcess)
	assert.Equal(t, "90", merged.EnvVars["read_timeout"])
	assert.Equal(t, "90", merged.EnvVars["write_timeout"])
	assert.Equal(t, "true", merged.Labels["com.openfaas.scale.zero"])
	assert.Equal(t, "Y2F0ICQx", merged.EnvVars["SCRIPT"])
}

func TestMergeDefaults_NoScriptOmitsKey(t *testing.T) {
	merged := MergeDefaults(Spec{Service: "echo"}, "")
	_, ok := merged.EnvVars["SCRIPT"]
	assert.False(t, ok)
}

func TestExists_MapsSyncInvoke200ToPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/function/echo", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, zap.NewNop())
	ok, resp, err := c.Exists(context.Background(), "echo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExists_NonOKMeansAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, zap.NewNop())
	ok, _, err := c.Exists(context.Background(), "echo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete_SendsFunctionNameBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, zap.NewNop())
	_, err := c.Delete(context.Background(), "echo")
	require.NoError(t, err)
	assert.Contains(t, gotBody, `"functionName":"echo"`)
}
