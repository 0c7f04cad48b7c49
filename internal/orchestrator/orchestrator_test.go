package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/grycap/oscard/internal/faas"
)

func TestInit_ExistsShortCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"already registered"}`))
	}))
	defer srv.Close()

	o := &Orchestrator{
		faas:   faas.New(srv.URL, zap.NewNop()),
		locker: NewLocker(nil, 0, zap.NewNop()),
		logger: zap.NewNop(),
	}

	result := o.Init(FunctionSpec{Name: "echo", Image: "alpine:3"})
	require.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, string(result.Body), "already registered")
}

func TestInit_LockConflictReturnsConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	locker := NewLocker(nil, 0, zap.NewNop())
	locker.Acquire(context.Background(), "echo")

	o := &Orchestrator{
		faas:   faas.New(srv.URL, zap.NewNop()),
		locker: locker,
		logger: zap.NewNop(),
	}

	result := o.Init(FunctionSpec{Name: "echo", Image: "alpine:3"})
	assert.Equal(t, http.StatusConflict, result.StatusCode)
}
