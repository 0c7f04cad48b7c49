package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/grycap/oscard/internal/eventrouter"
	"github.com/grycap/oscard/internal/orchestrator"
)

func TestHealthCheck(t *testing.T) {
	s := NewServer(NewHandlers(nil, nil, zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestInitFunction_RejectsMissingFields(t *testing.T) {
	s := NewServer(NewHandlers(&orchestrator.Orchestrator{}, &eventrouter.Router{}, zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/functions", strings.NewReader(`{"name":""}`))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateFunction_NotImplemented(t *testing.T) {
	s := NewServer(NewHandlers(nil, nil, zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodPut, "/functions", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
