package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/grycap/oscard/internal/eventrouter"
	"github.com/grycap/oscard/internal/orchestrator"
)

// Handlers contains all API handlers
type Handlers struct {
	orchestrator *orchestrator.Orchestrator
	events       *eventrouter.Router
	logger       *zap.Logger
}

// NewHandlers creates new API handlers
func NewHandlers(o *orchestrator.Orchestrator, events *eventrouter.Router, logger *zap.Logger) *Handlers {
	return &Handlers{
		orchestrator: o,
		events:       events,
		logger:       logger,
	}
}

// InitFunction handles POST /functions: decode the FunctionSpec body and
// hand it to the orchestrator, relaying whatever status/body it returns.
func (h *Handlers) InitFunction(c *gin.Context) {
	var spec orchestrator.FunctionSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if spec.Name == "" || spec.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and image are required"})
		return
	}

	result := h.orchestrator.Init(spec)
	c.Data(result.StatusCode, "application/json", result.Body)
}

// RmFunction handles DELETE /functions: decode the FunctionSpec body
// (name and optional deleteBuckets/envVars) and tear the function down.
func (h *Handlers) RmFunction(c *gin.Context) {
	var spec orchestrator.FunctionSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if spec.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	resp, err := h.orchestrator.Rm(c.Request.Context(), spec)
	if err != nil {
		h.logger.Error("rm failed", zap.String("function", spec.Name), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(resp.StatusCode, "application/json", resp.Body)
}

// UpdateFunction handles PUT /functions. Updating an already-registered
// function in place has no analogue here: callers delete and re-init.
func (h *Handlers) UpdateFunction(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "function update is not supported, delete and re-init instead"})
}

// ListFunctions handles GET /functions.
func (h *Handlers) ListFunctions(c *gin.Context) {
	resp, err := h.orchestrator.Ls(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(resp.StatusCode, "application/json", resp.Body)
}

// GetFunction handles GET /function/:name.
func (h *Handlers) GetFunction(c *gin.Context) {
	name := c.Param("name")
	resp, err := h.orchestrator.Get(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(resp.StatusCode, "application/json", resp.Body)
}

// InvokeSync handles POST /function/:name.
func (h *Handlers) InvokeSync(c *gin.Context) {
	h.invoke(c, false)
}

// InvokeAsync handles POST /async-function/:name.
func (h *Handlers) InvokeAsync(c *gin.Context) {
	h.invoke(c, true)
}

func (h *Handlers) invoke(c *gin.Context, async bool) {
	name := c.Param("name")
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.orchestrator.Invoke(c.Request.Context(), name, body, async)
	if err != nil {
		h.logger.Error("invoke failed", zap.String("function", name), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(resp.StatusCode, "application/json", resp.Body)
}

// Events handles POST /events: the object store's bucket-notification
// webhook, dispatched to the target function as an async invocation.
func (h *Handlers) Events(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.events.Dispatch(c.Request.Context(), body); err != nil {
		h.logger.Warn("event dispatch failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "dispatched"})
}

// HealthCheck returns service health.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "oscard",
	})
}
