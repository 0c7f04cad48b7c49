package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server is the controller's HTTP surface.
type Server struct {
	router   *gin.Engine
	handlers *Handlers
	logger   *zap.Logger
}

func NewServer(handlers *Handlers, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	s := &Server{router: router, handlers: handlers, logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.HealthCheck)
	s.router.GET("/ready", s.handlers.HealthCheck)

	s.router.POST("/functions", s.handlers.InitFunction)
	s.router.DELETE("/functions", s.handlers.RmFunction)
	s.router.PUT("/functions", s.handlers.UpdateFunction)
	s.router.GET("/functions", s.handlers.ListFunctions)

	s.router.GET("/function/:name", s.handlers.GetFunction)
	s.router.POST("/function/:name", s.handlers.InvokeSync)
	s.router.POST("/async-function/:name", s.handlers.InvokeAsync)

	s.router.POST("/events", s.handlers.Events)
}

// Run starts the server.
func (s *Server) Run(addr string) error {
	s.logger.Info("starting oscard API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the underlying gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Debug("request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
