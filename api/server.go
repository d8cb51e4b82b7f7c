// Package api is the control-plane HTTP surface: strategy CRUD, start/stop
// control, and read-only position/trade/queue views, behind a JWT-bearer
// gate with an optional TOTP step-up.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quantdriver/config"
	"quantdriver/logger"
	"quantdriver/runner"
	"quantdriver/store"
)

// Server bundles the dependencies every handler needs: the state store,
// the runner supervisor it starts/stops strategies through, and config for
// auth secrets and listen address.
type Server struct {
	store *store.Store
	sup   *runner.Supervisor
	cfg   *config.Config

	engine *gin.Engine
	http   *http.Server
}

func NewServer(st *store.Store, sup *runner.Supervisor, cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{store: st, sup: sup, cfg: cfg, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.engine.POST("/api/v1/auth/login", s.handleLogin)

	authed := s.engine.Group("/api/v1", s.jwtAuth())
	{
		authed.GET("/strategies", s.handleListStrategies)
		authed.POST("/strategies", s.handleCreateStrategy)
		authed.GET("/strategies/:id", s.handleGetStrategy)
		authed.PUT("/strategies/:id", s.handleUpdateStrategy)
		authed.DELETE("/strategies/:id", s.totpStepUp(), s.handleDeleteStrategy)
		authed.POST("/strategies/:id/start", s.totpStepUp(), s.handleStartStrategy)
		authed.POST("/strategies/:id/stop", s.handleStopStrategy)

		authed.GET("/strategies/:id/positions", s.handleListPositions)
		authed.GET("/strategies/:id/trades", s.handleListTrades)
		authed.GET("/strategies/:id/pending-orders", s.handleListPendingOrders)
	}
}

// Run starts the HTTP listener and blocks until Shutdown is called or the
// listener errors out.
func (s *Server) Run() error {
	s.http = &http.Server{Addr: s.cfg.APIAddr, Handler: s.engine}
	logger.Infof("api server listening on %s", s.cfg.APIAddr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
