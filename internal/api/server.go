// Package api provides the HTTP surface of the chat relay server.
// This file wires the gin engine, routes, and graceful shutdown.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/sparkmatch/chatrelay/internal/api/handlers"
	"github.com/sparkmatch/chatrelay/internal/api/middleware"
	"github.com/sparkmatch/chatrelay/internal/audit"
	"github.com/sparkmatch/chatrelay/internal/config"
	"github.com/sparkmatch/chatrelay/internal/observability"
	"github.com/sparkmatch/chatrelay/internal/provider/anthropic"
	"github.com/sparkmatch/chatrelay/internal/relay"
	"github.com/sparkmatch/chatrelay/internal/usage"
)

// Server is the chat relay HTTP server.
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	httpServer *http.Server

	accountant  *usage.Accountant
	counters    *usage.Counters
	auditLogger *audit.Logger
	hub         *UsageHub
	usageDB     *usage.DB
}

// NewServer builds the server and its pipeline from configuration.
// Dependencies are constructed here and passed explicitly; there are no
// ambient engine singletons.
func NewServer(cfg *config.Config) (*Server, error) {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:         cfg,
		accountant:  usage.NewAccountant(cfg.Pricing),
		counters:    &usage.Counters{},
		auditLogger: audit.NewLogger(cfg.Audit.Enabled, cfg.Audit.MaxEntries),
		hub:         NewUsageHub(),
	}

	s.accountant.AddSink(s.counters.Sink())
	s.accountant.AddSink(observability.GetMetrics().Sink())
	s.accountant.AddSink(s.hub.Sink())

	if cfg.UsageDB.Enabled {
		db, err := usage.NewDB(context.Background(), cfg.UsageDB)
		if err != nil {
			log.Warnf("usage database unavailable, continuing without persistence: %v", err)
		} else {
			s.usageDB = db
			s.accountant.AddSink(db.Sink())
		}
	}

	provider := relay.WrapProvider(anthropic.NewClient(cfg.Anthropic), cfg.Resilience)
	pipeline := relay.NewPipeline(provider, s.accountant)

	s.engine = s.buildEngine(pipeline)
	return s, nil
}

func (s *Server) buildEngine(pipeline *relay.Pipeline) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())

	chat := handlers.NewChatHandler(pipeline)
	engine.POST("/api/chat", middleware.Audit(s.auditLogger), chat.Handle)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", observability.Handler())
	engine.GET("/ws/usage", s.hub.Handler())

	management := handlers.NewManagementHandler(s.counters, s.auditLogger)
	mgmt := engine.Group("/v0/management", middleware.ManagementAuth(s.cfg.Management))
	mgmt.GET("/usage", management.UsageTotals)
	mgmt.GET("/audit", management.AuditLog)

	return engine
}

// ApplyConfig applies hot-reloadable settings from a freshly loaded config.
// Only pricing constants take effect without a restart.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.accountant.SetPricing(cfg.Pricing)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("chat relay listening on %s", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("graceful shutdown failed: %v", err)
	}

	if s.usageDB != nil {
		s.usageDB.Close()
	}
	s.counters.LogTotals()
	return nil
}
