// Package cmd provides service startup for the chat relay server.
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sparkmatch/chatrelay/internal/api"
	"github.com/sparkmatch/chatrelay/internal/config"
	"github.com/sparkmatch/chatrelay/internal/logging"
	"github.com/sparkmatch/chatrelay/internal/runtime/executor"
)

// initPerformanceSystem configures the shared HTTP connection pool.
func initPerformanceSystem(cfg *config.Config) {
	poolCfg := executor.DefaultHTTPPoolConfig()
	if cfg.Performance.HTTPPool.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = cfg.Performance.HTTPPool.MaxIdleConns
	}
	if cfg.Performance.HTTPPool.MaxIdleConnsPerHost > 0 {
		poolCfg.MaxIdleConnsPerHost = cfg.Performance.HTTPPool.MaxIdleConnsPerHost
	}
	if cfg.Performance.HTTPPool.MaxConnsPerHost > 0 {
		poolCfg.MaxConnsPerHost = cfg.Performance.HTTPPool.MaxConnsPerHost
	}
	if cfg.Performance.HTTPPool.IdleConnTimeoutSeconds > 0 {
		poolCfg.IdleConnTimeout = time.Duration(cfg.Performance.HTTPPool.IdleConnTimeoutSeconds) * time.Second
	}
	if cfg.Performance.HTTPPool.ForceHTTP2 {
		poolCfg.ForceHTTP2 = true
	}

	executor.GetHTTPPool().Configure(poolCfg)
	log.Debugf("HTTP connection pool initialized: max_idle=%d, max_per_host=%d",
		poolCfg.MaxIdleConns, poolCfg.MaxConnsPerHost)
}

// StartService builds and runs the relay until SIGINT or SIGTERM.
func StartService(cfg *config.Config, configPath string) {
	logging.Setup(cfg)

	if cfg.UseZapLogger {
		if err := logging.InitZapLogger(cfg.Debug); err != nil {
			log.Warnf("failed to initialize zap logger: %v", err)
		} else {
			log.Info("zap structured logger initialized")
			defer func() { _ = logging.ZapSync() }()
		}
	}

	// Startup diagnostics: a missing key is loud but not fatal, so health
	// checks keep working while credentials are being provisioned.
	if cfg.Anthropic.APIKey == "" {
		log.Error("ANTHROPIC_API_KEY is not set; chat requests will fail until it is provided")
	}

	initPerformanceSystem(cfg)
	defer executor.GetHTTPPool().CloseIdleConnections()

	server, err := api.NewServer(cfg)
	if err != nil {
		log.Errorf("failed to build relay server: %v", err)
		return
	}

	if configPath != "" {
		watcher := config.NewWatcher(configPath, server.ApplyConfig)
		if err := watcher.Start(); err != nil {
			log.Warnf("config hot reload unavailable: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("relay server exited with error: %v", err)
	}
}
