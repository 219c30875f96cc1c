// Package logging provides logging utilities for the chat relay server.
// This file provides an optional high-performance Zap logger that coexists
// with the default logrus logger. It is used for the per-request usage log
// lines, which are the hottest logging path in the relay.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	zapLogger  *zap.Logger
	zapSugar   *zap.SugaredLogger
	zapEnabled bool
	zapOnce    sync.Once
	zapMu      sync.RWMutex
)

// InitZapLogger initializes the optional Zap logger. Safe to call more than
// once; initialization happens only the first time.
func InitZapLogger(debug bool) error {
	var initErr error
	zapOnce.Do(func() {
		var zapCfg zap.Config
		if debug {
			zapCfg = zap.NewDevelopmentConfig()
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		} else {
			zapCfg = zap.NewProductionConfig()
			zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		logger, err := zapCfg.Build()
		if err != nil {
			initErr = err
			return
		}

		zapMu.Lock()
		zapLogger = logger
		zapSugar = logger.Sugar()
		zapEnabled = true
		zapMu.Unlock()
	})
	return initErr
}

// ZapEnabled reports whether the Zap logger has been initialized.
func ZapEnabled() bool {
	zapMu.RLock()
	defer zapMu.RUnlock()
	return zapEnabled
}

// Sugar returns the Zap sugared logger, or nil when Zap is not initialized.
func Sugar() *zap.SugaredLogger {
	zapMu.RLock()
	defer zapMu.RUnlock()
	if !zapEnabled {
		return nil
	}
	return zapSugar
}

// ZapSync flushes buffered log entries. Call before program exit.
func ZapSync() error {
	zapMu.RLock()
	defer zapMu.RUnlock()
	if !zapEnabled || zapLogger == nil {
		return nil
	}
	return zapLogger.Sync()
}
