// Package logging provides logging utilities for the chat relay server.
// logrus is the primary logger; an optional Zap logger can be enabled for
// high-throughput deployments.
package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sparkmatch/chatrelay/internal/config"
)

// Setup configures the global logrus logger from the application config.
// When file logging is enabled, output goes to both stderr and a rotating
// file managed by lumberjack.
func Setup(cfg *config.Config) {
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if !cfg.Logging.ToFile {
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Logging.Filename,
		MaxSize:    orDefault(cfg.Logging.MaxSizeMB, 100),
		MaxBackups: orDefault(cfg.Logging.MaxBackups, 3),
		MaxAge:     orDefault(cfg.Logging.MaxAgeDays, 28),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
