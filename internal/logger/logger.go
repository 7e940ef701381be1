// internal/logger/logger.go
package logger

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront-backend/internal/config"
)

// New builds the process logger. Production defaults to JSON output.
func New(cfg config.LogConfig, environment string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	format := cfg.Format
	if format == "" {
		format = "text"
		if environment == "production" {
			format = "json"
		}
	}

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		log.WithField("level", cfg.Level).Warn("Unknown log level, falling back to info")
	}
	log.SetLevel(level)

	return log
}
