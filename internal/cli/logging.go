package cli

import (
	"os"
	"strings"

	"github.com/GabrielNunesIT/go-libs/logger"
)

// SetupLogging builds the root logger at the requested level. Everything
// downstream receives it (or a SubLogger of it) by injection; the default
// and context-fallback loggers are set for the few places that cannot.
func SetupLogging(level string) logger.ILogger {
	log := logger.NewConsoleLogger(os.Stderr)

	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(logger.LevelDebug)
	case "warn", "warning":
		log.SetLevel(logger.LevelWarning)
	case "error":
		log.SetLevel(logger.LevelError)
	default:
		log.SetLevel(logger.LevelInfo)
	}

	logger.SetDefaultLogger(log)
	logger.SetCtxFallbackLogger(log)

	return log
}
