// Package testutil holds small helpers shared by package tests.
package testutil

import (
	"io"

	"github.com/GabrielNunesIT/go-libs/logger"
)

// NewTestLogger returns a logger that swallows all output, so test runs
// stay quiet even for code paths that log per message.
func NewTestLogger() logger.ILogger {
	return logger.NewConsoleLogger(io.Discard)
}
