package sink

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/logflux/internal/config"
	"github.com/GabrielNunesIT/logflux/internal/model"
)

// StdoutSink writes points to standard output in their line form.
type StdoutSink struct {
	cfg    config.StdoutSinkConfig
	writer io.Writer
	mu     sync.Mutex
	logger logger.ILogger
}

// NewStdoutSink creates a new stdout sink.
func NewStdoutSink(cfg config.StdoutSinkConfig, log logger.ILogger) *StdoutSink {
	return &StdoutSink{
		cfg:    cfg,
		writer: os.Stdout,
		logger: log.SubLogger("StdoutSink"),
	}
}

// NewStdoutSinkWithWriter creates a stdout sink with a custom writer
// (for testing).
func NewStdoutSinkWithWriter(cfg config.StdoutSinkConfig, w io.Writer, log logger.ILogger) *StdoutSink {
	s := NewStdoutSink(cfg, log)
	s.writer = w
	return s
}

// Name returns the sink identifier.
func (s *StdoutSink) Name() string {
	return "stdout"
}

// Start initializes the sink (no-op for stdout).
func (s *StdoutSink) Start(ctx context.Context) error {
	s.logger.Debug("stdout sink started")
	return nil
}

// Stop gracefully shuts down the sink (no-op for stdout).
func (s *StdoutSink) Stop(ctx context.Context) error {
	s.logger.Debug("stdout sink stopped")
	return nil
}

// Write renders each point as one line.
func (s *StdoutSink) Write(ctx context.Context, points []*model.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if _, err := io.WriteString(s.writer, p.Line()+"\n"); err != nil {
			return err
		}
	}
	return nil
}
