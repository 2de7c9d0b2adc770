package sink

import (
	"context"
	"io"
	"sync"

	"github.com/natefinch/lumberjack"

	"github.com/GabrielNunesIT/logflux/internal/config"
	"github.com/GabrielNunesIT/logflux/internal/model"
)

// WriterFactory creates a new WriteCloser.
type WriterFactory func(cfg config.FileSinkConfig) (io.WriteCloser, error)

// FileOption configures the FileSink.
type FileOption func(*FileSink)

// WithWriterFactory sets a custom factory for creating the writer.
func WithWriterFactory(f WriterFactory) FileOption {
	return func(s *FileSink) {
		s.factory = f
	}
}

// FileSink appends point lines to a rotating file.
type FileSink struct {
	cfg     config.FileSinkConfig
	factory WriterFactory
	writer  io.WriteCloser
	mu      sync.Mutex
}

// NewFileSink creates a new file sink.
func NewFileSink(cfg config.FileSinkConfig, opts ...FileOption) *FileSink {
	s := &FileSink{cfg: cfg}

	// Default factory creates a lumberjack rotating writer
	s.factory = func(cfg config.FileSinkConfig) (io.WriteCloser, error) {
		return &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}, nil
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the sink identifier.
func (s *FileSink) Name() string {
	return "file"
}

// Start initializes the rotating file writer.
func (s *FileSink) Start(ctx context.Context) error {
	w, err := s.factory(s.cfg)
	if err != nil {
		return err
	}
	s.writer = w
	return nil
}

// Stop closes the file writer.
func (s *FileSink) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		return s.writer.Close()
	}
	return nil
}

// Write appends each point as one line.
func (s *FileSink) Write(ctx context.Context, points []*model.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return nil
	}

	for _, p := range points {
		if _, err := s.writer.Write([]byte(p.Line() + "\n")); err != nil {
			return err
		}
	}
	return nil
}
