package listener

import (
	"context"
	"fmt"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"
	"golang.org/x/sync/errgroup"

	"github.com/GabrielNunesIT/logflux/internal/config"
)

// Handler processes one raw datagram. It must contain its own error
// boundary: dispatchers never inspect the outcome.
type Handler func(ctx context.Context, log logger.ILogger, raw []byte)

// Dispatcher is the concurrency strategy for handling received datagrams.
// The strategy is chosen once at startup and never changes.
type Dispatcher interface {
	// Dispatch hands one datagram to the handler under the strategy's
	// concurrency model. Sequential dispatch blocks until handling is
	// complete; the other strategies return immediately.
	Dispatch(ctx context.Context, raw []byte)

	// Close waits for all in-flight handlers to finish.
	Close()
}

// NewDispatcher builds the dispatcher named by configuration.
func NewDispatcher(cfg config.DispatchConfig, h Handler, log logger.ILogger) (Dispatcher, error) {
	switch cfg.Strategy {
	case "", config.DispatchSequential:
		return &sequentialDispatcher{h: h, log: log}, nil
	case config.DispatchConcurrent:
		return &concurrentDispatcher{h: h, log: log}, nil
	case config.DispatchPool:
		if cfg.Workers <= 0 {
			return nil, fmt.Errorf("pool dispatch requires a positive worker count, got %d", cfg.Workers)
		}
		return newPoolDispatcher(cfg.Workers, h, log), nil
	default:
		return nil, fmt.Errorf("unknown dispatch strategy: %s", cfg.Strategy)
	}
}

// sequentialDispatcher handles each message fully before the next
// datagram is read. Handling order equals arrival order.
type sequentialDispatcher struct {
	h   Handler
	log logger.ILogger
}

func (d *sequentialDispatcher) Dispatch(ctx context.Context, raw []byte) {
	d.h(ctx, d.log, raw)
}

func (d *sequentialDispatcher) Close() {}

// concurrentDispatcher handles each message on its own goroutine.
// Messages may complete out of arrival order.
type concurrentDispatcher struct {
	h   Handler
	log logger.ILogger
	wg  sync.WaitGroup
}

func (d *concurrentDispatcher) Dispatch(ctx context.Context, raw []byte) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.h(ctx, d.log, raw)
	}()
}

func (d *concurrentDispatcher) Close() {
	d.wg.Wait()
}

// poolDispatcher feeds a bounded set of persistent workers from a
// channel. Workers live for the whole run, so format-detection state and
// sink connections persist across messages.
type poolDispatcher struct {
	jobs chan poolJob
	g    *errgroup.Group
}

type poolJob struct {
	ctx context.Context
	raw []byte
}

func newPoolDispatcher(workers int, h Handler, log logger.ILogger) *poolDispatcher {
	d := &poolDispatcher{
		jobs: make(chan poolJob, workers),
		g:    &errgroup.Group{},
	}

	for i := 0; i < workers; i++ {
		wlog := log.SubLogger(fmt.Sprintf("worker-%d", i))
		d.g.Go(func() error {
			for j := range d.jobs {
				h(j.ctx, wlog, j.raw)
			}
			return nil
		})
	}
	return d
}

func (d *poolDispatcher) Dispatch(ctx context.Context, raw []byte) {
	d.jobs <- poolJob{ctx: ctx, raw: raw}
}

func (d *poolDispatcher) Close() {
	close(d.jobs)
	_ = d.g.Wait()
}
