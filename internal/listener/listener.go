// Package listener binds the local datagram socket and dispatches
// received messages under the configured concurrency strategy.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/GabrielNunesIT/logflux/internal/config"
)

// maxDatagramSize bounds a single received message.
const maxDatagramSize = 65535

// PacketConnFactory creates the datagram connection.
type PacketConnFactory func(network, address string) (net.PacketConn, error)

// NotifyFunc reports daemon state to the service manager.
type NotifyFunc func(unsetEnvironment bool, state string) (bool, error)

// Option configures the Listener.
type Option func(*Listener)

// WithPacketConnFactory sets a custom connection factory.
func WithPacketConnFactory(f PacketConnFactory) Option {
	return func(l *Listener) {
		l.factory = f
	}
}

// WithNotify sets a custom sd_notify implementation.
func WithNotify(f NotifyFunc) Option {
	return func(l *Listener) {
		l.notify = f
	}
}

// Listener owns the socket lifecycle: remove a stale socket file, bind,
// serve datagrams until the context is cancelled, and remove the socket
// again on every exit path.
type Listener struct {
	cfg        config.SocketConfig
	dispatcher Dispatcher
	factory    PacketConnFactory
	notify     NotifyFunc
	logger     logger.ILogger
}

// New creates a listener. The dispatch strategy is resolved here, once;
// an unknown strategy is startup-fatal.
func New(cfg config.SocketConfig, dcfg config.DispatchConfig, h Handler, log logger.ILogger, opts ...Option) (*Listener, error) {
	l := &Listener{
		cfg:    cfg,
		notify: daemon.SdNotify,
		logger: log.SubLogger("Listener"),
	}

	l.factory = func(network, address string) (net.PacketConn, error) {
		addr, err := net.ResolveUnixAddr(network, address)
		if err != nil {
			return nil, err
		}
		return net.ListenUnixgram(network, addr)
	}

	for _, opt := range opts {
		opt(l)
	}

	dispatcher, err := NewDispatcher(dcfg, h, l.logger)
	if err != nil {
		return nil, err
	}
	l.dispatcher = dispatcher

	return l, nil
}

// Run serves datagrams until the context is cancelled. The socket file is
// removed on normal and faulted exits alike.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.removeStale(); err != nil {
		return err
	}

	l.logger.Infof("binding socket %s", l.cfg.Path)
	conn, err := l.factory("unixgram", l.cfg.Path)
	if err != nil {
		return fmt.Errorf("binding socket %s: %w", l.cfg.Path, err)
	}

	defer func() {
		if err := os.Remove(l.cfg.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warningf("removing socket %s: %v", l.cfg.Path, err)
		}
	}()
	defer l.dispatcher.Close()
	defer conn.Close()

	if _, err := l.notify(false, daemon.SdNotifyReady); err != nil {
		l.logger.Debugf("sd_notify: %v", err)
	}
	defer l.notify(false, daemon.SdNotifyStopping)

	// Unblock the read on cancellation.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				l.logger.Warningf("socket read error: %v", err)
				continue
			}
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])

		l.dispatcher.Dispatch(ctx, raw)
	}
}

// removeStale unlinks a leftover socket file from a previous run. Only
// "does not exist" is tolerated; anything else is fatal.
func (l *Listener) removeStale() error {
	if err := os.Remove(l.cfg.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale socket %s: %w", l.cfg.Path, err)
	}
	return nil
}
