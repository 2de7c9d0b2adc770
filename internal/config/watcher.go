package config

import (
	"context"
	"sync"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file and publishes validated reloads.
// Consumers use reloads to hot-swap the rule set; socket and sink
// configuration changes require a restart.
type Watcher struct {
	path     string
	onChange chan *Config
	onError  chan error
	debounce time.Duration
	last     *Config
	mu       sync.Mutex
	logger   logger.ILogger
}

// NewWatcher creates a config file watcher.
func NewWatcher(path string, log logger.ILogger) *Watcher {
	return &Watcher{
		path:     path,
		onChange: make(chan *Config, 1),
		onError:  make(chan error, 1),
		debounce: 100 * time.Millisecond,
		logger:   log.SubLogger("ConfigWatcher"),
	}
}

// Changes returns the channel that receives new configs on file changes.
func (w *Watcher) Changes() <-chan *Config {
	return w.onChange
}

// Errors returns the channel that receives reload errors.
func (w *Watcher) Errors() <-chan error {
	return w.onError
}

// Start begins watching the config file.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(w.path); err != nil {
		watcher.Close()
		return err
	}

	w.logger.Debugf("started watching config file: %s", w.path)
	go w.watchLoop(ctx, watcher)
	return nil
}

// watchLoop handles file system events with debouncing.
func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var debounceTimer *time.Timer
	var debounceChan <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			w.logger.Debug("config watcher stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.logger.Debugf("config file change detected: op=%s", event.Op)

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.debounce)
			debounceChan = debounceTimer.C

		case <-debounceChan:
			debounceChan = nil
			w.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("fsnotify error: %v", err)
			w.publishError(err)
		}
	}
}

// reload loads and validates the config file, then publishes it.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Errorf("failed to reload config: %v", err)
		w.publishError(err)
		return
	}

	w.mu.Lock()
	w.last = cfg
	w.mu.Unlock()

	w.logger.Infof("config reloaded: path=%s", w.path)

	// Replace any undelivered update so consumers always see the newest
	// config. reload runs only on the watch goroutine, so after the drain
	// the send cannot block.
	select {
	case <-w.onChange:
		w.logger.Warning("replacing undelivered config update")
	default:
	}
	w.onChange <- cfg
}

func (w *Watcher) publishError(err error) {
	select {
	case w.onError <- err:
	default:
	}
}

// LastConfig returns the last successfully loaded config.
func (w *Watcher) LastConfig() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
