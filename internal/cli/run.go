package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/logflux/internal/config"
	"github.com/GabrielNunesIT/logflux/internal/listener"
	"github.com/GabrielNunesIT/logflux/internal/metric"
	"github.com/GabrielNunesIT/logflux/internal/pipeline"
)

// NewRunCmd creates the run command.
func NewRunCmd(cfgFile, logLevel *string, debug *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the logflux daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, cfgFile, logLevel, debug)
		},
	}

	cmd.Flags().String("socket", "", "datagram socket path override")
	cmd.Flags().String("dispatch", "", "dispatch strategy override (sequential, concurrent, pool)")
	cmd.Flags().Bool("hot-reload", true, "enable hot-reload of the rule set from the config file")

	return cmd
}

func runDaemon(cmd *cobra.Command, cfgFile, logLevel *string, debug *bool) error {
	level := *logLevel
	if *debug {
		level = "debug"
	}
	log := SetupLogging(level)

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	applyCLIOverrides(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := metric.NewSet(reg)

	p, err := pipeline.New(cfg, metrics, log)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	l, err := listener.New(cfg.Socket, cfg.Dispatch, p.Handle, log)
	if err != nil {
		return fmt.Errorf("creating listener: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting sinks: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	hotReloadEnabled, _ := cmd.Flags().GetBool("hot-reload")
	if *cfgFile != "" && hotReloadEnabled {
		startConfigWatcher(ctx, cfgFile, p, log)
	}

	go handleSignals(ctx, cancel, sigChan, cfgFile, p, log)

	if cfg.Metrics.Enabled {
		go func() {
			if err := metric.Serve(ctx, cfg.Metrics.Address, reg, log); err != nil {
				log.Errorf("metrics endpoint error: %v", err)
			}
		}()
	}

	log.Infof("starting logflux: rules=%d, sinks=%d, dispatch=%s",
		p.RuleCount(), p.SinkCount(), cfg.Dispatch.Strategy)

	runErr := l.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	p.Stop(shutdownCtx)

	if runErr != nil && runErr != context.Canceled {
		return fmt.Errorf("listener error: %w", runErr)
	}

	log.Info("logflux stopped")
	return nil
}

func startConfigWatcher(ctx context.Context, cfgFile *string, p *pipeline.Pipeline, log logger.ILogger) {
	watcher := config.NewWatcher(*cfgFile, log)
	if err := watcher.Start(ctx); err != nil {
		log.Warningf("failed to start config watcher: %v", err)
		return
	}

	log.Infof("hot-reload enabled: config=%s", *cfgFile)

	go func() {
		for {
			select {
			case newCfg := <-watcher.Changes():
				if err := p.Reconfigure(newCfg.Rules); err != nil {
					log.Errorf("reconfigure failed: %v", err)
				}
			case err := <-watcher.Errors():
				log.Errorf("config watcher error: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func handleSignals(ctx context.Context, cancel context.CancelFunc, sigChan <-chan os.Signal, cfgFile *string, p *pipeline.Pipeline, log logger.ILogger) {
	for {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				log.Info("received SIGHUP, reloading rules")
				newCfg, err := config.Load(*cfgFile)
				if err == nil {
					err = newCfg.Validate()
				}
				if err != nil {
					log.Errorf("failed to reload config: %v", err)
					continue
				}
				if err := p.Reconfigure(newCfg.Rules); err != nil {
					log.Errorf("reconfigure failed: %v", err)
				}
			case syscall.SIGINT, syscall.SIGTERM:
				log.Infof("received shutdown signal: %v", sig)
				cancel()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	if path, _ := cmd.Flags().GetString("socket"); path != "" {
		cfg.Socket.Path = path
	}
	if strategy, _ := cmd.Flags().GetString("dispatch"); strategy != "" {
		cfg.Dispatch.Strategy = strategy
	}
}
