package cli

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/logflux/internal/config"
	"github.com/GabrielNunesIT/logflux/internal/metric"
	"github.com/GabrielNunesIT/logflux/internal/pipeline"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			// Create a silent logger for validation (discards output)
			log := logger.NewConsoleLogger(io.Discard)

			metrics := metric.NewSet(prometheus.NewRegistry())
			p, err := pipeline.New(cfg, metrics, log)
			if err != nil {
				return fmt.Errorf("pipeline configuration error: %w", err)
			}

			fmt.Printf("Configuration valid:\n")
			fmt.Printf("  Rules: %d compiled\n", p.RuleCount())
			fmt.Printf("  Sinks: %d enabled\n", p.SinkCount())
			return nil
		},
	}
}
