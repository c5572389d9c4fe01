// Package cli provides the netlens command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"netlens/internal/aggregator"
	"netlens/internal/app"
	"netlens/internal/config"

	"github.com/spf13/cobra"
)

type runFunc func(ctx context.Context, cfg config.Config) error

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the root command. Environment values become flag
// defaults, so flags win over NETLENS_* variables.
func NewRootCommand() *cobra.Command {
	return newRootCommand(app.Run)
}

func newRootCommand(run runFunc) *cobra.Command {
	cfg, loadErr := config.Load()
	mode := cfg.Mode.String()
	if loadErr != nil {
		mode = aggregator.PolicyAutonomous.String()
	}

	cmd := &cobra.Command{
		Use:   "netlens",
		Short: "Capture live traffic and have a local LLM analyse it.",
		Long: `netlens captures packets on one interface, batches them and sends the batches ` +
			`to an Ollama model. In autonomous mode batches are analysed for anomalies ` +
			`on a timer and whenever the buffer fills. In interactive mode you ask ` +
			`questions and each answer covers the traffic since the previous question.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if loadErr != nil {
				return loadErr
			}
			policy, err := aggregator.ParsePolicy(mode)
			if err != nil {
				return err
			}
			cfg.Mode = policy
			cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Interface, "interface", "i", cfg.Interface, "network interface to capture from (e.g. eth0, wlan0)")
	f.StringVarP(&cfg.OllamaURL, "ollama-url", "o", cfg.OllamaURL, "Ollama base URL")
	f.StringVarP(&cfg.Model, "model", "m", cfg.Model, "model name to use for analysis")
	f.IntVarP(&cfg.BufferSize, "buffer-size", "b", cfg.BufferSize, "events held before a batch is released")
	f.IntVar(&cfg.ChannelCapacity, "channel-capacity", cfg.ChannelCapacity, "capacity of the capture to aggregator channel")
	f.StringVar(&mode, "mode", mode, "release policy: autonomous or interactive")
	f.DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "autonomous release period")
	f.StringVar(&cfg.Filter, "filter", cfg.Filter, "optional BPF capture filter")
	f.IntVar(&cfg.Snaplen, "snaplen", cfg.Snaplen, fmt.Sprintf("bytes captured per packet (max %d)", config.MaxSnaplen))
	f.BoolVar(&cfg.Promiscuous, "promiscuous", cfg.Promiscuous, "put the interface in promiscuous mode")
	f.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "serve the HTTP query API on this address (interactive mode)")
	f.BoolVar(&cfg.NoTUI, "no-tui", cfg.NoTUI, "use plain terminal output instead of the dashboard")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	f.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log destination while the dashboard is shown")
	f.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "timeout for one backend request")
	f.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "grace period after a shutdown signal")

	return cmd
}
