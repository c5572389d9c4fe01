// Package app assembles and supervises a capture session.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netlens/internal/analysis"
	"netlens/internal/capture"
	"netlens/internal/config"
	"netlens/internal/ollama"
	"netlens/internal/reporting"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
)

func BuildLogger(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Run checks the backend, opens the capture device and runs a session until
// a signal arrives or the operator quits. A session summary is printed on
// the way out.
func Run(ctx context.Context, cfg config.Config) error {
	logOut := io.Writer(os.Stderr)
	if !cfg.NoTUI {
		f, err := tea.LogToFile(cfg.LogFile, "netlens")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := BuildLogger(cfg.LogLevel, logOut)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	client, err := ollama.New(cfg.OllamaURL, cfg.Model, cfg.RequestTimeout, logger)
	if err != nil {
		return err
	}
	checkCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	err = client.CheckConnection(checkCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("backend %s not reachable: %w", cfg.OllamaURL, err)
	}

	src, err := capture.OpenLive(capture.LiveConfig{
		Interface: cfg.Interface,
		Snaplen:   int32(cfg.Snaplen),
		Promisc:   cfg.Promiscuous,
		Filter:    cfg.Filter,
	}, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	stats := analysis.NewTrafficStats()
	src.Observe(stats.ProcessEvent)
	journal := reporting.NewJournal(cfg.JournalSize)

	pl, err := NewPipeline(cfg, Deps{
		Source:   src,
		Analyzer: client,
		Stats:    stats,
		Journal:  journal,
		Logger:   logger,
		In:       os.Stdin,
		Out:      os.Stdout,
	})
	if err != nil {
		return err
	}

	logger.Info("starting netlens", "interface", cfg.Interface, "mode", cfg.Mode.String(), "model", client.Model(), "buffer_size", cfg.BufferSize)
	started := time.Now()
	runErr := runWithSignals(ctx, pl.Run, cfg.ShutdownTimeout, logger)

	fmt.Fprintln(os.Stdout, reporting.SessionSummary(reporting.Session{
		Interface: cfg.Interface,
		Mode:      cfg.Mode.String(),
		Model:     client.Model(),
		Started:   started,
		Ended:     time.Now(),
		Stats:     stats,
		Journal:   journal,
	}))
	logger.Info("netlens stopped", "aggregator", pl.Aggregator().Stats())
	return runErr
}

// runWithSignals runs fn until it returns or SIGINT/SIGTERM arrives. After a
// signal fn gets timeout to wind down; a second signal stops waiting.
func runWithSignals(ctx context.Context, fn func(context.Context) error, timeout time.Duration, logger *slog.Logger) error {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- fn(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String(), "timeout", timeout)
		cancelRun()

		grace := time.NewTimer(timeout)
		defer grace.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			logger.Warn("second signal received, forcing shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-grace.C:
			logger.Warn("graceful shutdown timed out", "timeout", timeout)
			runErr = context.DeadlineExceeded
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	return nil
}
