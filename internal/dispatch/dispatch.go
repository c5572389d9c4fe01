package dispatch

import (
	"context"
	"log/slog"
	"time"

	"netlens/internal/models"
)

//go:generate mockgen -destination "mock_analyzer_test.go" -package $GOPACKAGE -write_package_comment=false netlens/internal/dispatch Analyzer

// Analyzer turns a prompt into free text. Implemented by ollama.Client.
type Analyzer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Sink receives batches released by an autonomous aggregator.
type Sink interface {
	Deliver(ctx context.Context, batch models.Batch) error
}

// Recorder is told about every finished analysis, successful or not.
type Recorder interface {
	Record(a models.Analysis)
}

// Run hands every batch from batches to sink until ctx ends or batches is
// closed. A failed delivery is logged and the batch dropped.
func Run(ctx context.Context, batches <-chan models.Batch, sink Sink, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-batches:
			if !ok {
				return nil
			}
			if err := sink.Deliver(ctx, b); err != nil {
				logger.Error("batch delivery failed, batch dropped", "batch_id", b.ID, "events", b.Len(), "error", err)
			}
		}
	}
}

// detached keeps a delivery running through shutdown, bounded by timeout.
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
