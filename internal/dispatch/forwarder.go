package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"netlens/internal/models"
	"netlens/internal/prompt"
)

// Forwarder is the autonomous sink: it asks the analyzer for an anomaly
// summary of each batch and logs the result.
type Forwarder struct {
	analyzer Analyzer
	recorder Recorder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewForwarder builds a forwarder. recorder may be nil. timeout bounds each
// analyzer call and is not shortened by shutdown.
func NewForwarder(analyzer Analyzer, recorder Recorder, timeout time.Duration, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		analyzer: analyzer,
		recorder: recorder,
		timeout:  timeout,
		logger:   logger.With("component", "forwarder"),
	}
}

// Deliver analyses batch. Empty batches are skipped.
func (f *Forwarder) Deliver(ctx context.Context, batch models.Batch) error {
	if batch.Empty() {
		return nil
	}

	f.logger.Info("analysing batch", "batch_id", batch.ID, "reason", string(batch.Reason), "events", batch.Len())

	dctx, cancel := detached(ctx, f.timeout)
	defer cancel()

	result := models.Analysis{
		BatchID:    batch.ID,
		Reason:     batch.Reason,
		EventCount: batch.Len(),
	}
	response, err := f.analyzer.Generate(dctx, prompt.Format(batch, ""))
	result.At = time.Now()
	if err != nil {
		result.Err = err.Error()
		f.record(result)
		return fmt.Errorf("analyse batch %s: %w", batch.ID, err)
	}

	result.Response = response
	f.record(result)
	f.logger.Info("analysis complete", "batch_id", batch.ID, "analysis", response)
	return nil
}

func (f *Forwarder) record(a models.Analysis) {
	if f.recorder != nil {
		f.recorder.Record(a)
	}
}
