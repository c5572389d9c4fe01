package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"netlens/internal/models"
	"netlens/internal/prompt"
)

// NoEventsMessage is the answer given when nothing was captured since the
// previous query.
const NoEventsMessage = "No network events captured since the last query."

// Querier releases pending events on demand. Implemented by
// aggregator.Aggregator.
type Querier interface {
	Query(ctx context.Context, question string) (models.Batch, error)
}

// Answer is the reply to one operator question.
type Answer struct {
	BatchID    string `json:"batch_id"`
	Question   string `json:"question"`
	EventCount int    `json:"event_count"`
	Text       string `json:"answer"`
	Empty      bool   `json:"empty"`
}

// Responder serves interactive questions: each call drains the aggregator
// once and answers from exactly that batch.
type Responder struct {
	querier  Querier
	analyzer Analyzer
	recorder Recorder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewResponder builds a responder. recorder may be nil.
func NewResponder(querier Querier, analyzer Analyzer, recorder Recorder, timeout time.Duration, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		querier:  querier,
		analyzer: analyzer,
		recorder: recorder,
		timeout:  timeout,
		logger:   logger.With("component", "responder"),
	}
}

// Ask answers question from the events captured since the previous call.
// An empty batch is answered locally without calling the analyzer.
func (r *Responder) Ask(ctx context.Context, question string) (Answer, error) {
	batch, err := r.querier.Query(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("query events: %w", err)
	}

	ans := Answer{BatchID: batch.ID, Question: question, EventCount: batch.Len()}
	if batch.Empty() {
		ans.Empty = true
		ans.Text = NoEventsMessage
		return ans, nil
	}

	r.logger.Info("answering question", "batch_id", batch.ID, "events", batch.Len())

	dctx, cancel := detached(ctx, r.timeout)
	defer cancel()

	result := models.Analysis{
		BatchID:    batch.ID,
		Reason:     batch.Reason,
		Question:   question,
		EventCount: batch.Len(),
	}
	text, err := r.analyzer.Generate(dctx, prompt.Format(batch, question))
	result.At = time.Now()
	if err != nil {
		result.Err = err.Error()
		r.record(result)
		return Answer{}, fmt.Errorf("analyse batch %s: %w", batch.ID, err)
	}

	result.Response = text
	r.record(result)
	ans.Text = text
	return ans, nil
}

func (r *Responder) record(a models.Analysis) {
	if r.recorder != nil {
		r.recorder.Record(a)
	}
}
