package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"netlens/internal/models"

	"github.com/rs/xid"
)

// DefaultFlushInterval is the autonomous release period.
const DefaultFlushInterval = 30 * time.Second

var (
	ErrInvalidCapacity  = errors.New("aggregator capacity must be > 0")
	ErrQueryUnsupported = errors.New("on-demand queries require the interactive policy")
	ErrNoOutput         = errors.New("autonomous policy requires an output channel")
	ErrStopped          = errors.New("aggregator stopped")
)

// Config configures one aggregator instance.
type Config struct {
	Policy        Policy
	Capacity      int
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Stats is a point-in-time view of the aggregator counters.
type Stats struct {
	Policy         string `json:"policy"`
	Capacity       int    `json:"capacity"`
	Pending        int64  `json:"pending"`
	Ingested       uint64 `json:"ingested"`
	Evicted        uint64 `json:"evicted"`
	Batches        uint64 `json:"batches"`
	ReleasedEvents uint64 `json:"released_events"`
	DroppedBatches uint64 `json:"dropped_batches"`
}

type request struct {
	question string
	reply    chan models.Batch
}

// Aggregator owns the pending buffer and decides when it is released.
// All buffer access happens on the goroutine running Run; other goroutines
// interact through channels only.
//
// With PolicyInteractive the aggregator never releases by itself, so a query
// sees every event captured since the previous query minus overflow
// evictions. Autonomous and on-demand release are never mixed on one
// instance.
type Aggregator struct {
	cfg      Config
	logger   *slog.Logger
	buf      *Buffer
	requests chan request
	done     chan struct{}

	pending        atomic.Int64
	ingested       atomic.Uint64
	evicted        atomic.Uint64
	batches        atomic.Uint64
	releasedEvents atomic.Uint64
	droppedBatches atomic.Uint64
}

// New validates cfg and returns an aggregator ready to Run.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Aggregator{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "aggregator", "policy", cfg.Policy.String()),
		buf:      NewBuffer(cfg.Capacity),
		requests: make(chan request),
		done:     make(chan struct{}),
	}, nil
}

// Policy returns the release discipline of this instance.
func (a *Aggregator) Policy() Policy {
	return a.cfg.Policy
}

// Run is the aggregator event loop. It services whichever of a new event, a
// timer tick or a query is ready first, and returns when ctx ends. A closed
// in channel only stops ingestion. out receives autonomous releases and may
// be nil for the interactive policy; it should be buffered, since a batch
// that finds it full is dropped.
func (a *Aggregator) Run(ctx context.Context, in <-chan models.NetworkEvent, out chan<- models.Batch) error {
	defer close(a.done)

	autonomous := a.cfg.Policy == PolicyAutonomous
	if autonomous && out == nil {
		return ErrNoOutput
	}

	var tick <-chan time.Time
	var requests <-chan request
	if autonomous {
		ticker := time.NewTicker(a.cfg.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	} else {
		requests = a.requests
	}

	a.logger.Info("aggregator started", "capacity", a.cfg.Capacity, "flush_interval", a.cfg.FlushInterval)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("aggregator stopped", "pending_dropped", a.buf.Len())
			return nil

		case ev, ok := <-in:
			if !ok {
				a.logger.Info("event source closed, ingestion stopped")
				in = nil
				continue
			}
			if reached := a.ingest(ev); reached && autonomous {
				if !a.emit(ctx, out, a.release(models.ReleaseCapacity, "")) {
					return nil
				}
			}

		case <-tick:
			if a.buf.Len() == 0 {
				continue
			}
			if !a.emit(ctx, out, a.release(models.ReleaseTimer, "")) {
				return nil
			}

		case req := <-requests:
			req.reply <- a.release(models.ReleaseDemand, req.question)
		}
	}
}

// Query drains whatever is pending and returns it, possibly empty. It blocks
// until the aggregator goroutine answers, ctx ends or the aggregator stops.
// A batch drained for a caller whose ctx ended meanwhile is lost.
func (a *Aggregator) Query(ctx context.Context, question string) (models.Batch, error) {
	if a.cfg.Policy != PolicyInteractive {
		return models.Batch{}, ErrQueryUnsupported
	}

	req := request{question: question, reply: make(chan models.Batch, 1)}
	select {
	case a.requests <- req:
	case <-ctx.Done():
		return models.Batch{}, ctx.Err()
	case <-a.done:
		return models.Batch{}, ErrStopped
	}

	select {
	case b := <-req.reply:
		return b, nil
	case <-ctx.Done():
		return models.Batch{}, ctx.Err()
	}
}

// Stats returns the current counters. Safe for concurrent use.
func (a *Aggregator) Stats() Stats {
	return Stats{
		Policy:         a.cfg.Policy.String(),
		Capacity:       a.buf.Capacity(),
		Pending:        a.pending.Load(),
		Ingested:       a.ingested.Load(),
		Evicted:        a.evicted.Load(),
		Batches:        a.batches.Load(),
		ReleasedEvents: a.releasedEvents.Load(),
		DroppedBatches: a.droppedBatches.Load(),
	}
}

// Done is closed once Run has returned.
func (a *Aggregator) Done() <-chan struct{} {
	return a.done
}

func (a *Aggregator) ingest(ev models.NetworkEvent) bool {
	reached, evicted := a.buf.Push(ev)
	a.ingested.Add(1)
	if evicted {
		a.evicted.Add(1)
		a.logger.Debug("buffer full, oldest event evicted")
	}
	a.pending.Store(int64(a.buf.Len()))
	return reached
}

func (a *Aggregator) release(reason models.ReleaseReason, question string) models.Batch {
	b := models.Batch{
		ID:         xid.New().String(),
		Reason:     reason,
		Question:   question,
		ReleasedAt: time.Now(),
		Events:     a.buf.Drain(),
	}
	a.pending.Store(0)
	a.batches.Add(1)
	a.releasedEvents.Add(uint64(b.Len()))
	a.logger.Info("batch released", "batch_id", b.ID, "reason", string(reason), "events", b.Len())
	return b
}

// emit hands b to the consumer without waiting. A batch the consumer has
// no room for is dropped, so a slow backend never stalls ingestion.
func (a *Aggregator) emit(ctx context.Context, out chan<- models.Batch, b models.Batch) bool {
	select {
	case <-ctx.Done():
		a.logger.Warn("shutdown while handing off batch, batch dropped", "batch_id", b.ID, "events", b.Len())
		return false
	default:
	}

	select {
	case out <- b:
	default:
		a.droppedBatches.Add(1)
		a.logger.Warn("dispatcher saturated, batch dropped", "batch_id", b.ID, "events", b.Len())
	}
	return true
}
