package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"netlens/internal/aggregator"
	"netlens/internal/analysis"
	"netlens/internal/api"
	"netlens/internal/config"
	"netlens/internal/dispatch"
	"netlens/internal/models"
	"netlens/internal/reporting"
	"netlens/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

// errQuit ends a session the operator closed.
var errQuit = errors.New("session ended by operator")

// EventSource produces translated events. Implemented by capture.Source.
type EventSource interface {
	Run(ctx context.Context, out chan<- models.NetworkEvent) error
}

// Deps are the collaborators a pipeline is built from.
type Deps struct {
	Source   EventSource
	Analyzer dispatch.Analyzer
	Stats    *analysis.TrafficStats
	Journal  *reporting.Journal
	Logger   *slog.Logger
	In       io.Reader
	Out      io.Writer
}

// Pipeline connects capture, aggregation and the analysis front end for one
// session.
type Pipeline struct {
	cfg       config.Config
	deps      Deps
	logger    *slog.Logger
	agg       *aggregator.Aggregator
	responder *dispatch.Responder
}

func NewPipeline(cfg config.Config, deps Deps) (*Pipeline, error) {
	if deps.Source == nil || deps.Analyzer == nil {
		return nil, errors.New("pipeline needs an event source and an analyzer")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Journal == nil {
		deps.Journal = reporting.NewJournal(cfg.JournalSize)
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}

	agg, err := aggregator.New(aggregator.Config{
		Policy:        cfg.Mode,
		Capacity:      cfg.BufferSize,
		FlushInterval: cfg.FlushInterval,
		Logger:        deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create aggregator: %w", err)
	}

	p := &Pipeline{cfg: cfg, deps: deps, logger: deps.Logger, agg: agg}
	if cfg.Mode == aggregator.PolicyInteractive {
		p.responder = dispatch.NewResponder(agg, deps.Analyzer, deps.Journal, cfg.RequestTimeout, deps.Logger)
	}
	return p, nil
}

// Aggregator exposes the session's aggregator for status reporting.
func (p *Pipeline) Aggregator() *aggregator.Aggregator {
	return p.agg
}

// Run blocks until ctx ends or the operator quits. Capture failures are
// logged and do not end the session.
func (p *Pipeline) Run(ctx context.Context) error {
	events := make(chan models.NetworkEvent, p.cfg.ChannelCapacity)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(events)
		if err := p.deps.Source.Run(gctx, events); err != nil {
			p.logger.Error("capture stopped", "error", err)
		}
		return nil
	})

	var batches chan models.Batch
	if p.agg.Policy() == aggregator.PolicyAutonomous {
		batches = make(chan models.Batch, p.cfg.ChannelCapacity)
		var rec dispatch.Recorder = p.deps.Journal
		if p.cfg.NoTUI {
			rec = &printRecorder{next: p.deps.Journal, out: p.deps.Out}
		}
		fwd := dispatch.NewForwarder(p.deps.Analyzer, rec, p.cfg.RequestTimeout, p.logger)
		g.Go(func() error {
			return dispatch.Run(gctx, batches, fwd, p.logger)
		})
	}
	g.Go(func() error {
		return p.agg.Run(gctx, events, batches)
	})

	if p.responder != nil && p.cfg.ListenAddr != "" {
		srv := api.NewServer(p.cfg.ListenAddr, p.responder, p.agg, p.cfg.ShutdownTimeout, p.logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	switch {
	case !p.cfg.NoTUI:
		g.Go(func() error {
			return p.runTUI(gctx)
		})
	case p.responder != nil:
		g.Go(func() error {
			return p.runLines(gctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pipeline) runTUI(ctx context.Context) error {
	opts := tui.Options{
		Context:   ctx,
		Stats:     p.deps.Stats,
		History:   p.deps.Journal,
		Interface: p.cfg.Interface,
		Model:     p.cfg.Model,
	}
	if p.responder != nil {
		opts.Asker = p.responder
	}

	prog := tea.NewProgram(tui.NewAnalysisModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run tui: %w", err)
	}
	return errQuit
}

// printRecorder writes each analysis to out before passing it on.
type printRecorder struct {
	mu   sync.Mutex
	next dispatch.Recorder
	out  io.Writer
}

func (r *printRecorder) Record(a models.Analysis) {
	r.mu.Lock()
	if a.Failed() {
		fmt.Fprintf(r.out, "[%s] %s release of %d events failed: %s\n", a.At.Format("15:04:05"), a.Reason, a.EventCount, a.Err)
	} else {
		fmt.Fprintf(r.out, "[%s] %s release of %d events:\n%s\n\n", a.At.Format("15:04:05"), a.Reason, a.EventCount, a.Response)
	}
	r.mu.Unlock()
	r.next.Record(a)
}
