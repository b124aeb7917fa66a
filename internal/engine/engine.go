package engine

import (
	"context"
	"errors"
	"time"

	"github.com/genricoloni/reelkeeper/internal/domain"
	"github.com/genricoloni/reelkeeper/internal/manager"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrStopped is returned by Do once the engine loop has exited
var ErrStopped = errors.New("engine stopped")

// Engine owns the goroutine that drives the manager.
// Container events, handle callbacks, checkpoints and host commands are all
// serialized through its loop, so the manager never needs locking.
type Engine struct {
	logger    *zap.Logger
	cfg       domain.Config
	source    domain.CandidateSource
	manager   *manager.Manager
	persister domain.StatePersister

	ops        chan func()
	done       chan struct{}
	sourceDone chan struct{}
	cancel     context.CancelFunc
}

// NewEngine creates a new orchestration engine
func NewEngine(
	logger *zap.Logger,
	cfg domain.Config,
	source domain.CandidateSource,
	mgr *manager.Manager,
	persister domain.StatePersister,
) *Engine {
	return &Engine{
		logger:     logger,
		cfg:        cfg,
		source:     source,
		manager:    mgr,
		persister:  persister,
		ops:        make(chan func(), 64),
		done:       make(chan struct{}),
		sourceDone: make(chan struct{}),
	}
}

// Start restores saved progress, registers the manager and launches the
// event loop and the candidate source in goroutines.
// It returns immediately (non-blocking).
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Engine starting...")

	if states, err := e.persister.Load(ctx); err == nil {
		e.manager.RestorePlaybackStates(states)
	} else {
		e.logger.Warn("Could not load saved playback states, starting empty", zap.Error(err))
	}

	e.manager.SetDispatcher(e.post)
	e.manager.OnRegistered()

	// The loop outlives the start context
	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	go e.runLoop(loopCtx)
	go func() {
		defer close(e.sourceDone)
		if err := e.source.Start(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error("Candidate source failed", zap.Error(err))
		}
	}()
	return nil
}

// Do runs fn on the engine goroutine and waits for it to finish
func (e *Engine) Do(ctx context.Context, fn func(m *manager.Manager)) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn(e.manager)
	}

	select {
	case e.ops <- op:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post is the manager's dispatcher. Callbacks arriving after the loop has
// exited are dropped.
func (e *Engine) post(fn func()) {
	select {
	case e.ops <- fn:
	case <-e.done:
	}
}

// runLoop is the main event processing loop with debouncing.
// Debouncing collapses bursts of candidate updates (fast scrolling) into one
// arbitration pass on the latest set.
func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.done)

	events := e.source.Events()

	debounce := e.cfg.GetDebounce()
	timer := time.NewTimer(time.Hour)
	timer.Stop() // Start with stopped timer

	var checkpoint <-chan time.Time
	if interval := e.cfg.GetCheckpointInterval(); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		checkpoint = ticker.C
	}

	var (
		pending    []domain.Candidate
		hasPending bool
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine loop stopped")
			return

		case fn := <-e.ops:
			fn()

		case ev, ok := <-events:
			if !ok {
				e.logger.Info("Candidate source events channel closed")
				events = nil
				continue
			}

			switch ev.Kind {
			case domain.ContainerCandidatesChanged:
				if debounce <= 0 {
					e.manager.OnCandidatesChanged(ev.Candidates)
					continue
				}
				e.logger.Debug("Candidates changed, debouncing...", zap.Int("count", len(ev.Candidates)))
				pending = ev.Candidates
				hasPending = true
				timer.Reset(debounce)

			case domain.ContainerCandidateDetached, domain.ContainerCandidateFinished:
				// A pending set must never resurrect a detached player
				if hasPending {
					pending = lo.Reject(pending, func(c domain.Candidate, _ int) bool {
						return c.MediaID == ev.MediaID
					})
				}
				if ev.Kind == domain.ContainerCandidateFinished {
					e.manager.OnCandidateFinished(ev.MediaID)
				} else {
					e.manager.OnCandidateDetached(ev.MediaID)
				}
			}

		case <-timer.C:
			if hasPending {
				e.manager.OnCandidatesChanged(pending)
				pending = nil
				hasPending = false
			}

		case <-checkpoint:
			e.manager.Checkpoint()
		}
	}
}

// Stop ends the loop, unregisters the manager while its players are still
// reachable, stops the source and writes the saved progress to the persister
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping...")

	if e.cancel == nil {
		e.logger.Info("Engine was never started")
		return e.persister.Close()
	}

	e.cancel()
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// The loop has exited; this goroutine now owns the manager
	e.manager.OnUnregistered()
	states := e.manager.PlaybackStates()

	var errs error
	if err := e.source.Stop(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	select {
	case <-e.sourceDone:
	case <-ctx.Done():
		errs = multierr.Append(errs, ctx.Err())
	}

	if err := e.persister.Save(ctx, states); err != nil {
		e.logger.Error("Failed to save playback states", zap.Error(err))
		errs = multierr.Append(errs, err)
	}
	errs = multierr.Append(errs, e.persister.Close())

	if errs == nil {
		e.logger.Info("Engine stopped", zap.Int("savedStates", len(states)))
	}
	return errs
}
